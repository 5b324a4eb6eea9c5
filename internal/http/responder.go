package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/clubsite/internal/application"
	"github.com/example/clubsite/internal/booking"
)

var (
	errBadRequestBody  = errors.New("invalid request body")
	errMissingToken    = errors.New("access token is required")
	errInvalidToken    = errors.New("access token is invalid or expired")
	errMissingSiteID   = errors.New("site id is required")
	errMissingTeamID   = errors.New("team id is required")
	errMissingUserID   = errors.New("user id is required")
	errInvalidTimeArgs = errors.New("start and end must be RFC 3339 timestamps")
	errInvalidPageArgs = errors.New("begin and end must be non-negative indexes with begin <= end")
)

type errorResponse struct {
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		message = err.Error()
	}
	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application outcomes onto HTTP statuses. Rejections
// keep their reason code in the response body so clients can branch on it.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	if reason, ok := application.RejectionReason(err); ok {
		r.writeJSON(ctx, w, rejectionStatus(reason), errorResponse{
			Code:    string(reason),
			Message: rejectionMessage(reason),
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			Code:    "forbidden",
			Message: "you are not allowed to perform this operation",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			Code:    string(booking.ReasonNotFound),
			Message: "the requested resource was not found",
		})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			Code:    "already-exists",
			Message: "the resource already exists",
		})
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			Code:    "invalid-credentials",
			Message: "email or password is incorrect",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Code:    "validation",
				Message: "the request contains invalid fields",
				Errors:  vErr.FieldErrors,
			})
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			Code:    string(booking.ReasonInfrastructure),
			Message: "an internal error occurred",
		})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func rejectionStatus(reason booking.Reason) int {
	switch reason {
	case booking.ReasonMissingData, booking.ReasonInvalidDuration, booking.ReasonInvalidBatch:
		return http.StatusUnprocessableEntity
	case booking.ReasonNotATeamMember, booking.ReasonInsufficientPermission:
		return http.StatusForbidden
	case booking.ReasonTeamDoubleBooked, booking.ReasonQuotaExceeded,
		booking.ReasonCapacityExceeded, booking.ReasonVersionConflict:
		return http.StatusConflict
	case booking.ReasonNotFound, booking.ReasonSiteNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func rejectionMessage(reason booking.Reason) string {
	switch reason {
	case booking.ReasonMissingData:
		return "start and end instants are required"
	case booking.ReasonNotATeamMember:
		return "you do not belong to a team"
	case booking.ReasonInsufficientPermission:
		return "only the team captain may do this"
	case booking.ReasonInvalidDuration:
		return "the window violates the site's duration bounds"
	case booking.ReasonTeamDoubleBooked:
		return "the team already holds an overlapping appointment"
	case booking.ReasonQuotaExceeded:
		return "the team has reached its appointment quota"
	case booking.ReasonCapacityExceeded:
		return "the site is fully booked in that window"
	case booking.ReasonInvalidBatch:
		return "the replacement appointment list is invalid"
	case booking.ReasonNotFound:
		return "no matching appointment was found"
	case booking.ReasonSiteNotFound:
		return "the site does not exist"
	case booking.ReasonVersionConflict:
		return "the site changed concurrently, please retry"
	default:
		return "the request was rejected"
	}
}
