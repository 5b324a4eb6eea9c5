package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/clubsite/internal/application"
)

// AuthHandler serves authentication endpoints.
type AuthHandler struct {
	auth      *application.AuthService
	responder responder
}

// NewAuthHandler constructs an authentication handler.
func NewAuthHandler(auth *application.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, responder: newResponder(logger)}
}

// CreateSession authenticates credentials and returns a signed access token.
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.auth.Authenticate(ctx, application.AuthenticateParams{
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusCreated, sessionResponse{
		Token: result.Token,
		User:  toUserResponse(result.User),
	})
}
