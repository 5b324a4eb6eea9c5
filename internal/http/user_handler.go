package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/clubsite/internal/application"
)

// UserHandler serves account endpoints.
type UserHandler struct {
	users     *application.UserService
	responder responder
}

// NewUserHandler constructs a user handler.
func NewUserHandler(users *application.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, responder: newResponder(logger)}
}

// Register creates a new account. The endpoint is public.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload userRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	user, err := h.users.Register(ctx, application.RegisterUserParams{
		Input: application.UserInput{
			Email:       payload.Email,
			DisplayName: payload.DisplayName,
			Password:    payload.Password,
		},
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusCreated, toUserResponse(user))
}

// List enumerates accounts for administrators.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)

	users, err := h.users.ListUsers(ctx, principal)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, user := range users {
		out = append(out, toUserResponse(user))
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, out)
}

// Get retrieves one account.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingUserID)
		return
	}

	user, err := h.users.GetUser(ctx, principal, userID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toUserResponse(user))
}

// Update modifies an account.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingUserID)
		return
	}

	var payload userRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	user, err := h.users.UpdateUser(ctx, application.UpdateUserParams{
		Principal: principal,
		UserID:    userID,
		Input: application.UserInput{
			Email:       payload.Email,
			DisplayName: payload.DisplayName,
			Password:    payload.Password,
			IsAdmin:     payload.IsAdmin,
		},
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, toUserResponse(user))
}

// Delete removes an account.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingUserID)
		return
	}

	if err := h.users.DeleteUser(ctx, principal, userID); err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}
