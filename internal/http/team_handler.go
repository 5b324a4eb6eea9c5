package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/clubsite/internal/application"
)

// TeamHandler serves team lifecycle and membership endpoints.
type TeamHandler struct {
	teams     *application.TeamService
	booking   *application.BookingService
	responder responder
}

// NewTeamHandler constructs a team handler.
func NewTeamHandler(teams *application.TeamService, booking *application.BookingService, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{teams: teams, booking: booking, responder: newResponder(logger)}
}

// Create persists a new team with the caller as captain.
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)

	var payload teamRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	team, err := h.teams.CreateTeam(ctx, application.CreateTeamParams{
		Principal: principal,
		Input:     application.TeamInput{Name: payload.Name, Description: payload.Description},
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusCreated, toTeamResponse(team))
}

// Join adds the caller to the team holding the invite code.
func (h *TeamHandler) Join(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)

	var payload joinTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	team, err := h.teams.JoinTeam(ctx, application.JoinTeamParams{
		Principal:  principal,
		InviteCode: payload.InviteCode,
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, toTeamResponse(team))
}

// List enumerates all teams.
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)

	teams, err := h.teams.ListTeams(ctx, principal)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	out := make([]teamResponse, 0, len(teams))
	for _, team := range teams {
		out = append(out, toTeamResponse(team))
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, out)
}

// Me returns the caller's own team.
func (h *TeamHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)

	team, err := h.teams.FindOwnTeam(ctx, principal)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toTeamResponse(team))
}

// Get retrieves one team.
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	teamID := chi.URLParam(r, "teamID")
	if teamID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingTeamID)
		return
	}

	team, err := h.teams.GetTeam(ctx, principal, teamID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toTeamResponse(team))
}

// Delete removes a team.
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	teamID := chi.URLParam(r, "teamID")
	if teamID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingTeamID)
		return
	}

	if err := h.teams.DeleteTeam(ctx, principal, teamID); err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}

// Appointments lists a team's appointments across all sites, optionally
// narrowed to a start-time window.
func (h *TeamHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	teamID := chi.URLParam(r, "teamID")
	if teamID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingTeamID)
		return
	}

	params := application.ListTeamAppointmentsParams{Principal: principal, TeamID: teamID}
	if raw := r.URL.Query().Get("starts_after"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidTimeArgs)
			return
		}
		params.StartsAfter = &ts
	}
	if raw := r.URL.Query().Get("ends_before"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidTimeArgs)
			return
		}
		params.EndsBefore = &ts
	}

	appointments, err := h.booking.ListTeamAppointments(ctx, params)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toAppointmentResponses(appointments))
}
