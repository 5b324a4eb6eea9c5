package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/clubsite/internal/application"
	"github.com/example/clubsite/internal/booking"
)

// SiteHandler serves site catalog and appointment endpoints.
type SiteHandler struct {
	sites     *application.SiteService
	booking   *application.BookingService
	responder responder
}

// NewSiteHandler constructs a site handler.
func NewSiteHandler(sites *application.SiteService, booking *application.BookingService, logger *slog.Logger) *SiteHandler {
	return &SiteHandler{sites: sites, booking: booking, responder: newResponder(logger)}
}

// List enumerates sites. The optional begin/end query parameters select a
// half-open index range of the name-ordered listing.
func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sites, err := h.sites.ListSites(ctx)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	sites, err = paginate(sites, r.URL.Query().Get("begin"), r.URL.Query().Get("end"))
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	out := make([]siteResponse, 0, len(sites))
	for _, site := range sites {
		out = append(out, toSiteResponse(site))
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, out)
}

// paginate slices items to the half-open [begin, end) index range. Empty
// parameters keep the respective boundary open.
func paginate[T any](items []T, beginRaw, endRaw string) ([]T, error) {
	begin, end := 0, len(items)
	var err error
	if beginRaw != "" {
		if begin, err = strconv.Atoi(beginRaw); err != nil || begin < 0 {
			return nil, errInvalidPageArgs
		}
	}
	if endRaw != "" {
		if end, err = strconv.Atoi(endRaw); err != nil || end < 0 {
			return nil, errInvalidPageArgs
		}
	}
	if begin > len(items) {
		begin = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	if begin > end {
		return nil, errInvalidPageArgs
	}
	return items[begin:end], nil
}

// Create persists a new site.
func (h *SiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)

	var payload siteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	site, err := h.sites.CreateSite(ctx, application.CreateSiteParams{
		Principal: principal,
		Input: application.SiteInput{
			Name:               payload.Name,
			Description:        payload.Description,
			Capacity:           payload.Capacity,
			MinDurationMinutes: payload.MinDurationMinutes,
			MaxDurationMinutes: payload.MaxDurationMinutes,
		},
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusCreated, toSiteResponse(site))
}

// Get retrieves one site with its reservation set.
func (h *SiteHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	siteID := chi.URLParam(r, "siteID")
	if siteID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingSiteID)
		return
	}

	site, err := h.sites.GetSite(ctx, siteID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toSiteResponse(site))
}

// Patch applies a partial update to a site.
func (h *SiteHandler) Patch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	siteID := chi.URLParam(r, "siteID")
	if siteID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingSiteID)
		return
	}

	var payload sitePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	site, err := h.sites.PatchSite(ctx, application.PatchSiteParams{
		Principal: principal,
		SiteID:    siteID,
		Patch: application.SitePatch{
			Name:               payload.Name,
			Description:        payload.Description,
			Capacity:           payload.Capacity,
			MinDurationMinutes: payload.MinDurationMinutes,
			MaxDurationMinutes: payload.MaxDurationMinutes,
		},
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, toSiteResponse(site))
}

// Delete removes a site.
func (h *SiteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	siteID := chi.URLParam(r, "siteID")
	if siteID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingSiteID)
		return
	}

	if err := h.sites.DeleteSite(ctx, principal, siteID); err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}

// ProposeAppointment books a window on the site.
func (h *SiteHandler) ProposeAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	siteID := chi.URLParam(r, "siteID")
	if siteID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingSiteID)
		return
	}

	var payload appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	appointment, err := h.booking.ProposeAppointment(ctx, application.ProposeAppointmentParams{
		Principal:          principal,
		SiteID:             siteID,
		TeamID:             payload.TeamID,
		Start:              payload.Start,
		End:                payload.End,
		MinDurationMinutes: payload.MinDurationMinutes,
		MaxDurationMinutes: payload.MaxDurationMinutes,
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusCreated, toAppointmentResponse(appointment))
}

// ListAppointments returns the site's reservation set, optionally narrowed to
// the windows overlapping a start/end query range.
func (h *SiteHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	siteID := chi.URLParam(r, "siteID")
	if siteID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingSiteID)
		return
	}

	startRaw := r.URL.Query().Get("start")
	endRaw := r.URL.Query().Get("end")
	var window booking.Interval
	if startRaw != "" || endRaw != "" {
		start, startErr := time.Parse(time.RFC3339, startRaw)
		end, endErr := time.Parse(time.RFC3339, endRaw)
		if startErr != nil || endErr != nil || !end.After(start) {
			h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidTimeArgs)
			return
		}
		window = booking.Interval{Start: start, End: end}
	}

	site, err := h.sites.GetSite(ctx, siteID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	out := make([]appointmentResponse, 0, len(site.Appointments))
	for _, appointment := range site.Appointments {
		if window.IsComplete() {
			held := booking.Interval{Start: appointment.Start, End: appointment.End}
			if !held.Overlaps(window) {
				continue
			}
		}
		out = append(out, toAppointmentResponse(appointment))
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, out)
}

// CancelAppointment removes the appointment addressed by team and start.
func (h *SiteHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	siteID := chi.URLParam(r, "siteID")
	if siteID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingSiteID)
		return
	}

	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidTimeArgs)
		return
	}

	err = h.booking.CancelAppointment(ctx, application.CancelAppointmentParams{
		Principal: principal,
		SiteID:    siteID,
		TeamID:    r.URL.Query().Get("team_id"),
		Start:     start,
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}

// ReviseAppointments replaces the site's entire reservation set.
func (h *SiteHandler) ReviseAppointments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	siteID := chi.URLParam(r, "siteID")
	if siteID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingSiteID)
		return
	}

	var payload reviseAppointmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	appointments := make([]application.Appointment, 0, len(payload.Appointments))
	for _, item := range payload.Appointments {
		appointments = append(appointments, application.Appointment{
			TeamID: item.TeamID,
			Start:  item.Start,
			End:    item.End,
		})
	}

	revised, err := h.booking.ReviseAppointments(ctx, application.ReviseAppointmentsParams{
		Principal:    principal,
		SiteID:       siteID,
		Appointments: appointments,
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, toAppointmentResponses(revised))
}

// Utilization reports the site's peak concurrent usage inside a window.
func (h *SiteHandler) Utilization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	siteID := chi.URLParam(r, "siteID")
	if siteID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingSiteID)
		return
	}

	start, startErr := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	end, endErr := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if startErr != nil || endErr != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidTimeArgs)
		return
	}

	report, err := h.booking.Utilization(ctx, application.UtilizationParams{
		SiteID: siteID,
		Start:  start,
		End:    end,
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, utilizationResponse{
		SiteID:     report.SiteID,
		Start:      report.Start,
		End:        report.End,
		Capacity:   report.Capacity,
		MaxOverlap: report.MaxOverlap,
	})
}
