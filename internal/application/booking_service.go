package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/clubsite/internal/booking"
	"github.com/example/clubsite/internal/persistence"
)

// SiteStore captures the persistence interactions needed by the booking service.
type SiteStore interface {
	GetSite(ctx context.Context, id string) (persistence.Site, error)
	AppendAppointment(ctx context.Context, siteID string, appointment persistence.Appointment, expectedVersion, expectedTeamVersion int64) error
	RemoveAppointment(ctx context.Context, siteID, teamID string, start time.Time, expectedVersion, expectedTeamVersion int64) error
	ReplaceAppointments(ctx context.Context, siteID string, appointments []persistence.Appointment, expectedVersion int64) error
	ListTeamAppointments(ctx context.Context, teamID string, filter persistence.AppointmentFilter) ([]persistence.TeamAppointment, error)
	CountTeamAppointments(ctx context.Context, teamID string, filter persistence.AppointmentFilter) (int, error)
}

// TeamDirectory exposes the team lookups needed to resolve a caller's standing.
type TeamDirectory interface {
	GetTeam(ctx context.Context, id string) (persistence.Team, error)
	FindTeamByMember(ctx context.Context, userID string) (persistence.Team, error)
}

// AdmissionRecorder receives admission outcomes for monitoring.
type AdmissionRecorder interface {
	RecordAdmission(outcome string)
	RecordConflictRetry()
}

// Quota scopes for the per-team appointment limit.
const (
	QuotaScopeDay    = "day"
	QuotaScopeFuture = "future"
)

// QuotaPolicy configures how many appointments a team may hold and over which
// horizon the count runs.
type QuotaPolicy struct {
	MaxAppointments int
	Scope           string
}

// BookingService orchestrates admission decisions and versioned commits for
// site appointments. Commits are guarded by the site version and the booking
// team's version, so a rival commit on the same site or by the same team on
// any other site invalidates the snapshot the checks ran against. A commit
// that loses the race is retried once against a fresh snapshot; a second loss
// surfaces as a version-conflict rejection.
type BookingService struct {
	sites    SiteStore
	teams    TeamDirectory
	recorder AdmissionRecorder
	quota    QuotaPolicy
	cache    *utilizationCache
	logger   *slog.Logger
	now      func() time.Time
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(sites SiteStore, teams TeamDirectory, recorder AdmissionRecorder, quota QuotaPolicy, logger *slog.Logger, now func() time.Time) *BookingService {
	if now == nil {
		now = time.Now
	}
	if quota.MaxAppointments <= 0 {
		quota.MaxAppointments = 3
	}
	if quota.Scope == "" {
		quota.Scope = QuotaScopeDay
	}
	return &BookingService{
		sites:    sites,
		teams:    teams,
		recorder: recorder,
		quota:    quota,
		cache:    newUtilizationCache(0, 0, now),
		logger:   logger,
		now:      now,
	}
}

const outcomeAccepted = "accepted"

// ProposeAppointment runs the admission checks against a fresh site snapshot
// and commits the appointment when they pass.
func (s *BookingService) ProposeAppointment(ctx context.Context, params ProposeAppointmentParams) (Appointment, error) {
	if s == nil || s.sites == nil {
		return Appointment{}, fmt.Errorf("booking service not configured")
	}
	logger := serviceLogger(ctx, s.logger, "booking", "propose_appointment", "site_id", params.SiteID)

	candidate := booking.Interval{Start: params.Start, End: params.End}
	if !candidate.IsComplete() {
		return Appointment{}, s.reject(logger, booking.ReasonMissingData)
	}

	membership, teamID, err := s.resolveBookingMembership(ctx, params.Principal, params.TeamID)
	if err != nil {
		if reason, ok := RejectionReason(err); ok {
			return Appointment{}, s.reject(logger, reason)
		}
		return Appointment{}, err
	}

	hasOverride := params.MinDurationMinutes != nil || params.MaxDurationMinutes != nil
	if hasOverride && !params.Principal.IsAdmin {
		return Appointment{}, s.reject(logger, booking.ReasonInsufficientPermission)
	}

	for attempt := 0; ; attempt++ {
		site, err := s.sites.GetSite(ctx, params.SiteID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return Appointment{}, s.reject(logger, booking.ReasonSiteNotFound)
			}
			return Appointment{}, fmt.Errorf("load site: %w", err)
		}
		if params.MinDurationMinutes != nil {
			site.MinDurationMinutes = *params.MinDurationMinutes
		}
		if params.MaxDurationMinutes != nil {
			site.MaxDurationMinutes = *params.MaxDurationMinutes
		}

		// The team version is read before the team's appointments so that a
		// rival commit landing in between still fails the guard below.
		teamVersion, err := s.teamVersion(ctx, teamID)
		if err != nil {
			return Appointment{}, err
		}

		request, err := s.assembleAdmission(ctx, site, membership, candidate)
		if err != nil {
			return Appointment{}, err
		}
		if reason := booking.Admit(request); reason != booking.ReasonNone {
			return Appointment{}, s.reject(logger, reason)
		}

		record := persistence.Appointment{TeamID: teamID, Start: candidate.Start, End: candidate.End}
		err = s.sites.AppendAppointment(ctx, site.ID, record, site.Version, teamVersion)
		if err == nil {
			if s.recorder != nil {
				s.recorder.RecordAdmission(outcomeAccepted)
			}
			logger.InfoContext(ctx, "appointment committed", "team_id", teamID, "version", site.Version+1)
			return Appointment{SiteID: site.ID, TeamID: teamID, Start: candidate.Start, End: candidate.End}, nil
		}
		if errors.Is(err, persistence.ErrVersionConflict) {
			if attempt == 0 {
				if s.recorder != nil {
					s.recorder.RecordConflictRetry()
				}
				logger.InfoContext(ctx, "stale site version, revalidating", "team_id", teamID)
				continue
			}
			return Appointment{}, s.reject(logger, booking.ReasonVersionConflict)
		}
		if errors.Is(err, persistence.ErrNotFound) {
			return Appointment{}, s.reject(logger, booking.ReasonSiteNotFound)
		}
		return Appointment{}, fmt.Errorf("commit appointment: %w", err)
	}
}

// CancelAppointment removes the appointment addressed by (team, start) after
// the permission checks pass.
func (s *BookingService) CancelAppointment(ctx context.Context, params CancelAppointmentParams) error {
	if s == nil || s.sites == nil {
		return fmt.Errorf("booking service not configured")
	}
	logger := serviceLogger(ctx, s.logger, "booking", "cancel_appointment", "site_id", params.SiteID)

	caller, ownTeamID, err := s.callerMembership(ctx, params.Principal)
	if err != nil {
		return err
	}
	teamID := params.TeamID
	if teamID == "" {
		teamID = ownTeamID
	}

	for attempt := 0; ; attempt++ {
		site, err := s.sites.GetSite(ctx, params.SiteID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return s.reject(logger, booking.ReasonSiteNotFound)
			}
			return fmt.Errorf("load site: %w", err)
		}

		_, reason := booking.Cancel(toBookingAppointments(site.Appointments), booking.CancelRequest{
			TeamID: teamID,
			Start:  params.Start,
			Caller: caller,
		})
		if reason != booking.ReasonNone {
			return s.reject(logger, reason)
		}

		teamVersion, err := s.teamVersion(ctx, teamID)
		if err != nil {
			return err
		}

		err = s.sites.RemoveAppointment(ctx, site.ID, teamID, params.Start, site.Version, teamVersion)
		if err == nil {
			logger.InfoContext(ctx, "appointment cancelled", "team_id", teamID)
			return nil
		}
		if errors.Is(err, persistence.ErrVersionConflict) {
			if attempt == 0 {
				if s.recorder != nil {
					s.recorder.RecordConflictRetry()
				}
				continue
			}
			return s.reject(logger, booking.ReasonVersionConflict)
		}
		if errors.Is(err, persistence.ErrNotFound) {
			return s.reject(logger, booking.ReasonNotFound)
		}
		return fmt.Errorf("remove appointment: %w", err)
	}
}

// ReviseAppointments replaces a site's entire reservation set. The operation
// is administrative and assumes the replacement list is mutually exclusive;
// validation enforces ordering and duration bounds, not capacity.
func (s *BookingService) ReviseAppointments(ctx context.Context, params ReviseAppointmentsParams) ([]Appointment, error) {
	if s == nil || s.sites == nil {
		return nil, fmt.Errorf("booking service not configured")
	}
	logger := serviceLogger(ctx, s.logger, "booking", "revise_appointments", "site_id", params.SiteID)

	if !params.Principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	replacement := make([]booking.Appointment, 0, len(params.Appointments))
	for _, appointment := range params.Appointments {
		replacement = append(replacement, booking.Appointment{
			TeamID: appointment.TeamID,
			Start:  appointment.Start,
			End:    appointment.End,
		})
	}

	if err := s.ensureTeamsExist(ctx, replacement); err != nil {
		if reason, ok := RejectionReason(err); ok {
			return nil, s.reject(logger, reason)
		}
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		site, err := s.sites.GetSite(ctx, params.SiteID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return nil, s.reject(logger, booking.ReasonSiteNotFound)
			}
			return nil, fmt.Errorf("load site: %w", err)
		}

		sorted, reason := booking.ValidateBatch(siteConfig(site), replacement)
		if reason != booking.ReasonNone {
			return nil, s.reject(logger, reason)
		}

		records := make([]persistence.Appointment, 0, len(sorted))
		for _, appointment := range sorted {
			records = append(records, persistence.Appointment{
				TeamID: appointment.TeamID,
				Start:  appointment.Start,
				End:    appointment.End,
			})
		}

		err = s.sites.ReplaceAppointments(ctx, site.ID, records, site.Version)
		if err == nil {
			if s.recorder != nil {
				s.recorder.RecordAdmission(outcomeAccepted)
			}
			logger.InfoContext(ctx, "reservation set replaced", "appointments", len(records))
			return toApplicationAppointments(site.ID, records), nil
		}
		if errors.Is(err, persistence.ErrVersionConflict) {
			if attempt == 0 {
				if s.recorder != nil {
					s.recorder.RecordConflictRetry()
				}
				continue
			}
			return nil, s.reject(logger, booking.ReasonVersionConflict)
		}
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, s.reject(logger, booking.ReasonSiteNotFound)
		}
		return nil, fmt.Errorf("replace appointments: %w", err)
	}
}

// Utilization reports the peak concurrent reservation count of a site inside
// the requested window. Results are cached per site version.
func (s *BookingService) Utilization(ctx context.Context, params UtilizationParams) (UtilizationReport, error) {
	if s == nil || s.sites == nil {
		return UtilizationReport{}, fmt.Errorf("booking service not configured")
	}
	logger := serviceLogger(ctx, s.logger, "booking", "utilization", "site_id", params.SiteID)

	window := booking.Interval{Start: params.Start, End: params.End}
	if !window.IsComplete() || window.Duration() <= 0 {
		return UtilizationReport{}, s.reject(logger, booking.ReasonMissingData)
	}

	site, err := s.sites.GetSite(ctx, params.SiteID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return UtilizationReport{}, s.reject(logger, booking.ReasonSiteNotFound)
		}
		return UtilizationReport{}, fmt.Errorf("load site: %w", err)
	}

	key := buildUtilizationCacheKey(params, site.Version)
	if report, ok := s.cache.Get(key); ok {
		return report, nil
	}

	report := UtilizationReport{
		SiteID:     site.ID,
		Start:      params.Start,
		End:        params.End,
		Capacity:   site.Capacity,
		MaxOverlap: booking.MaxOverlap(booking.Windows(toBookingAppointments(site.Appointments)), window),
	}
	s.cache.Store(key, report)
	return report, nil
}

// ListTeamAppointments enumerates a team's appointments across all sites.
// Members see their own team; admins see any.
func (s *BookingService) ListTeamAppointments(ctx context.Context, params ListTeamAppointmentsParams) ([]Appointment, error) {
	if s == nil || s.sites == nil {
		return nil, fmt.Errorf("booking service not configured")
	}

	if !params.Principal.IsAdmin {
		own, err := s.teams.FindTeamByMember(ctx, params.Principal.UserID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return nil, ErrUnauthorized
			}
			return nil, fmt.Errorf("resolve membership: %w", err)
		}
		if own.ID != params.TeamID {
			return nil, ErrUnauthorized
		}
	}

	records, err := s.sites.ListTeamAppointments(ctx, params.TeamID, persistence.AppointmentFilter{
		StartsAfter: params.StartsAfter,
		EndsBefore:  params.EndsBefore,
	})
	if err != nil {
		return nil, fmt.Errorf("list team appointments: %w", err)
	}

	out := make([]Appointment, 0, len(records))
	for _, record := range records {
		out = append(out, Appointment{
			SiteID: record.SiteID,
			TeamID: record.TeamID,
			Start:  record.Start,
			End:    record.End,
		})
	}
	return out, nil
}

// resolveBookingMembership determines the standing the admission checks run
// with and the team the appointment is booked for. Admins may book on behalf
// of any existing team; everyone else books for their own.
func (s *BookingService) resolveBookingMembership(ctx context.Context, principal Principal, requestedTeamID string) (booking.Membership, string, error) {
	caller, ownTeamID, err := s.callerMembership(ctx, principal)
	if err != nil {
		return booking.Membership{}, "", err
	}

	teamID := requestedTeamID
	if teamID == "" {
		teamID = ownTeamID
	}

	if principal.IsAdmin && teamID != "" && teamID != ownTeamID {
		if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return booking.Membership{}, "", Reject(booking.ReasonNotFound)
			}
			return booking.Membership{}, "", fmt.Errorf("load team: %w", err)
		}
		return booking.Membership{TeamID: teamID, IsCaptain: true, IsAdmin: true}, teamID, nil
	}

	if !principal.IsAdmin && teamID != "" && teamID != ownTeamID {
		if ownTeamID == "" {
			return booking.Membership{}, "", Reject(booking.ReasonNotATeamMember)
		}
		return booking.Membership{}, "", Reject(booking.ReasonInsufficientPermission)
	}

	return caller, teamID, nil
}

// teamVersion reads the version guarding the team's cross-site appointment
// state. A deleted team yields zero; the store skips the guard for it.
func (s *BookingService) teamVersion(ctx context.Context, teamID string) (int64, error) {
	if s.teams == nil || teamID == "" {
		return 0, nil
	}
	team, err := s.teams.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("load team: %w", err)
	}
	return team.Version, nil
}

// callerMembership resolves the principal's own team standing. A user without
// a team yields a zero membership, which the admission checks reject.
func (s *BookingService) callerMembership(ctx context.Context, principal Principal) (booking.Membership, string, error) {
	membership := booking.Membership{IsAdmin: principal.IsAdmin}
	if s.teams == nil {
		return membership, "", nil
	}

	own, err := s.teams.FindTeamByMember(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return membership, "", nil
		}
		return booking.Membership{}, "", fmt.Errorf("resolve membership: %w", err)
	}

	membership.TeamID = own.ID
	membership.IsCaptain = own.CaptainID == principal.UserID
	return membership, own.ID, nil
}

func (s *BookingService) assembleAdmission(ctx context.Context, site persistence.Site, membership booking.Membership, candidate booking.Interval) (booking.AdmissionRequest, error) {
	request := booking.AdmissionRequest{
		Site:             siteConfig(site),
		Candidate:        candidate,
		Requester:        membership,
		SiteAppointments: toBookingAppointments(site.Appointments),
		MaxBookings:      s.quota.MaxAppointments,
	}

	if membership.TeamID == "" {
		return request, nil
	}

	records, err := s.sites.ListTeamAppointments(ctx, membership.TeamID, persistence.AppointmentFilter{})
	if err != nil {
		return booking.AdmissionRequest{}, fmt.Errorf("list team appointments: %w", err)
	}
	for _, record := range records {
		request.TeamAppointments = append(request.TeamAppointments, booking.Appointment{
			TeamID: record.TeamID,
			Start:  record.Start,
			End:    record.End,
		})
	}

	count, err := s.sites.CountTeamAppointments(ctx, membership.TeamID, s.quotaFilter(candidate))
	if err != nil {
		return booking.AdmissionRequest{}, fmt.Errorf("count team appointments: %w", err)
	}
	request.TeamBookings = count

	return request, nil
}

// quotaFilter selects the window the quota count runs over. The day scope
// counts appointments sharing the candidate's UTC calendar day; the future
// scope counts everything from now onward.
func (s *BookingService) quotaFilter(candidate booking.Interval) persistence.AppointmentFilter {
	if s.quota.Scope == QuotaScopeFuture {
		from := s.now().UTC()
		return persistence.AppointmentFilter{StartsAfter: &from}
	}
	dayStart := candidate.Start.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)
	return persistence.AppointmentFilter{StartsAfter: &dayStart, EndsBefore: &dayEnd}
}

func (s *BookingService) ensureTeamsExist(ctx context.Context, appointments []booking.Appointment) error {
	if s.teams == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(appointments))
	for _, appointment := range appointments {
		if appointment.TeamID == "" {
			continue
		}
		if _, ok := seen[appointment.TeamID]; ok {
			continue
		}
		seen[appointment.TeamID] = struct{}{}
		if _, err := s.teams.GetTeam(ctx, appointment.TeamID); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return Reject(booking.ReasonInvalidBatch)
			}
			return fmt.Errorf("load team: %w", err)
		}
	}
	return nil
}

func (s *BookingService) reject(logger *slog.Logger, reason booking.Reason) error {
	if s.recorder != nil {
		s.recorder.RecordAdmission(string(reason))
	}
	logger.Info("booking rejected", "reason", string(reason))
	return Reject(reason)
}

func siteConfig(site persistence.Site) booking.SiteConfig {
	return booking.SiteConfig{
		Capacity:    site.Capacity,
		MinDuration: time.Duration(site.MinDurationMinutes) * time.Minute,
		MaxDuration: time.Duration(site.MaxDurationMinutes) * time.Minute,
	}
}

func toBookingAppointments(records []persistence.Appointment) []booking.Appointment {
	if len(records) == 0 {
		return nil
	}
	out := make([]booking.Appointment, 0, len(records))
	for _, record := range records {
		out = append(out, booking.Appointment{TeamID: record.TeamID, Start: record.Start, End: record.End})
	}
	return out
}

func toApplicationAppointments(siteID string, records []persistence.Appointment) []Appointment {
	out := make([]Appointment, 0, len(records))
	for _, record := range records {
		out = append(out, Appointment{SiteID: siteID, TeamID: record.TeamID, Start: record.Start, End: record.End})
	}
	return out
}
