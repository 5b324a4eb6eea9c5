package booking

import "time"

// Reason identifies why a booking request was rejected. The values are stable
// and surface unchanged through the HTTP layer, so callers can branch on them.
type Reason string

const (
	// ReasonNone marks an accepted request.
	ReasonNone Reason = ""
	// ReasonMissingData indicates an absent or unparseable start or end instant.
	ReasonMissingData Reason = "missing-data"
	// ReasonNotATeamMember indicates the caller belongs to no team.
	ReasonNotATeamMember Reason = "not-a-team-member"
	// ReasonInsufficientPermission indicates the caller may not act for the team.
	ReasonInsufficientPermission Reason = "insufficient-permission"
	// ReasonInvalidDuration indicates the window violates the site's duration bounds.
	ReasonInvalidDuration Reason = "invalid-duration"
	// ReasonTeamDoubleBooked indicates the team already holds an overlapping window.
	ReasonTeamDoubleBooked Reason = "team-double-booked"
	// ReasonQuotaExceeded indicates the team reached its booking quota.
	ReasonQuotaExceeded Reason = "quota-exceeded"
	// ReasonCapacityExceeded indicates the site cannot host another overlapping window.
	ReasonCapacityExceeded Reason = "capacity-exceeded"
	// ReasonInvalidBatch indicates a replacement appointment list failed validation.
	ReasonInvalidBatch Reason = "invalid-batch"
	// ReasonNotFound indicates no appointment matched a cancellation request.
	ReasonNotFound Reason = "not-found"
	// ReasonSiteNotFound indicates the target site does not exist.
	ReasonSiteNotFound Reason = "site-not-found"
	// ReasonVersionConflict indicates the commit lost the optimistic-concurrency race twice.
	ReasonVersionConflict Reason = "version-conflict"
	// ReasonInfrastructure indicates a repository failure, not a domain outcome.
	ReasonInfrastructure Reason = "infrastructure-error"
)

// Membership captures the caller facts supplied by the team directory.
type Membership struct {
	TeamID    string
	IsCaptain bool
	IsAdmin   bool
}

// AdmissionRequest bundles the snapshot an admission decision is made against.
// All fields are plain values; Admit reads nothing beyond them.
type AdmissionRequest struct {
	Site      SiteConfig
	Candidate Interval
	Requester Membership

	// SiteAppointments are the target site's current reservations.
	SiteAppointments []Appointment
	// TeamAppointments are the requesting team's reservations across all sites.
	TeamAppointments []Appointment

	// TeamBookings is the team's qualifying appointment count for quota
	// purposes; MaxBookings is the configured ceiling.
	TeamBookings int
	MaxBookings  int
}

// Admit evaluates the admission checks in their fixed order and returns the
// first failing reason, or ReasonNone when the candidate may be committed.
// The order is part of the contract: it determines which reason a request
// with several defects reports.
func Admit(req AdmissionRequest) Reason {
	if !req.Candidate.IsComplete() {
		return ReasonMissingData
	}

	if req.Requester.TeamID == "" {
		return ReasonNotATeamMember
	}
	if !req.Requester.IsCaptain {
		return ReasonInsufficientPermission
	}

	duration := req.Candidate.Duration()
	if duration <= 0 || duration < req.Site.MinDuration || duration > req.Site.MaxDuration {
		return ReasonInvalidDuration
	}

	for _, appointment := range req.TeamAppointments {
		if appointment.Window().Overlaps(req.Candidate) {
			return ReasonTeamDoubleBooked
		}
	}

	if req.TeamBookings >= req.MaxBookings {
		return ReasonQuotaExceeded
	}

	windows := Windows(req.SiteAppointments)
	windows = append(windows, req.Candidate)
	if MaxOverlap(windows, req.Candidate) > req.Site.Capacity {
		return ReasonCapacityExceeded
	}

	return ReasonNone
}

// ValidateBatch checks a replacement appointment list as used by the
// administrative site-update path. The list is normalized first, then each
// entry must carry a team, stay within the duration bounds, and start no
// earlier than its predecessor ends. Batch revision assumes mutual exclusivity,
// so no capacity check runs here.
func ValidateBatch(cfg SiteConfig, appointments []Appointment) ([]Appointment, Reason) {
	sorted := Normalize(appointments)
	for i, appointment := range sorted {
		if appointment.TeamID == "" {
			return nil, ReasonInvalidBatch
		}
		duration := appointment.Window().Duration()
		if duration <= 0 || duration < cfg.MinDuration || duration > cfg.MaxDuration {
			return nil, ReasonInvalidBatch
		}
		if i > 0 && sorted[i-1].End.After(appointment.Start) {
			return nil, ReasonInvalidBatch
		}
	}
	return sorted, ReasonNone
}

// CancelRequest identifies the appointment to remove and who is asking.
type CancelRequest struct {
	TeamID string
	Start  time.Time
	Caller Membership
}

// Cancel locates the appointment matching (team, start) and returns its index.
// Removal is permitted to that team's captain or to an admin; everyone else is
// rejected even when the appointment exists, and a missing appointment is
// reported before any permission verdict leaks information about it.
func Cancel(appointments []Appointment, req CancelRequest) (int, Reason) {
	index := -1
	for i, appointment := range appointments {
		if appointment.TeamID == req.TeamID && appointment.Start.Equal(req.Start) {
			index = i
			break
		}
	}
	if index < 0 {
		return -1, ReasonNotFound
	}

	allowed := req.Caller.IsAdmin ||
		(req.Caller.TeamID == req.TeamID && req.Caller.IsCaptain)
	if !allowed {
		return -1, ReasonInsufficientPermission
	}

	return index, ReasonNone
}
