package persistence

import "time"

// User represents a club member account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Team represents a club team. The captain is always listed among the members.
// Version increments whenever an appointment is committed or removed for the
// team, on any site; booking commits carry the version they loaded so that
// concurrent same-team commits on different sites cannot both land unseen.
type Team struct {
	ID          string
	Name        string
	Description string
	CaptainID   string
	Members     []string
	InviteCode  string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Appointment is one reserved window embedded in a site's reservation set. It
// has no identity of its own; (team, start time) addresses it within the site.
type Appointment struct {
	TeamID string
	Start  time.Time
	End    time.Time
}

// Site represents a bookable physical site together with its scheduling
// configuration and current reservation set. Version increments on every
// mutation of the appointment set and backs the optimistic-concurrency
// discipline: commits carry the version they loaded and fail when it moved.
type Site struct {
	ID                 string
	Name               string
	Description        string
	Capacity           int
	MinDurationMinutes int
	MaxDurationMinutes int
	Version            int64
	Appointments       []Appointment
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TeamAppointment is an appointment joined with the site holding it, as
// returned by cross-site team queries.
type TeamAppointment struct {
	SiteID string
	TeamID string
	Start  time.Time
	End    time.Time
}
