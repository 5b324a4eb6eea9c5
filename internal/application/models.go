package application

import "time"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// SiteInput captures caller provided site fields. Zero duration or capacity
// values fall back to the configured site defaults.
type SiteInput struct {
	Name               string
	Description        string
	Capacity           int
	MinDurationMinutes int
	MaxDurationMinutes int
}

// SitePatch carries a partial site update. Nil fields keep the stored value.
type SitePatch struct {
	Name               *string
	Description        *string
	Capacity           *int
	MinDurationMinutes *int
	MaxDurationMinutes *int
}

// Site represents a bookable site exposed by the application services.
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

// Appointment is a reserved window on a site.
type Appointment struct {
	SiteID string
	TeamID string
	Start  time.Time
	End    time.Time
}

// CreateSiteParams wraps the data required to create a site.
type CreateSiteParams struct {
	Principal Principal
	Input     SiteInput
}

// PatchSiteParams wraps the data required to partially update a site.
type PatchSiteParams struct {
	Principal Principal
	SiteID    string
	Patch     SitePatch
}

// ProposeAppointmentParams wraps a booking request. TeamID is optional; when
// empty the requester's own team is used. The duration bound overrides replace
// the site's stored bounds for this one admission and are honored for admins
// only.
type ProposeAppointmentParams struct {
	Principal Principal
	SiteID    string
	TeamID    string
	Start     time.Time
	End       time.Time

	MinDurationMinutes *int
	MaxDurationMinutes *int
}

// CancelAppointmentParams identifies the appointment to remove.
type CancelAppointmentParams struct {
	Principal Principal
	SiteID    string
	TeamID    string
	Start     time.Time
}

// ReviseAppointmentsParams wraps an administrative replacement of a site's
// entire reservation set.
type ReviseAppointmentsParams struct {
	Principal    Principal
	SiteID       string
	Appointments []Appointment
}

// UtilizationParams identifies the site and window to measure.
type UtilizationParams struct {
	SiteID string
	Start  time.Time
	End    time.Time
}

// UtilizationReport is the peak concurrent usage of a site inside a window.
type UtilizationReport struct {
	SiteID     string
	Start      time.Time
	End        time.Time
	Capacity   int
	MaxOverlap int
}

// ListTeamAppointmentsParams narrows a team's cross-site appointment listing.
type ListTeamAppointmentsParams struct {
	Principal   Principal
	TeamID      string
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// TeamInput captures caller provided team fields.
type TeamInput struct {
	Name        string
	Description string
}

// Team represents a club team exposed by the application services.
type Team struct {
	ID          string
	Name        string
	Description string
	CaptainID   string
	Members     []string
	InviteCode  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateTeamParams wraps the data required to create a team. The creating user
// becomes the captain.
type CreateTeamParams struct {
	Principal Principal
	Input     TeamInput
}

// JoinTeamParams wraps a membership request by invite code.
type JoinTeamParams struct {
	Principal  Principal
	InviteCode string
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
}

// User represents a club member account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RegisterUserParams wraps the data required to register an account.
type RegisterUserParams struct {
	Input UserInput
}

// UpdateUserParams wraps the data required to update an account.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User  User
	Token string
}
