package persistence

import (
	"context"
	"time"
)

// AppointmentFilter narrows appointment queries to a time window. Nil bounds
// leave the corresponding side open.
type AppointmentFilter struct {
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// UserRepository exposes CRUD operations for club member accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// TeamRepository stores teams and answers membership queries.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team Team) error
	UpdateTeam(ctx context.Context, team Team) error
	GetTeam(ctx context.Context, id string) (Team, error)
	GetTeamByInviteCode(ctx context.Context, code string) (Team, error)
	// FindTeamByMember returns the team the user belongs to. A user is a
	// member of at most one team.
	FindTeamByMember(ctx context.Context, userID string) (Team, error)
	ListTeams(ctx context.Context) ([]Team, error)
	DeleteTeam(ctx context.Context, id string) error
}

// SiteRepository stores sites and their embedded appointment sets. Appointment
// mutations are guarded by two versions: the site version, covering the
// capacity state of the target site, and the team version, covering the team's
// appointments across all sites. A commit whose expected version no longer
// matches either stored row fails with ErrVersionConflict and must be
// re-validated against a fresh snapshot by the caller. The team guard is
// skipped when the team row no longer exists.
type SiteRepository interface {
	CreateSite(ctx context.Context, site Site) error
	UpdateSiteDetails(ctx context.Context, site Site) error
	GetSite(ctx context.Context, id string) (Site, error)
	GetSiteByName(ctx context.Context, name string) (Site, error)
	ListSites(ctx context.Context) ([]Site, error)
	DeleteSite(ctx context.Context, id string) error

	AppendAppointment(ctx context.Context, siteID string, appointment Appointment, expectedVersion, expectedTeamVersion int64) error
	RemoveAppointment(ctx context.Context, siteID, teamID string, start time.Time, expectedVersion, expectedTeamVersion int64) error
	// ReplaceAppointments swaps the whole set; the versions of every team
	// involved on either side of the swap are advanced unconditionally.
	ReplaceAppointments(ctx context.Context, siteID string, appointments []Appointment, expectedVersion int64) error

	// ListTeamAppointments returns a team's appointments across all sites.
	ListTeamAppointments(ctx context.Context, teamID string, filter AppointmentFilter) ([]TeamAppointment, error)
	// CountTeamAppointments counts a team's appointments across all sites
	// whose start instant falls inside the filter window.
	CountTeamAppointments(ctx context.Context, teamID string, filter AppointmentFilter) (int, error)
}
