package testfixtures

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/clubsite/internal/persistence"
)

// MemorySiteRepository is an in-memory persistence.SiteRepository that honours
// the versioned commit discipline, including the team-version guard when
// linked to a MemoryTeamRepository. It backs handler and service tests that do
// not want a database.
type MemorySiteRepository struct {
	mu    sync.Mutex
	sites map[string]persistence.Site
	teams *MemoryTeamRepository
}

// NewMemorySiteRepository returns an empty in-memory site repository. Commits
// check and advance team versions in teams; a nil teams skips the guard.
func NewMemorySiteRepository(teams *MemoryTeamRepository) *MemorySiteRepository {
	return &MemorySiteRepository{sites: make(map[string]persistence.Site), teams: teams}
}

func (r *MemorySiteRepository) CreateSite(_ context.Context, site persistence.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sites[site.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range r.sites {
		if existing.Name == site.Name {
			return persistence.ErrDuplicate
		}
	}
	r.sites[site.ID] = cloneSite(site)
	return nil
}

func (r *MemorySiteRepository) UpdateSiteDetails(_ context.Context, site persistence.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sites[site.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	stored.Name = site.Name
	stored.Description = site.Description
	stored.Capacity = site.Capacity
	stored.MinDurationMinutes = site.MinDurationMinutes
	stored.MaxDurationMinutes = site.MaxDurationMinutes
	stored.UpdatedAt = site.UpdatedAt
	r.sites[site.ID] = stored
	return nil
}

func (r *MemorySiteRepository) GetSite(_ context.Context, id string) (persistence.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	site, ok := r.sites[id]
	if !ok {
		return persistence.Site{}, persistence.ErrNotFound
	}
	return cloneSite(site), nil
}

func (r *MemorySiteRepository) GetSiteByName(_ context.Context, name string) (persistence.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, site := range r.sites {
		if site.Name == name {
			return cloneSite(site), nil
		}
	}
	return persistence.Site{}, persistence.ErrNotFound
}

func (r *MemorySiteRepository) ListSites(_ context.Context) ([]persistence.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]persistence.Site, 0, len(r.sites))
	for _, site := range r.sites {
		out = append(out, cloneSite(site))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemorySiteRepository) DeleteSite(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sites[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.sites, id)
	return nil
}

func (r *MemorySiteRepository) AppendAppointment(_ context.Context, siteID string, appointment persistence.Appointment, expectedVersion, expectedTeamVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	site, ok := r.sites[siteID]
	if !ok {
		return persistence.ErrNotFound
	}
	if site.Version != expectedVersion {
		return persistence.ErrVersionConflict
	}
	if err := r.bumpTeamVersion(appointment.TeamID, expectedTeamVersion); err != nil {
		return err
	}
	site.Version++
	site.Appointments = append(site.Appointments, appointment)
	r.sites[siteID] = site
	return nil
}

func (r *MemorySiteRepository) RemoveAppointment(_ context.Context, siteID, teamID string, start time.Time, expectedVersion, expectedTeamVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	site, ok := r.sites[siteID]
	if !ok {
		return persistence.ErrNotFound
	}
	if site.Version != expectedVersion {
		return persistence.ErrVersionConflict
	}
	for i, appointment := range site.Appointments {
		if appointment.TeamID == teamID && appointment.Start.Equal(start) {
			if err := r.bumpTeamVersion(teamID, expectedTeamVersion); err != nil {
				return err
			}
			site.Version++
			site.Appointments = append(site.Appointments[:i], site.Appointments[i+1:]...)
			r.sites[siteID] = site
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (r *MemorySiteRepository) ReplaceAppointments(_ context.Context, siteID string, appointments []persistence.Appointment, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	site, ok := r.sites[siteID]
	if !ok {
		return persistence.ErrNotFound
	}
	if site.Version != expectedVersion {
		return persistence.ErrVersionConflict
	}
	if r.teams != nil {
		touched := make(map[string]struct{})
		for _, appointment := range site.Appointments {
			touched[appointment.TeamID] = struct{}{}
		}
		for _, appointment := range appointments {
			touched[appointment.TeamID] = struct{}{}
		}
		r.teams.touchVersions(touched)
	}
	site.Version++
	site.Appointments = append([]persistence.Appointment(nil), appointments...)
	r.sites[siteID] = site
	return nil
}

// bumpTeamVersion mirrors the store's team guard: advance iff the expected
// version matches, skip teams that no longer exist.
func (r *MemorySiteRepository) bumpTeamVersion(teamID string, expectedVersion int64) error {
	if r.teams == nil || teamID == "" {
		return nil
	}
	return r.teams.bumpVersion(teamID, expectedVersion)
}

func (r *MemorySiteRepository) ListTeamAppointments(_ context.Context, teamID string, filter persistence.AppointmentFilter) ([]persistence.TeamAppointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []persistence.TeamAppointment
	for _, site := range r.sites {
		for _, appointment := range site.Appointments {
			if appointment.TeamID != teamID || !matchesFilter(appointment.Start, filter) {
				continue
			}
			out = append(out, persistence.TeamAppointment{
				SiteID: site.ID,
				TeamID: appointment.TeamID,
				Start:  appointment.Start,
				End:    appointment.End,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].SiteID < out[j].SiteID
	})
	return out, nil
}

func (r *MemorySiteRepository) CountTeamAppointments(ctx context.Context, teamID string, filter persistence.AppointmentFilter) (int, error) {
	appointments, err := r.ListTeamAppointments(ctx, teamID, filter)
	if err != nil {
		return 0, err
	}
	return len(appointments), nil
}

func matchesFilter(start time.Time, filter persistence.AppointmentFilter) bool {
	if filter.StartsAfter != nil && start.Before(*filter.StartsAfter) {
		return false
	}
	if filter.EndsBefore != nil && !start.Before(*filter.EndsBefore) {
		return false
	}
	return true
}

func cloneSite(site persistence.Site) persistence.Site {
	site.Appointments = append([]persistence.Appointment(nil), site.Appointments...)
	return site
}

// MemoryTeamRepository is an in-memory persistence.TeamRepository.
type MemoryTeamRepository struct {
	mu    sync.Mutex
	teams map[string]persistence.Team
}

// NewMemoryTeamRepository returns an empty in-memory team repository.
func NewMemoryTeamRepository() *MemoryTeamRepository {
	return &MemoryTeamRepository{teams: make(map[string]persistence.Team)}
}

func (r *MemoryTeamRepository) CreateTeam(_ context.Context, team persistence.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[team.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range r.teams {
		if existing.Name == team.Name || existing.InviteCode == team.InviteCode {
			return persistence.ErrDuplicate
		}
		for _, member := range existing.Members {
			for _, candidate := range team.Members {
				if member == candidate {
					return persistence.ErrDuplicate
				}
			}
		}
	}
	r.teams[team.ID] = cloneTeam(team)
	return nil
}

func (r *MemoryTeamRepository) UpdateTeam(_ context.Context, team persistence.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.teams[team.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	// The version moves only with booking commits, never with detail updates.
	team.Version = stored.Version
	r.teams[team.ID] = cloneTeam(team)
	return nil
}

func (r *MemoryTeamRepository) GetTeam(_ context.Context, id string) (persistence.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	team, ok := r.teams[id]
	if !ok {
		return persistence.Team{}, persistence.ErrNotFound
	}
	return cloneTeam(team), nil
}

func (r *MemoryTeamRepository) GetTeamByInviteCode(_ context.Context, code string) (persistence.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, team := range r.teams {
		if team.InviteCode == code {
			return cloneTeam(team), nil
		}
	}
	return persistence.Team{}, persistence.ErrNotFound
}

func (r *MemoryTeamRepository) FindTeamByMember(_ context.Context, userID string) (persistence.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, team := range r.teams {
		for _, member := range team.Members {
			if member == userID {
				return cloneTeam(team), nil
			}
		}
	}
	return persistence.Team{}, persistence.ErrNotFound
}

func (r *MemoryTeamRepository) ListTeams(_ context.Context) ([]persistence.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]persistence.Team, 0, len(r.teams))
	for _, team := range r.teams {
		out = append(out, cloneTeam(team))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryTeamRepository) DeleteTeam(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.teams, id)
	return nil
}

func (r *MemoryTeamRepository) bumpVersion(teamID string, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	team, ok := r.teams[teamID]
	if !ok {
		return nil
	}
	if team.Version != expectedVersion {
		return persistence.ErrVersionConflict
	}
	team.Version++
	r.teams[teamID] = team
	return nil
}

func (r *MemoryTeamRepository) touchVersions(teamIDs map[string]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for teamID := range teamIDs {
		team, ok := r.teams[teamID]
		if !ok {
			continue
		}
		team.Version++
		r.teams[teamID] = team
	}
}

func cloneTeam(team persistence.Team) persistence.Team {
	team.Members = append([]string(nil), team.Members...)
	return team
}

// MemoryUserRepository is an in-memory persistence.UserRepository.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]persistence.User
}

// NewMemoryUserRepository returns an empty in-memory user repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]persistence.User)}
}

func (r *MemoryUserRepository) CreateUser(_ context.Context, user persistence.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return persistence.ErrDuplicate
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *MemoryUserRepository) UpdateUser(_ context.Context, user persistence.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.users[user.ID] = user
	return nil
}

func (r *MemoryUserRepository) GetUser(_ context.Context, id string) (persistence.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetUserByEmail(_ context.Context, email string) (persistence.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (r *MemoryUserRepository) ListUsers(_ context.Context) ([]persistence.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]persistence.User, 0, len(r.users))
	for _, user := range r.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (r *MemoryUserRepository) DeleteUser(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.users, id)
	return nil
}
