package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/clubsite/internal/persistence"
)

func newTestPool(t *testing.T) *ConnectionPool {
	t.Helper()

	pool, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	require.NoError(t, pool.Migrate(context.Background()))
	return pool
}

func testUser(id string) persistence.User {
	now := time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	return persistence.User{
		ID:           id,
		Email:        id + "@club.example",
		DisplayName:  "User " + id,
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func testSite(id string) persistence.Site {
	now := time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	return persistence.Site{
		ID:                 id,
		Name:               "Site " + id,
		Description:        "practice ground",
		Capacity:           2,
		MinDurationMinutes: 30,
		MaxDurationMinutes: 120,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestUserRepository_CRUD(t *testing.T) {
	pool := newTestPool(t)
	repo := NewUserRepository(pool)
	ctx := context.Background()

	user := testUser("u1")
	require.NoError(t, repo.CreateUser(ctx, user))

	got, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)
	assert.False(t, got.IsAdmin)

	byEmail, err := repo.GetUserByEmail(ctx, "U1@CLUB.EXAMPLE")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	got.DisplayName = "Renamed"
	got.IsAdmin = true
	require.NoError(t, repo.UpdateUser(ctx, got))

	updated, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.DisplayName)
	assert.True(t, updated.IsAdmin)

	require.NoError(t, repo.DeleteUser(ctx, "u1"))
	_, err = repo.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	pool := newTestPool(t)
	repo := NewUserRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, testUser("u1")))

	dup := testUser("u2")
	dup.Email = "u1@club.example"
	assert.ErrorIs(t, repo.CreateUser(ctx, dup), persistence.ErrDuplicate)
}

func TestTeamRepository_MembershipIsExclusive(t *testing.T) {
	pool := newTestPool(t)
	users := NewUserRepository(pool)
	teams := NewTeamRepository(pool)
	ctx := context.Background()

	require.NoError(t, users.CreateUser(ctx, testUser("captain")))
	require.NoError(t, users.CreateUser(ctx, testUser("member")))

	now := time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	team := persistence.Team{
		ID:         "t1",
		Name:       "Eagles",
		CaptainID:  "captain",
		InviteCode: "code-1",
		Members:    []string{"captain", "member"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, teams.CreateTeam(ctx, team))

	got, err := teams.FindTeamByMember(ctx, "member")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, []string{"captain", "member"}, got.Members)

	byCode, err := teams.GetTeamByInviteCode(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "t1", byCode.ID)

	// A second team cannot claim a user who already belongs to one.
	rival := persistence.Team{
		ID:         "t2",
		Name:       "Hawks",
		CaptainID:  "captain",
		InviteCode: "code-2",
		Members:    []string{"member"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	assert.ErrorIs(t, teams.CreateTeam(ctx, rival), persistence.ErrDuplicate)

	// The failed insert must not leave a partial team behind.
	_, err = teams.GetTeam(ctx, "t2")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestTeamRepository_UpdateReplacesMembers(t *testing.T) {
	pool := newTestPool(t)
	users := NewUserRepository(pool)
	teams := NewTeamRepository(pool)
	ctx := context.Background()

	require.NoError(t, users.CreateUser(ctx, testUser("captain")))
	require.NoError(t, users.CreateUser(ctx, testUser("joiner")))

	now := time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	team := persistence.Team{
		ID:         "t1",
		Name:       "Eagles",
		CaptainID:  "captain",
		InviteCode: "code-1",
		Members:    []string{"captain"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, teams.CreateTeam(ctx, team))

	team.Members = []string{"captain", "joiner"}
	require.NoError(t, teams.UpdateTeam(ctx, team))

	got, err := teams.GetTeam(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"captain", "joiner"}, got.Members)
}

func TestSiteRepository_CRUD(t *testing.T) {
	pool := newTestPool(t)
	repo := NewSiteRepository(pool)
	ctx := context.Background()

	site := testSite("s1")
	require.NoError(t, repo.CreateSite(ctx, site))

	got, err := repo.GetSite(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Version)
	assert.Empty(t, got.Appointments)

	byName, err := repo.GetSiteByName(ctx, "Site s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", byName.ID)

	got.Capacity = 3
	require.NoError(t, repo.UpdateSiteDetails(ctx, got))

	updated, err := repo.GetSite(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Capacity)
	assert.Equal(t, int64(0), updated.Version, "detail updates must not touch the version")

	require.NoError(t, repo.DeleteSite(ctx, "s1"))
	_, err = repo.GetSite(ctx, "s1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestSiteRepository_AppendAppointmentBumpsVersion(t *testing.T) {
	pool := newTestPool(t)
	repo := NewSiteRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.CreateSite(ctx, testSite("s1")))

	start := time.Date(2024, 5, 21, 10, 0, 0, 0, time.UTC)
	appointment := persistence.Appointment{TeamID: "t1", Start: start, End: start.Add(time.Hour)}
	require.NoError(t, repo.AppendAppointment(ctx, "s1", appointment, 0, 0))

	got, err := repo.GetSite(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	require.Len(t, got.Appointments, 1)
	assert.Equal(t, "t1", got.Appointments[0].TeamID)
	assert.True(t, got.Appointments[0].Start.Equal(start))
}

func TestSiteRepository_StaleVersionIsRejected(t *testing.T) {
	pool := newTestPool(t)
	repo := NewSiteRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.CreateSite(ctx, testSite("s1")))

	start := time.Date(2024, 5, 21, 10, 0, 0, 0, time.UTC)
	first := persistence.Appointment{TeamID: "t1", Start: start, End: start.Add(time.Hour)}
	require.NoError(t, repo.AppendAppointment(ctx, "s1", first, 0, 0))

	// Replaying expectedVersion 0 simulates a lost race.
	second := persistence.Appointment{TeamID: "t2", Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour)}
	err := repo.AppendAppointment(ctx, "s1", second, 0, 0)
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)

	got, err := repo.GetSite(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got.Appointments, 1, "a conflicting commit must not change the set")
	assert.Equal(t, int64(1), got.Version)
}

func TestSiteRepository_AppendToMissingSite(t *testing.T) {
	pool := newTestPool(t)
	repo := NewSiteRepository(pool)
	ctx := context.Background()

	start := time.Date(2024, 5, 21, 10, 0, 0, 0, time.UTC)
	appointment := persistence.Appointment{TeamID: "t1", Start: start, End: start.Add(time.Hour)}
	err := repo.AppendAppointment(ctx, "missing", appointment, 0, 0)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestSiteRepository_RemoveAppointment(t *testing.T) {
	pool := newTestPool(t)
	repo := NewSiteRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.CreateSite(ctx, testSite("s1")))

	start := time.Date(2024, 5, 21, 10, 0, 0, 0, time.UTC)
	appointment := persistence.Appointment{TeamID: "t1", Start: start, End: start.Add(time.Hour)}
	require.NoError(t, repo.AppendAppointment(ctx, "s1", appointment, 0, 0))

	require.NoError(t, repo.RemoveAppointment(ctx, "s1", "t1", start, 1, 0))

	got, err := repo.GetSite(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got.Appointments)
	assert.Equal(t, int64(2), got.Version)

	// Removing an appointment that is not there rolls back the version bump.
	err = repo.RemoveAppointment(ctx, "s1", "t1", start, 2, 0)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	got, err = repo.GetSite(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestSiteRepository_ReplaceAppointments(t *testing.T) {
	pool := newTestPool(t)
	repo := NewSiteRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.CreateSite(ctx, testSite("s1")))

	start := time.Date(2024, 5, 21, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AppendAppointment(ctx, "s1",
		persistence.Appointment{TeamID: "t1", Start: start, End: start.Add(time.Hour)}, 0, 0))

	replacement := []persistence.Appointment{
		{TeamID: "t2", Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour)},
		{TeamID: "t3", Start: start.Add(4 * time.Hour), End: start.Add(5 * time.Hour)},
	}
	require.NoError(t, repo.ReplaceAppointments(ctx, "s1", replacement, 1))

	got, err := repo.GetSite(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	require.Len(t, got.Appointments, 2)
	assert.Equal(t, "t2", got.Appointments[0].TeamID)
	assert.Equal(t, "t3", got.Appointments[1].TeamID)
}

func TestSiteRepository_TeamAppointmentQueries(t *testing.T) {
	pool := newTestPool(t)
	repo := NewSiteRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.CreateSite(ctx, testSite("s1")))
	require.NoError(t, repo.CreateSite(ctx, testSite("s2")))

	day := time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AppendAppointment(ctx, "s1",
		persistence.Appointment{TeamID: "t1", Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)}, 0, 0))
	require.NoError(t, repo.AppendAppointment(ctx, "s2",
		persistence.Appointment{TeamID: "t1", Start: day.Add(14 * time.Hour), End: day.Add(15 * time.Hour)}, 0, 0))
	require.NoError(t, repo.AppendAppointment(ctx, "s1",
		persistence.Appointment{TeamID: "t2", Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)}, 1, 0))

	all, err := repo.ListTeamAppointments(ctx, "t1", persistence.AppointmentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s1", all[0].SiteID)
	assert.Equal(t, "s2", all[1].SiteID)

	noon := day.Add(12 * time.Hour)
	afternoon, err := repo.ListTeamAppointments(ctx, "t1", persistence.AppointmentFilter{StartsAfter: &noon})
	require.NoError(t, err)
	require.Len(t, afternoon, 1)
	assert.Equal(t, "s2", afternoon[0].SiteID)

	nextDay := day.Add(24 * time.Hour)
	count, err := repo.CountTeamAppointments(ctx, "t1", persistence.AppointmentFilter{
		StartsAfter: &day,
		EndsBefore:  &nextDay,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSiteRepository_TeamVersionGuard(t *testing.T) {
	pool := newTestPool(t)
	users := NewUserRepository(pool)
	teams := NewTeamRepository(pool)
	repo := NewSiteRepository(pool)
	ctx := context.Background()

	require.NoError(t, users.CreateUser(ctx, testUser("captain")))
	now := time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	require.NoError(t, teams.CreateTeam(ctx, persistence.Team{
		ID:         "t1",
		Name:       "Eagles",
		CaptainID:  "captain",
		InviteCode: "code-1",
		Members:    []string{"captain"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}))
	require.NoError(t, repo.CreateSite(ctx, testSite("s1")))
	require.NoError(t, repo.CreateSite(ctx, testSite("s2")))

	start := time.Date(2024, 5, 21, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AppendAppointment(ctx, "s1",
		persistence.Appointment{TeamID: "t1", Start: start, End: start.Add(time.Hour)}, 0, 0))

	team, err := teams.GetTeam(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), team.Version)

	// A commit on another site that validated against the team state from
	// before the first commit must not land.
	err = repo.AppendAppointment(ctx, "s2",
		persistence.Appointment{TeamID: "t1", Start: start, End: start.Add(time.Hour)}, 0, 0)
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)

	appointments, err := repo.ListTeamAppointments(ctx, "t1", persistence.AppointmentFilter{})
	require.NoError(t, err)
	assert.Len(t, appointments, 1)

	// With the current team version the second site accepts a later window.
	require.NoError(t, repo.AppendAppointment(ctx, "s2",
		persistence.Appointment{TeamID: "t1", Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour)}, 0, 1))

	// Removals advance the guard too.
	require.NoError(t, repo.RemoveAppointment(ctx, "s1", "t1", start, 1, 2))
	team, err = teams.GetTeam(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), team.Version)
}

func TestSiteRepository_FractionalSecondStartTimes(t *testing.T) {
	pool := newTestPool(t)
	repo := NewSiteRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.CreateSite(ctx, testSite("s1")))

	day := time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC)
	onBoundary := persistence.Appointment{
		TeamID: "t1",
		Start:  day.Add(500 * time.Millisecond),
		End:    day.Add(time.Hour),
	}
	require.NoError(t, repo.AppendAppointment(ctx, "s1", onBoundary, 0, 0))
	require.NoError(t, repo.AppendAppointment(ctx, "s1",
		persistence.Appointment{TeamID: "t1", Start: day.Add(2 * time.Hour), End: day.Add(3 * time.Hour)}, 1, 0))

	// A start a fraction of a second past midnight still counts for that day.
	nextDay := day.Add(24 * time.Hour)
	count, err := repo.CountTeamAppointments(ctx, "t1", persistence.AppointmentFilter{
		StartsAfter: &day,
		EndsBefore:  &nextDay,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	all, err := repo.ListTeamAppointments(ctx, "t1", persistence.AppointmentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Start.Equal(onBoundary.Start), "fractional-second start must sort first")
}

func TestSiteRepository_DeleteCascadesAppointments(t *testing.T) {
	pool := newTestPool(t)
	repo := NewSiteRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.CreateSite(ctx, testSite("s1")))

	start := time.Date(2024, 5, 21, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AppendAppointment(ctx, "s1",
		persistence.Appointment{TeamID: "t1", Start: start, End: start.Add(time.Hour)}, 0, 0))

	require.NoError(t, repo.DeleteSite(ctx, "s1"))

	appointments, err := repo.ListTeamAppointments(ctx, "t1", persistence.AppointmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, appointments)
}
