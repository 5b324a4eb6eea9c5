package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/clubsite/internal/booking"
	"github.com/example/clubsite/internal/persistence"
	"github.com/example/clubsite/internal/testfixtures"
)

type stubSiteStore struct {
	site    persistence.Site
	siteErr error

	teamAppointments []persistence.TeamAppointment
	teamCount        int

	commitErrs []error
	appended   []persistence.Appointment
	removed    []string
	replaced   [][]persistence.Appointment
}

func (s *stubSiteStore) GetSite(ctx context.Context, id string) (persistence.Site, error) {
	if s.siteErr != nil {
		return persistence.Site{}, s.siteErr
	}
	if id != s.site.ID {
		return persistence.Site{}, persistence.ErrNotFound
	}
	return s.site, nil
}

func (s *stubSiteStore) nextCommitErr() error {
	if len(s.commitErrs) == 0 {
		return nil
	}
	err := s.commitErrs[0]
	s.commitErrs = s.commitErrs[1:]
	return err
}

func (s *stubSiteStore) AppendAppointment(ctx context.Context, siteID string, appointment persistence.Appointment, expectedVersion, expectedTeamVersion int64) error {
	if err := s.nextCommitErr(); err != nil {
		if errors.Is(err, persistence.ErrVersionConflict) {
			s.site.Version++
		}
		return err
	}
	if expectedVersion != s.site.Version {
		return persistence.ErrVersionConflict
	}
	s.site.Version++
	s.site.Appointments = append(s.site.Appointments, appointment)
	s.appended = append(s.appended, appointment)
	return nil
}

func (s *stubSiteStore) RemoveAppointment(ctx context.Context, siteID, teamID string, start time.Time, expectedVersion, expectedTeamVersion int64) error {
	if err := s.nextCommitErr(); err != nil {
		if errors.Is(err, persistence.ErrVersionConflict) {
			s.site.Version++
		}
		return err
	}
	if expectedVersion != s.site.Version {
		return persistence.ErrVersionConflict
	}
	s.site.Version++
	s.removed = append(s.removed, teamID)
	return nil
}

func (s *stubSiteStore) ReplaceAppointments(ctx context.Context, siteID string, appointments []persistence.Appointment, expectedVersion int64) error {
	if err := s.nextCommitErr(); err != nil {
		if errors.Is(err, persistence.ErrVersionConflict) {
			s.site.Version++
		}
		return err
	}
	if expectedVersion != s.site.Version {
		return persistence.ErrVersionConflict
	}
	s.site.Version++
	s.site.Appointments = appointments
	s.replaced = append(s.replaced, appointments)
	return nil
}

func (s *stubSiteStore) ListTeamAppointments(ctx context.Context, teamID string, filter persistence.AppointmentFilter) ([]persistence.TeamAppointment, error) {
	var out []persistence.TeamAppointment
	for _, appointment := range s.teamAppointments {
		if appointment.TeamID == teamID {
			out = append(out, appointment)
		}
	}
	return out, nil
}

func (s *stubSiteStore) CountTeamAppointments(ctx context.Context, teamID string, filter persistence.AppointmentFilter) (int, error) {
	return s.teamCount, nil
}

type stubTeamDirectory struct {
	teams     map[string]persistence.Team
	byMember  map[string]string
	memberErr error
}

func (s *stubTeamDirectory) GetTeam(ctx context.Context, id string) (persistence.Team, error) {
	team, ok := s.teams[id]
	if !ok {
		return persistence.Team{}, persistence.ErrNotFound
	}
	return team, nil
}

func (s *stubTeamDirectory) FindTeamByMember(ctx context.Context, userID string) (persistence.Team, error) {
	if s.memberErr != nil {
		return persistence.Team{}, s.memberErr
	}
	teamID, ok := s.byMember[userID]
	if !ok {
		return persistence.Team{}, persistence.ErrNotFound
	}
	return s.teams[teamID], nil
}

type recordingRecorder struct {
	outcomes []string
	retries  int
}

func (r *recordingRecorder) RecordAdmission(outcome string) { r.outcomes = append(r.outcomes, outcome) }
func (r *recordingRecorder) RecordConflictRetry()           { r.retries++ }

func bookingFixture() (*stubSiteStore, *stubTeamDirectory) {
	sites := &stubSiteStore{
		site: persistence.Site{
			ID:                 "site-1",
			Name:               "North Field",
			Capacity:           1,
			MinDurationMinutes: 30,
			MaxDurationMinutes: 120,
		},
	}
	teams := &stubTeamDirectory{
		teams: map[string]persistence.Team{
			"team-1": {ID: "team-1", CaptainID: "captain-1", Members: []string{"captain-1", "member-1"}},
			"team-2": {ID: "team-2", CaptainID: "captain-2", Members: []string{"captain-2"}},
		},
		byMember: map[string]string{
			"captain-1": "team-1",
			"member-1":  "team-1",
			"captain-2": "team-2",
		},
	}
	return sites, teams
}

func fixedNow() time.Time {
	return time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
}

func TestBookingService_ProposeAppointment(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC)

	t.Run("captain books a free window", func(t *testing.T) {
		t.Parallel()
		sites, teams := bookingFixture()
		recorder := &recordingRecorder{}
		svc := NewBookingService(sites, teams, recorder, QuotaPolicy{MaxAppointments: 3, Scope: QuotaScopeDay}, nil, fixedNow)

		got, err := svc.ProposeAppointment(context.Background(), ProposeAppointmentParams{
			Principal: Principal{UserID: "captain-1"},
			SiteID:    "site-1",
			Start:     day.Add(10 * time.Hour),
			End:       day.Add(11 * time.Hour),
		})
		if err != nil {
			t.Fatalf("ProposeAppointment returned error: %v", err)
		}
		if got.TeamID != "team-1" || got.SiteID != "site-1" {
			t.Fatalf("unexpected appointment: %+v", got)
		}
		if len(sites.appended) != 1 {
			t.Fatalf("expected one committed appointment, got %d", len(sites.appended))
		}
		if len(recorder.outcomes) != 1 || recorder.outcomes[0] != "accepted" {
			t.Fatalf("unexpected recorded outcomes: %v", recorder.outcomes)
		}
	})

	t.Run("rejections carry the reason code", func(t *testing.T) {
		t.Parallel()
		cases := []struct {
			name   string
			user   string
			setup  func(sites *stubSiteStore, teams *stubTeamDirectory)
			params ProposeAppointmentParams
			want   booking.Reason
		}{
			{
				name: "missing end instant",
				params: ProposeAppointmentParams{
					Principal: Principal{UserID: "captain-1"},
					SiteID:    "site-1",
					Start:     day.Add(10 * time.Hour),
				},
				want: booking.ReasonMissingData,
			},
			{
				name: "unknown site",
				params: ProposeAppointmentParams{
					Principal: Principal{UserID: "captain-1"},
					SiteID:    "missing",
					Start:     day.Add(10 * time.Hour),
					End:       day.Add(11 * time.Hour),
				},
				want: booking.ReasonSiteNotFound,
			},
			{
				name: "user without a team",
				params: ProposeAppointmentParams{
					Principal: Principal{UserID: "stranger"},
					SiteID:    "site-1",
					Start:     day.Add(10 * time.Hour),
					End:       day.Add(11 * time.Hour),
				},
				want: booking.ReasonNotATeamMember,
			},
			{
				name: "plain member is not a captain",
				params: ProposeAppointmentParams{
					Principal: Principal{UserID: "member-1"},
					SiteID:    "site-1",
					Start:     day.Add(10 * time.Hour),
					End:       day.Add(11 * time.Hour),
				},
				want: booking.ReasonInsufficientPermission,
			},
			{
				name: "captain acting for another team",
				params: ProposeAppointmentParams{
					Principal: Principal{UserID: "captain-1"},
					SiteID:    "site-1",
					TeamID:    "team-2",
					Start:     day.Add(10 * time.Hour),
					End:       day.Add(11 * time.Hour),
				},
				want: booking.ReasonInsufficientPermission,
			},
			{
				name: "window longer than the maximum",
				params: ProposeAppointmentParams{
					Principal: Principal{UserID: "captain-1"},
					SiteID:    "site-1",
					Start:     day.Add(10 * time.Hour),
					End:       day.Add(13 * time.Hour),
				},
				want: booking.ReasonInvalidDuration,
			},
			{
				name: "team already booked elsewhere in the window",
				setup: func(sites *stubSiteStore, teams *stubTeamDirectory) {
					sites.teamAppointments = []persistence.TeamAppointment{
						{SiteID: "site-2", TeamID: "team-1", Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
					}
				},
				params: ProposeAppointmentParams{
					Principal: Principal{UserID: "captain-1"},
					SiteID:    "site-1",
					Start:     day.Add(10*time.Hour + 30*time.Minute),
					End:       day.Add(11*time.Hour + 30*time.Minute),
				},
				want: booking.ReasonTeamDoubleBooked,
			},
			{
				name: "quota already reached",
				setup: func(sites *stubSiteStore, teams *stubTeamDirectory) {
					sites.teamCount = 3
				},
				params: ProposeAppointmentParams{
					Principal: Principal{UserID: "captain-1"},
					SiteID:    "site-1",
					Start:     day.Add(10 * time.Hour),
					End:       day.Add(11 * time.Hour),
				},
				want: booking.ReasonQuotaExceeded,
			},
			{
				name: "site full in the window",
				setup: func(sites *stubSiteStore, teams *stubTeamDirectory) {
					sites.site.Appointments = []persistence.Appointment{
						{TeamID: "team-2", Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
					}
				},
				params: ProposeAppointmentParams{
					Principal: Principal{UserID: "captain-1"},
					SiteID:    "site-1",
					Start:     day.Add(10*time.Hour + 30*time.Minute),
					End:       day.Add(11*time.Hour + 30*time.Minute),
				},
				want: booking.ReasonCapacityExceeded,
			},
		}

		for _, tc := range cases {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()
				sites, teams := bookingFixture()
				if tc.setup != nil {
					tc.setup(sites, teams)
				}
				svc := NewBookingService(sites, teams, nil, QuotaPolicy{MaxAppointments: 3, Scope: QuotaScopeDay}, nil, fixedNow)

				_, err := svc.ProposeAppointment(context.Background(), tc.params)
				reason, ok := RejectionReason(err)
				if !ok {
					t.Fatalf("expected a rejection, got %v", err)
				}
				if reason != tc.want {
					t.Fatalf("expected reason %q, got %q", tc.want, reason)
				}
				if len(sites.appended) != 0 {
					t.Fatalf("rejected request must not commit")
				}
			})
		}
	})

	t.Run("admin books on behalf of another team", func(t *testing.T) {
		t.Parallel()
		sites, teams := bookingFixture()
		svc := NewBookingService(sites, teams, nil, QuotaPolicy{MaxAppointments: 3, Scope: QuotaScopeDay}, nil, fixedNow)

		got, err := svc.ProposeAppointment(context.Background(), ProposeAppointmentParams{
			Principal: Principal{UserID: "admin-1", IsAdmin: true},
			SiteID:    "site-1",
			TeamID:    "team-2",
			Start:     day.Add(10 * time.Hour),
			End:       day.Add(11 * time.Hour),
		})
		if err != nil {
			t.Fatalf("ProposeAppointment returned error: %v", err)
		}
		if got.TeamID != "team-2" {
			t.Fatalf("expected booking for team-2, got %q", got.TeamID)
		}
	})

	t.Run("stale version is retried once and succeeds", func(t *testing.T) {
		t.Parallel()
		sites, teams := bookingFixture()
		sites.commitErrs = []error{persistence.ErrVersionConflict}
		recorder := &recordingRecorder{}
		svc := NewBookingService(sites, teams, recorder, QuotaPolicy{MaxAppointments: 3, Scope: QuotaScopeDay}, nil, fixedNow)

		_, err := svc.ProposeAppointment(context.Background(), ProposeAppointmentParams{
			Principal: Principal{UserID: "captain-1"},
			SiteID:    "site-1",
			Start:     day.Add(10 * time.Hour),
			End:       day.Add(11 * time.Hour),
		})
		if err != nil {
			t.Fatalf("ProposeAppointment returned error: %v", err)
		}
		if recorder.retries != 1 {
			t.Fatalf("expected one recorded retry, got %d", recorder.retries)
		}
		if len(sites.appended) != 1 {
			t.Fatalf("expected the retried commit to land")
		}
	})

	t.Run("second conflict surfaces as version-conflict", func(t *testing.T) {
		t.Parallel()
		sites, teams := bookingFixture()
		sites.commitErrs = []error{persistence.ErrVersionConflict, persistence.ErrVersionConflict}
		svc := NewBookingService(sites, teams, nil, QuotaPolicy{MaxAppointments: 3, Scope: QuotaScopeDay}, nil, fixedNow)

		_, err := svc.ProposeAppointment(context.Background(), ProposeAppointmentParams{
			Principal: Principal{UserID: "captain-1"},
			SiteID:    "site-1",
			Start:     day.Add(10 * time.Hour),
			End:       day.Add(11 * time.Hour),
		})
		reason, ok := RejectionReason(err)
		if !ok || reason != booking.ReasonVersionConflict {
			t.Fatalf("expected version-conflict rejection, got %v", err)
		}
	})

	t.Run("infrastructure failure is not a rejection", func(t *testing.T) {
		t.Parallel()
		sites, teams := bookingFixture()
		sites.siteErr = errors.New("disk exploded")
		svc := NewBookingService(sites, teams, nil, QuotaPolicy{MaxAppointments: 3, Scope: QuotaScopeDay}, nil, fixedNow)

		_, err := svc.ProposeAppointment(context.Background(), ProposeAppointmentParams{
			Principal: Principal{UserID: "captain-1"},
			SiteID:    "site-1",
			Start:     day.Add(10 * time.Hour),
			End:       day.Add(11 * time.Hour),
		})
		if err == nil {
			t.Fatalf("expected an error")
		}
		if _, ok := RejectionReason(err); ok {
			t.Fatalf("infrastructure failure must not surface as a rejection: %v", err)
		}
	})
}

// holdCommitsStore delays every commit until two proposals have reached the
// commit step, forcing the interleaving where both admission checks ran
// against a state missing the other's appointment.
type holdCommitsStore struct {
	*testfixtures.MemorySiteRepository
	arrivals int32
	release  chan struct{}
}

func (s *holdCommitsStore) AppendAppointment(ctx context.Context, siteID string, appointment persistence.Appointment, expectedVersion, expectedTeamVersion int64) error {
	if atomic.AddInt32(&s.arrivals, 1) == 2 {
		close(s.release)
	}
	<-s.release
	return s.MemorySiteRepository.AppendAppointment(ctx, siteID, appointment, expectedVersion, expectedTeamVersion)
}

func TestBookingService_ConcurrentProposalsForOneTeam(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	day := time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC)

	teams := testfixtures.NewMemoryTeamRepository()
	if err := teams.CreateTeam(ctx, persistence.Team{
		ID:         "team-1",
		Name:       "Eagles",
		CaptainID:  "captain-1",
		InviteCode: "code-1",
		Members:    []string{"captain-1"},
	}); err != nil {
		t.Fatalf("CreateTeam returned error: %v", err)
	}

	sites := testfixtures.NewMemorySiteRepository(teams)
	for _, id := range []string{"site-a", "site-b"} {
		if err := sites.CreateSite(ctx, persistence.Site{
			ID:                 id,
			Name:               "Site " + id,
			Capacity:           1,
			MinDurationMinutes: 30,
			MaxDurationMinutes: 120,
		}); err != nil {
			t.Fatalf("CreateSite returned error: %v", err)
		}
	}

	store := &holdCommitsStore{MemorySiteRepository: sites, release: make(chan struct{})}
	svc := NewBookingService(store, teams, nil, QuotaPolicy{MaxAppointments: 3, Scope: QuotaScopeDay}, nil, fixedNow)

	// The same team proposes the same window on two different sites at once.
	// The site versions alone cannot see this race; the team version must.
	results := make(chan error, 2)
	for _, siteID := range []string{"site-a", "site-b"} {
		go func(siteID string) {
			_, err := svc.ProposeAppointment(ctx, ProposeAppointmentParams{
				Principal: Principal{UserID: "captain-1"},
				SiteID:    siteID,
				Start:     day.Add(10 * time.Hour),
				End:       day.Add(11 * time.Hour),
			})
			results <- err
		}(siteID)
	}

	var accepted, doubleBooked int
	for i := 0; i < 2; i++ {
		err := <-results
		if err == nil {
			accepted++
			continue
		}
		reason, ok := RejectionReason(err)
		if !ok || reason != booking.ReasonTeamDoubleBooked {
			t.Fatalf("expected team-double-booked rejection, got %v", err)
		}
		doubleBooked++
	}
	if accepted != 1 || doubleBooked != 1 {
		t.Fatalf("expected one commit and one rejection, got %d accepted and %d rejected", accepted, doubleBooked)
	}

	committed, err := sites.ListTeamAppointments(ctx, "team-1", persistence.AppointmentFilter{})
	if err != nil {
		t.Fatalf("ListTeamAppointments returned error: %v", err)
	}
	if len(committed) != 1 {
		t.Fatalf("the team must end up holding one appointment, got %d", len(committed))
	}
}

func TestBookingService_CancelAppointment(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC)
	start := day.Add(10 * time.Hour)

	withAppointment := func() (*stubSiteStore, *stubTeamDirectory) {
		sites, teams := bookingFixture()
		sites.site.Version = 1
		sites.site.Appointments = []persistence.Appointment{
			{TeamID: "team-1", Start: start, End: start.Add(time.Hour)},
		}
		return sites, teams
	}

	t.Run("captain cancels their own appointment", func(t *testing.T) {
		t.Parallel()
		sites, teams := withAppointment()
		svc := NewBookingService(sites, teams, nil, QuotaPolicy{}, nil, fixedNow)

		err := svc.CancelAppointment(context.Background(), CancelAppointmentParams{
			Principal: Principal{UserID: "captain-1"},
			SiteID:    "site-1",
			Start:     start,
		})
		if err != nil {
			t.Fatalf("CancelAppointment returned error: %v", err)
		}
		if len(sites.removed) != 1 {
			t.Fatalf("expected one removal, got %d", len(sites.removed))
		}
	})

	t.Run("missing appointment reports not-found before permission", func(t *testing.T) {
		t.Parallel()
		sites, teams := bookingFixture()
		svc := NewBookingService(sites, teams, nil, QuotaPolicy{}, nil, fixedNow)

		err := svc.CancelAppointment(context.Background(), CancelAppointmentParams{
			Principal: Principal{UserID: "member-1"},
			SiteID:    "site-1",
			Start:     start,
		})
		reason, ok := RejectionReason(err)
		if !ok || reason != booking.ReasonNotFound {
			t.Fatalf("expected not-found rejection, got %v", err)
		}
	})

	t.Run("plain member cannot cancel", func(t *testing.T) {
		t.Parallel()
		sites, teams := withAppointment()
		svc := NewBookingService(sites, teams, nil, QuotaPolicy{}, nil, fixedNow)

		err := svc.CancelAppointment(context.Background(), CancelAppointmentParams{
			Principal: Principal{UserID: "member-1"},
			SiteID:    "site-1",
			Start:     start,
		})
		reason, ok := RejectionReason(err)
		if !ok || reason != booking.ReasonInsufficientPermission {
			t.Fatalf("expected insufficient-permission rejection, got %v", err)
		}
	})

	t.Run("admin cancels any team's appointment", func(t *testing.T) {
		t.Parallel()
		sites, teams := withAppointment()
		svc := NewBookingService(sites, teams, nil, QuotaPolicy{}, nil, fixedNow)

		err := svc.CancelAppointment(context.Background(), CancelAppointmentParams{
			Principal: Principal{UserID: "admin-1", IsAdmin: true},
			SiteID:    "site-1",
			TeamID:    "team-1",
			Start:     start,
		})
		if err != nil {
			t.Fatalf("CancelAppointment returned error: %v", err)
		}
	})
}

func TestBookingService_ReviseAppointments(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC)

	t.Run("requires an administrator", func(t *testing.T) {
		t.Parallel()
		sites, teams := bookingFixture()
		svc := NewBookingService(sites, teams, nil, QuotaPolicy{}, nil, fixedNow)

		_, err := svc.ReviseAppointments(context.Background(), ReviseAppointmentsParams{
			Principal: Principal{UserID: "captain-1"},
			SiteID:    "site-1",
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("replaces the set with a normalized copy", func(t *testing.T) {
		t.Parallel()
		sites, teams := bookingFixture()
		svc := NewBookingService(sites, teams, nil, QuotaPolicy{}, nil, fixedNow)

		got, err := svc.ReviseAppointments(context.Background(), ReviseAppointmentsParams{
			Principal: Principal{UserID: "admin-1", IsAdmin: true},
			SiteID:    "site-1",
			Appointments: []Appointment{
				{TeamID: "team-2", Start: day.Add(14 * time.Hour), End: day.Add(15 * time.Hour)},
				{TeamID: "team-1", Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
			},
		})
		if err != nil {
			t.Fatalf("ReviseAppointments returned error: %v", err)
		}
		if len(got) != 2 || got[0].TeamID != "team-1" || got[1].TeamID != "team-2" {
			t.Fatalf("expected normalized order, got %+v", got)
		}
		if len(sites.replaced) != 1 {
			t.Fatalf("expected one replacement commit")
		}
	})

	t.Run("overlapping batch is rejected as invalid", func(t *testing.T) {
		t.Parallel()
		sites, teams := bookingFixture()
		svc := NewBookingService(sites, teams, nil, QuotaPolicy{}, nil, fixedNow)

		_, err := svc.ReviseAppointments(context.Background(), ReviseAppointmentsParams{
			Principal: Principal{UserID: "admin-1", IsAdmin: true},
			SiteID:    "site-1",
			Appointments: []Appointment{
				{TeamID: "team-1", Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
				{TeamID: "team-2", Start: day.Add(10*time.Hour + 30*time.Minute), End: day.Add(11*time.Hour + 30*time.Minute)},
			},
		})
		reason, ok := RejectionReason(err)
		if !ok || reason != booking.ReasonInvalidBatch {
			t.Fatalf("expected invalid-batch rejection, got %v", err)
		}
	})

	t.Run("unknown team in the batch is rejected", func(t *testing.T) {
		t.Parallel()
		sites, teams := bookingFixture()
		svc := NewBookingService(sites, teams, nil, QuotaPolicy{}, nil, fixedNow)

		_, err := svc.ReviseAppointments(context.Background(), ReviseAppointmentsParams{
			Principal: Principal{UserID: "admin-1", IsAdmin: true},
			SiteID:    "site-1",
			Appointments: []Appointment{
				{TeamID: "ghost-team", Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
			},
		})
		reason, ok := RejectionReason(err)
		if !ok || reason != booking.ReasonInvalidBatch {
			t.Fatalf("expected invalid-batch rejection, got %v", err)
		}
	})
}

func TestBookingService_Utilization(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC)

	sites, teams := bookingFixture()
	sites.site.Capacity = 3
	sites.site.Appointments = []persistence.Appointment{
		{TeamID: "team-1", Start: day.Add(10 * time.Hour), End: day.Add(12 * time.Hour)},
		{TeamID: "team-2", Start: day.Add(11 * time.Hour), End: day.Add(13 * time.Hour)},
	}
	svc := NewBookingService(sites, teams, nil, QuotaPolicy{}, nil, fixedNow)

	report, err := svc.Utilization(context.Background(), UtilizationParams{
		SiteID: "site-1",
		Start:  day.Add(9 * time.Hour),
		End:    day.Add(14 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Utilization returned error: %v", err)
	}
	if report.MaxOverlap != 2 {
		t.Fatalf("expected max overlap 2, got %d", report.MaxOverlap)
	}
	if report.Capacity != 3 {
		t.Fatalf("expected capacity 3, got %d", report.Capacity)
	}

	// Mutating the stored set without a version bump must still serve the
	// cached report for the same key.
	sites.site.Appointments = nil
	cached, err := svc.Utilization(context.Background(), UtilizationParams{
		SiteID: "site-1",
		Start:  day.Add(9 * time.Hour),
		End:    day.Add(14 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Utilization returned error: %v", err)
	}
	if cached.MaxOverlap != 2 {
		t.Fatalf("expected cached max overlap 2, got %d", cached.MaxOverlap)
	}

	// A version bump changes the key and recomputes.
	sites.site.Version++
	fresh, err := svc.Utilization(context.Background(), UtilizationParams{
		SiteID: "site-1",
		Start:  day.Add(9 * time.Hour),
		End:    day.Add(14 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Utilization returned error: %v", err)
	}
	if fresh.MaxOverlap != 0 {
		t.Fatalf("expected recomputed max overlap 0, got %d", fresh.MaxOverlap)
	}
}

func TestBookingService_ListTeamAppointments(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC)
	sites, teams := bookingFixture()
	sites.teamAppointments = []persistence.TeamAppointment{
		{SiteID: "site-1", TeamID: "team-1", Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
	}
	svc := NewBookingService(sites, teams, nil, QuotaPolicy{}, nil, fixedNow)

	t.Run("member lists their own team", func(t *testing.T) {
		t.Parallel()
		got, err := svc.ListTeamAppointments(context.Background(), ListTeamAppointmentsParams{
			Principal: Principal{UserID: "member-1"},
			TeamID:    "team-1",
		})
		if err != nil {
			t.Fatalf("ListTeamAppointments returned error: %v", err)
		}
		if len(got) != 1 || got[0].SiteID != "site-1" {
			t.Fatalf("unexpected appointments: %+v", got)
		}
	})

	t.Run("member cannot list another team", func(t *testing.T) {
		t.Parallel()
		_, err := svc.ListTeamAppointments(context.Background(), ListTeamAppointmentsParams{
			Principal: Principal{UserID: "member-1"},
			TeamID:    "team-2",
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("admin lists any team", func(t *testing.T) {
		t.Parallel()
		got, err := svc.ListTeamAppointments(context.Background(), ListTeamAppointmentsParams{
			Principal: Principal{UserID: "admin-1", IsAdmin: true},
			TeamID:    "team-1",
		})
		if err != nil {
			t.Fatalf("ListTeamAppointments returned error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected one appointment, got %d", len(got))
		}
	})
}
