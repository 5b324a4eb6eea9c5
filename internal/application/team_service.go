package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/clubsite/internal/persistence"
)

// TeamRepository captures the persistence operations needed by the team service.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team persistence.Team) error
	UpdateTeam(ctx context.Context, team persistence.Team) error
	GetTeam(ctx context.Context, id string) (persistence.Team, error)
	GetTeamByInviteCode(ctx context.Context, code string) (persistence.Team, error)
	FindTeamByMember(ctx context.Context, userID string) (persistence.Team, error)
	ListTeams(ctx context.Context) ([]persistence.Team, error)
	DeleteTeam(ctx context.Context, id string) error
}

// TeamService orchestrates team lifecycle and membership. A user belongs to at
// most one team; the creator of a team becomes its captain.
type TeamService struct {
	teams       TeamRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewTeamService wires dependencies for team operations.
func NewTeamService(teams TeamRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *TeamService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TeamService{teams: teams, idGenerator: idGenerator, now: now, logger: logger}
}

func (s *TeamService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TeamService", operation, attrs...)
}

// CreateTeam validates input and persists a new team with the caller as
// captain. Users who already belong to a team cannot create another.
func (s *TeamService) CreateTeam(ctx context.Context, params CreateTeamParams) (team Team, err error) {
	if s == nil || s.teams == nil {
		err = fmt.Errorf("team service not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateTeam", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create team", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("team_id", team.ID).InfoContext(ctx, "team created")
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(params.Input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, findErr := s.teams.FindTeamByMember(ctx, params.Principal.UserID); findErr == nil {
		err = ErrAlreadyExists
		return
	} else if !errors.Is(findErr, persistence.ErrNotFound) {
		err = findErr
		return
	}

	createdAt := s.now()
	record := persistence.Team{
		ID:          s.idGenerator(),
		Name:        strings.TrimSpace(params.Input.Name),
		Description: strings.TrimSpace(params.Input.Description),
		CaptainID:   params.Principal.UserID,
		Members:     []string{params.Principal.UserID},
		InviteCode:  s.idGenerator(),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	if err = s.teams.CreateTeam(ctx, record); err != nil {
		err = mapRepoError(err)
		return
	}

	team = toApplicationTeam(record, true)
	return
}

// JoinTeam adds the caller to the team holding the invite code. Users already
// on a team are refused.
func (s *TeamService) JoinTeam(ctx context.Context, params JoinTeamParams) (team Team, err error) {
	if s == nil || s.teams == nil {
		err = fmt.Errorf("team service not configured")
		return
	}

	logger := s.loggerWith(ctx, "JoinTeam", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to join team", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("team_id", team.ID).InfoContext(ctx, "member joined")
	}()

	if strings.TrimSpace(params.InviteCode) == "" {
		vErr := &ValidationError{}
		vErr.add("invite_code", "invite code is required")
		err = vErr
		return
	}

	if _, findErr := s.teams.FindTeamByMember(ctx, params.Principal.UserID); findErr == nil {
		err = ErrAlreadyExists
		return
	} else if !errors.Is(findErr, persistence.ErrNotFound) {
		err = findErr
		return
	}

	record, err := s.teams.GetTeamByInviteCode(ctx, strings.TrimSpace(params.InviteCode))
	if err != nil {
		err = mapRepoError(err)
		return
	}

	record.Members = append(record.Members, params.Principal.UserID)
	record.UpdatedAt = s.now()
	if err = s.teams.UpdateTeam(ctx, record); err != nil {
		err = mapRepoError(err)
		return
	}

	team = toApplicationTeam(record, false)
	return
}

// GetTeam retrieves a team. The invite code is visible only to the captain and
// administrators.
func (s *TeamService) GetTeam(ctx context.Context, principal Principal, teamID string) (Team, error) {
	if s == nil || s.teams == nil {
		return Team{}, fmt.Errorf("team service not configured")
	}
	record, err := s.teams.GetTeam(ctx, teamID)
	if err != nil {
		return Team{}, mapRepoError(err)
	}
	showCode := principal.IsAdmin || record.CaptainID == principal.UserID
	return toApplicationTeam(record, showCode), nil
}

// FindOwnTeam returns the caller's team, or ErrNotFound when they have none.
func (s *TeamService) FindOwnTeam(ctx context.Context, principal Principal) (Team, error) {
	if s == nil || s.teams == nil {
		return Team{}, fmt.Errorf("team service not configured")
	}
	record, err := s.teams.FindTeamByMember(ctx, principal.UserID)
	if err != nil {
		return Team{}, mapRepoError(err)
	}
	return toApplicationTeam(record, record.CaptainID == principal.UserID || principal.IsAdmin), nil
}

// ListTeams enumerates all teams. Invite codes are included for administrators
// only.
func (s *TeamService) ListTeams(ctx context.Context, principal Principal) ([]Team, error) {
	if s == nil || s.teams == nil {
		return nil, fmt.Errorf("team service not configured")
	}
	records, err := s.teams.ListTeams(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	out := make([]Team, 0, len(records))
	for _, record := range records {
		out = append(out, toApplicationTeam(record, principal.IsAdmin))
	}
	return out, nil
}

// DeleteTeam removes a team. Permitted to the captain or an administrator.
func (s *TeamService) DeleteTeam(ctx context.Context, principal Principal, teamID string) error {
	if s == nil || s.teams == nil {
		return fmt.Errorf("team service not configured")
	}
	record, err := s.teams.GetTeam(ctx, teamID)
	if err != nil {
		return mapRepoError(err)
	}
	if !principal.IsAdmin && record.CaptainID != principal.UserID {
		return ErrUnauthorized
	}
	if err := s.teams.DeleteTeam(ctx, teamID); err != nil {
		return mapRepoError(err)
	}
	s.loggerWith(ctx, "DeleteTeam", "team_id", teamID).InfoContext(ctx, "team deleted")
	return nil
}

func toApplicationTeam(record persistence.Team, includeInviteCode bool) Team {
	members := make([]string, len(record.Members))
	copy(members, record.Members)

	team := Team{
		ID:          record.ID,
		Name:        record.Name,
		Description: record.Description,
		CaptainID:   record.CaptainID,
		Members:     members,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
	if includeInviteCode {
		team.InviteCode = record.InviteCode
	}
	return team
}
