package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/clubsite/internal/persistence"
)

// TeamRepository implements persistence.TeamRepository using SQLite.
type TeamRepository struct {
	pool *ConnectionPool
}

// NewTeamRepository creates a SQLite-backed team repository.
func NewTeamRepository(pool *ConnectionPool) *TeamRepository {
	return &TeamRepository{pool: pool}
}

// CreateTeam inserts the team row and its member rows in one transaction.
func (r *TeamRepository) CreateTeam(ctx context.Context, team persistence.Team) error {
	if team.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO teams (id, name, description, captain_id, invite_code, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
			team.ID,
			team.Name,
			team.Description,
			team.CaptainID,
			team.InviteCode,
			formatTime(team.CreatedAt),
			formatTime(team.UpdatedAt),
		)
		if err != nil {
			return mapError(err)
		}
		return insertMembersTx(tx, team.ID, team.Members)
	})
}

// UpdateTeam rewrites the team row and replaces its member set.
func (r *TeamRepository) UpdateTeam(ctx context.Context, team persistence.Team) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(
			`UPDATE teams
			 SET name = ?, description = ?, captain_id = ?, invite_code = ?, updated_at = ?
			 WHERE id = ?`,
			team.Name,
			team.Description,
			team.CaptainID,
			team.InviteCode,
			formatTime(team.UpdatedAt),
			team.ID,
		)
		if err != nil {
			return mapError(err)
		}
		if err := requireRowsAffected(result); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM team_members WHERE team_id = ?", team.ID); err != nil {
			return mapError(err)
		}
		return insertMembersTx(tx, team.ID, team.Members)
	})
}

// GetTeam retrieves a team and its member list.
func (r *TeamRepository) GetTeam(ctx context.Context, id string) (persistence.Team, error) {
	if id == "" {
		return persistence.Team{}, persistence.ErrNotFound
	}
	return r.getTeamWhere(ctx, "id = ?", id)
}

// GetTeamByInviteCode retrieves the team holding the given invite code.
func (r *TeamRepository) GetTeamByInviteCode(ctx context.Context, code string) (persistence.Team, error) {
	if code == "" {
		return persistence.Team{}, persistence.ErrNotFound
	}
	return r.getTeamWhere(ctx, "invite_code = ?", code)
}

// FindTeamByMember returns the team the user belongs to. Membership is
// exclusive, so at most one row matches.
func (r *TeamRepository) FindTeamByMember(ctx context.Context, userID string) (persistence.Team, error) {
	if userID == "" {
		return persistence.Team{}, persistence.ErrNotFound
	}
	return r.getTeamWhere(ctx, "id = (SELECT team_id FROM team_members WHERE user_id = ?)", userID)
}

func (r *TeamRepository) getTeamWhere(ctx context.Context, where string, arg any) (persistence.Team, error) {
	query := `
		SELECT id, name, description, captain_id, invite_code, version, created_at, updated_at
		FROM teams
		WHERE ` + where

	var team persistence.Team
	var createdAtStr, updatedAtStr string

	err := r.pool.DB().QueryRowContext(ctx, query, arg).Scan(
		&team.ID,
		&team.Name,
		&team.Description,
		&team.CaptainID,
		&team.InviteCode,
		&team.Version,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Team{}, mapError(err)
	}

	if team.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.Team{}, fmt.Errorf("parse created_at: %w", err)
	}
	if team.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return persistence.Team{}, fmt.Errorf("parse updated_at: %w", err)
	}

	members, err := r.loadMembers(ctx, team.ID)
	if err != nil {
		return persistence.Team{}, err
	}
	team.Members = members

	return team, nil
}

// ListTeams returns all teams ordered by name, each with its member list.
func (r *TeamRepository) ListTeams(ctx context.Context) ([]persistence.Team, error) {
	query := `
		SELECT id, name, description, captain_id, invite_code, version, created_at, updated_at
		FROM teams
		ORDER BY name ASC, id ASC
	`
	rows, err := r.pool.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var teams []persistence.Team
	for rows.Next() {
		var team persistence.Team
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(
			&team.ID,
			&team.Name,
			&team.Description,
			&team.CaptainID,
			&team.InviteCode,
			&team.Version,
			&createdAtStr,
			&updatedAtStr,
		); err != nil {
			return nil, mapError(err)
		}
		if team.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if team.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	for i := range teams {
		members, err := r.loadMembers(ctx, teams[i].ID)
		if err != nil {
			return nil, err
		}
		teams[i].Members = members
	}

	return teams, nil
}

// DeleteTeam removes a team and its membership rows.
func (r *TeamRepository) DeleteTeam(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.pool.DB().ExecContext(ctx, "DELETE FROM teams WHERE id = ?", id)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(result)
}

func (r *TeamRepository) loadMembers(ctx context.Context, teamID string) ([]string, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		"SELECT user_id FROM team_members WHERE team_id = ? ORDER BY user_id ASC", teamID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, mapError(err)
		}
		members = append(members, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return members, nil
}

func insertMembersTx(tx *sql.Tx, teamID string, members []string) error {
	for _, userID := range members {
		if _, err := tx.Exec(
			"INSERT INTO team_members (team_id, user_id) VALUES (?, ?)",
			teamID, userID,
		); err != nil {
			return mapError(err)
		}
	}
	return nil
}
