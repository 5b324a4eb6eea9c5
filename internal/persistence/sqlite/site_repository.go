package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/clubsite/internal/persistence"
)

// SiteRepository implements persistence.SiteRepository using SQLite.
type SiteRepository struct {
	pool *ConnectionPool
}

// NewSiteRepository creates a SQLite-backed site repository.
func NewSiteRepository(pool *ConnectionPool) *SiteRepository {
	return &SiteRepository{pool: pool}
}

// CreateSite inserts a new site row with an empty appointment set.
func (r *SiteRepository) CreateSite(ctx context.Context, site persistence.Site) error {
	if site.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO sites (id, name, description, capacity, min_duration_minutes, max_duration_minutes, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
	`
	_, err := r.pool.DB().ExecContext(ctx, query,
		site.ID,
		site.Name,
		site.Description,
		site.Capacity,
		site.MinDurationMinutes,
		site.MaxDurationMinutes,
		formatTime(site.CreatedAt),
		formatTime(site.UpdatedAt),
	)
	return mapError(err)
}

// UpdateSiteDetails updates the site's metadata and scheduling configuration.
// The appointment set and version are untouched; appointment mutations go
// through the versioned methods below.
func (r *SiteRepository) UpdateSiteDetails(ctx context.Context, site persistence.Site) error {
	query := `
		UPDATE sites
		SET name = ?, description = ?, capacity = ?, min_duration_minutes = ?, max_duration_minutes = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.pool.DB().ExecContext(ctx, query,
		site.Name,
		site.Description,
		site.Capacity,
		site.MinDurationMinutes,
		site.MaxDurationMinutes,
		formatTime(site.UpdatedAt),
		site.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(result)
}

// GetSite retrieves a site and its appointments ordered by start time.
func (r *SiteRepository) GetSite(ctx context.Context, id string) (persistence.Site, error) {
	if id == "" {
		return persistence.Site{}, persistence.ErrNotFound
	}
	return r.getSiteWhere(ctx, "id = ?", id)
}

// GetSiteByName retrieves a site by its unique name.
func (r *SiteRepository) GetSiteByName(ctx context.Context, name string) (persistence.Site, error) {
	return r.getSiteWhere(ctx, "name = ?", name)
}

func (r *SiteRepository) getSiteWhere(ctx context.Context, where string, arg any) (persistence.Site, error) {
	query := `
		SELECT id, name, description, capacity, min_duration_minutes, max_duration_minutes, version, created_at, updated_at
		FROM sites
		WHERE ` + where

	var site persistence.Site
	var createdAtStr, updatedAtStr string

	err := r.pool.DB().QueryRowContext(ctx, query, arg).Scan(
		&site.ID,
		&site.Name,
		&site.Description,
		&site.Capacity,
		&site.MinDurationMinutes,
		&site.MaxDurationMinutes,
		&site.Version,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Site{}, mapError(err)
	}

	if site.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.Site{}, fmt.Errorf("parse created_at: %w", err)
	}
	if site.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return persistence.Site{}, fmt.Errorf("parse updated_at: %w", err)
	}

	appointments, err := r.loadAppointments(ctx, site.ID)
	if err != nil {
		return persistence.Site{}, err
	}
	site.Appointments = appointments

	return site, nil
}

// ListSites returns all sites ordered by name, each with its appointments.
func (r *SiteRepository) ListSites(ctx context.Context) ([]persistence.Site, error) {
	query := `
		SELECT id, name, description, capacity, min_duration_minutes, max_duration_minutes, version, created_at, updated_at
		FROM sites
		ORDER BY name ASC, id ASC
	`
	rows, err := r.pool.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var sites []persistence.Site
	for rows.Next() {
		var site persistence.Site
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(
			&site.ID,
			&site.Name,
			&site.Description,
			&site.Capacity,
			&site.MinDurationMinutes,
			&site.MaxDurationMinutes,
			&site.Version,
			&createdAtStr,
			&updatedAtStr,
		); err != nil {
			return nil, mapError(err)
		}
		if site.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if site.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	for i := range sites {
		appointments, err := r.loadAppointments(ctx, sites[i].ID)
		if err != nil {
			return nil, err
		}
		sites[i].Appointments = appointments
	}

	return sites, nil
}

// DeleteSite removes a site; its appointments go with it via the cascade.
func (r *SiteRepository) DeleteSite(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.pool.DB().ExecContext(ctx, "DELETE FROM sites WHERE id = ?", id)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(result)
}

// AppendAppointment adds one appointment to the site's reservation set. The
// site and team version bumps share a transaction with the insert; a stale
// version on either side leaves the set untouched and reports
// ErrVersionConflict.
func (r *SiteRepository) AppendAppointment(ctx context.Context, siteID string, appointment persistence.Appointment, expectedVersion, expectedTeamVersion int64) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := r.bumpVersionTx(tx, siteID, expectedVersion); err != nil {
			return err
		}
		if err := bumpTeamVersionTx(tx, appointment.TeamID, expectedTeamVersion); err != nil {
			return err
		}
		_, err := tx.Exec(
			"INSERT INTO appointments (site_id, team_id, start_time, end_time) VALUES (?, ?, ?, ?)",
			siteID,
			appointment.TeamID,
			formatTime(appointment.Start),
			formatTime(appointment.End),
		)
		return mapError(err)
	})
}

// RemoveAppointment deletes the appointment addressed by (team, start) from
// the site's reservation set under the same versioned discipline.
func (r *SiteRepository) RemoveAppointment(ctx context.Context, siteID, teamID string, start time.Time, expectedVersion, expectedTeamVersion int64) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := r.bumpVersionTx(tx, siteID, expectedVersion); err != nil {
			return err
		}
		if err := bumpTeamVersionTx(tx, teamID, expectedTeamVersion); err != nil {
			return err
		}
		result, err := tx.Exec(
			"DELETE FROM appointments WHERE site_id = ? AND team_id = ? AND start_time = ?",
			siteID,
			teamID,
			formatTime(start),
		)
		if err != nil {
			return mapError(err)
		}
		return requireRowsAffected(result)
	})
}

// ReplaceAppointments swaps the site's entire reservation set atomically, as
// used by the administrative batch-revision path. Every team on either side of
// the swap gets its version advanced so that in-flight proposals for those
// teams re-validate.
func (r *SiteRepository) ReplaceAppointments(ctx context.Context, siteID string, appointments []persistence.Appointment, expectedVersion int64) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := r.bumpVersionTx(tx, siteID, expectedVersion); err != nil {
			return err
		}

		touched := make(map[string]struct{})
		rows, err := tx.Query("SELECT DISTINCT team_id FROM appointments WHERE site_id = ?", siteID)
		if err != nil {
			return mapError(err)
		}
		for rows.Next() {
			var teamID string
			if err := rows.Scan(&teamID); err != nil {
				rows.Close()
				return mapError(err)
			}
			touched[teamID] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return mapError(err)
		}
		rows.Close()

		if _, err := tx.Exec("DELETE FROM appointments WHERE site_id = ?", siteID); err != nil {
			return mapError(err)
		}
		for _, appointment := range appointments {
			touched[appointment.TeamID] = struct{}{}
			if _, err := tx.Exec(
				"INSERT INTO appointments (site_id, team_id, start_time, end_time) VALUES (?, ?, ?, ?)",
				siteID,
				appointment.TeamID,
				formatTime(appointment.Start),
				formatTime(appointment.End),
			); err != nil {
				return mapError(err)
			}
		}

		for teamID := range touched {
			if _, err := tx.Exec("UPDATE teams SET version = version + 1 WHERE id = ?", teamID); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// ListTeamAppointments returns the team's appointments across all sites, with
// an optional start-time window, ordered by start time.
func (r *SiteRepository) ListTeamAppointments(ctx context.Context, teamID string, filter persistence.AppointmentFilter) ([]persistence.TeamAppointment, error) {
	query, args := buildTeamAppointmentQuery(
		"SELECT site_id, team_id, start_time, end_time FROM appointments",
		teamID, filter,
	)
	query += " ORDER BY start_time ASC, site_id ASC"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var appointments []persistence.TeamAppointment
	for rows.Next() {
		var appointment persistence.TeamAppointment
		var startStr, endStr string
		if err := rows.Scan(&appointment.SiteID, &appointment.TeamID, &startStr, &endStr); err != nil {
			return nil, mapError(err)
		}
		if appointment.Start, err = parseTime(startStr); err != nil {
			return nil, fmt.Errorf("parse start_time: %w", err)
		}
		if appointment.End, err = parseTime(endStr); err != nil {
			return nil, fmt.Errorf("parse end_time: %w", err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return appointments, nil
}

// CountTeamAppointments counts the team's appointments across all sites whose
// start instant falls inside the filter window.
func (r *SiteRepository) CountTeamAppointments(ctx context.Context, teamID string, filter persistence.AppointmentFilter) (int, error) {
	query, args := buildTeamAppointmentQuery(
		"SELECT COUNT(*) FROM appointments",
		teamID, filter,
	)

	var count int
	if err := r.pool.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

func buildTeamAppointmentQuery(base, teamID string, filter persistence.AppointmentFilter) (string, []any) {
	conditions := []string{"team_id = ?"}
	args := []any{teamID}

	if filter.StartsAfter != nil {
		conditions = append(conditions, "start_time >= ?")
		args = append(args, formatTime(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		conditions = append(conditions, "start_time < ?")
		args = append(args, formatTime(*filter.EndsBefore))
	}

	return base + " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *SiteRepository) loadAppointments(ctx context.Context, siteID string) ([]persistence.Appointment, error) {
	query := `
		SELECT team_id, start_time, end_time
		FROM appointments
		WHERE site_id = ?
		ORDER BY start_time ASC, team_id ASC
	`
	rows, err := r.pool.DB().QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var appointments []persistence.Appointment
	for rows.Next() {
		var appointment persistence.Appointment
		var startStr, endStr string
		if err := rows.Scan(&appointment.TeamID, &startStr, &endStr); err != nil {
			return nil, mapError(err)
		}
		if appointment.Start, err = parseTime(startStr); err != nil {
			return nil, fmt.Errorf("parse start_time: %w", err)
		}
		if appointment.End, err = parseTime(endStr); err != nil {
			return nil, fmt.Errorf("parse end_time: %w", err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return appointments, nil
}

// bumpVersionTx advances the site version iff it still matches the version the
// caller loaded. Zero rows means either a lost race or a missing site; the two
// are told apart so callers can retry conflicts and fail fast on not-found.
func (r *SiteRepository) bumpVersionTx(tx *sql.Tx, siteID string, expectedVersion int64) error {
	result, err := tx.Exec(
		"UPDATE sites SET version = version + 1, updated_at = ? WHERE id = ? AND version = ?",
		formatTime(time.Now().UTC()),
		siteID,
		expectedVersion,
	)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRow("SELECT COUNT(*) FROM sites WHERE id = ?", siteID).Scan(&exists); err != nil {
			return mapError(err)
		}
		if exists == 0 {
			return persistence.ErrNotFound
		}
		return persistence.ErrVersionConflict
	}
	return nil
}

// bumpTeamVersionTx advances the team version iff it still matches the version
// the caller loaded with its snapshot. A missing team row skips the guard:
// proposals require an existing team, so there is nothing left to protect once
// the team is gone.
func bumpTeamVersionTx(tx *sql.Tx, teamID string, expectedVersion int64) error {
	if teamID == "" {
		return nil
	}
	result, err := tx.Exec(
		"UPDATE teams SET version = version + 1 WHERE id = ? AND version = ?",
		teamID,
		expectedVersion,
	)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRow("SELECT COUNT(*) FROM teams WHERE id = ?", teamID).Scan(&exists); err != nil {
			return mapError(err)
		}
		if exists > 0 {
			return persistence.ErrVersionConflict
		}
	}
	return nil
}

func requireRowsAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// timeColumnLayout is fixed-width so the TEXT columns compare and sort
// lexicographically in chronological order; RFC3339Nano trims trailing zeros,
// which would sort fractional-second instants before the whole second.
const timeColumnLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeColumnLayout)
}

func parseTime(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
