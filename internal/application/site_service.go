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

// SiteCatalog captures the persistence operations needed by the site service.
type SiteCatalog interface {
	CreateSite(ctx context.Context, site persistence.Site) error
	UpdateSiteDetails(ctx context.Context, site persistence.Site) error
	GetSite(ctx context.Context, id string) (persistence.Site, error)
	ListSites(ctx context.Context) ([]persistence.Site, error)
	DeleteSite(ctx context.Context, id string) error
}

// SiteDefaults supplies the scheduling configuration applied when a site is
// created without explicit values.
type SiteDefaults struct {
	Capacity           int
	MinDurationMinutes int
	MaxDurationMinutes int
}

// SiteService orchestrates validation, authorization, and persistence for sites.
type SiteService struct {
	sites       SiteCatalog
	defaults    SiteDefaults
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSiteService wires dependencies for site operations.
func NewSiteService(sites SiteCatalog, defaults SiteDefaults, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SiteService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SiteService{sites: sites, defaults: defaults, idGenerator: idGenerator, now: now, logger: logger}
}

func (s *SiteService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SiteService", operation, attrs...)
}

// CreateSite validates input and persists a new site for administrators.
func (s *SiteService) CreateSite(ctx context.Context, params CreateSiteParams) (site Site, err error) {
	if s == nil || s.sites == nil {
		err = fmt.Errorf("site service not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateSite", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create site", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("site_id", site.ID).InfoContext(ctx, "site created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	input := s.applyDefaults(params.Input)
	vErr := validateSiteInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	createdAt := s.now()
	record := persistence.Site{
		ID:                 s.idGenerator(),
		Name:               strings.TrimSpace(input.Name),
		Description:        strings.TrimSpace(input.Description),
		Capacity:           input.Capacity,
		MinDurationMinutes: input.MinDurationMinutes,
		MaxDurationMinutes: input.MaxDurationMinutes,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}

	if err = s.sites.CreateSite(ctx, record); err != nil {
		err = mapRepoError(err)
		return
	}

	site = toApplicationSite(record)
	return
}

// PatchSite applies a partial update to a site for administrators. Nil patch
// fields keep the stored value; present fields are validated together with the
// merged result.
func (s *SiteService) PatchSite(ctx context.Context, params PatchSiteParams) (site Site, err error) {
	if s == nil || s.sites == nil {
		err = fmt.Errorf("site service not configured")
		return
	}

	logger := s.loggerWith(ctx, "PatchSite", "site_id", params.SiteID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to patch site", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "site updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	existing, err := s.sites.GetSite(ctx, params.SiteID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	merged := existing
	if params.Patch.Name != nil {
		merged.Name = strings.TrimSpace(*params.Patch.Name)
	}
	if params.Patch.Description != nil {
		merged.Description = strings.TrimSpace(*params.Patch.Description)
	}
	if params.Patch.Capacity != nil {
		merged.Capacity = *params.Patch.Capacity
	}
	if params.Patch.MinDurationMinutes != nil {
		merged.MinDurationMinutes = *params.Patch.MinDurationMinutes
	}
	if params.Patch.MaxDurationMinutes != nil {
		merged.MaxDurationMinutes = *params.Patch.MaxDurationMinutes
	}

	vErr := validateSiteInput(SiteInput{
		Name:               merged.Name,
		Description:        merged.Description,
		Capacity:           merged.Capacity,
		MinDurationMinutes: merged.MinDurationMinutes,
		MaxDurationMinutes: merged.MaxDurationMinutes,
	})
	if vErr.HasErrors() {
		err = vErr
		return
	}

	merged.UpdatedAt = s.now()
	if err = s.sites.UpdateSiteDetails(ctx, merged); err != nil {
		err = mapRepoError(err)
		return
	}

	site = toApplicationSite(merged)
	return
}

// GetSite retrieves a site with its reservation set.
func (s *SiteService) GetSite(ctx context.Context, id string) (Site, error) {
	if s == nil || s.sites == nil {
		return Site{}, fmt.Errorf("site service not configured")
	}
	record, err := s.sites.GetSite(ctx, id)
	if err != nil {
		return Site{}, mapRepoError(err)
	}
	return toApplicationSite(record), nil
}

// ListSites enumerates all sites ordered by name.
func (s *SiteService) ListSites(ctx context.Context) ([]Site, error) {
	if s == nil || s.sites == nil {
		return nil, fmt.Errorf("site service not configured")
	}
	records, err := s.sites.ListSites(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	out := make([]Site, 0, len(records))
	for _, record := range records {
		out = append(out, toApplicationSite(record))
	}
	return out, nil
}

// DeleteSite removes a site when requested by an administrator.
func (s *SiteService) DeleteSite(ctx context.Context, principal Principal, siteID string) error {
	if s == nil || s.sites == nil {
		return fmt.Errorf("site service not configured")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if err := s.sites.DeleteSite(ctx, siteID); err != nil {
		return mapRepoError(err)
	}
	s.loggerWith(ctx, "DeleteSite", "site_id", siteID).InfoContext(ctx, "site deleted")
	return nil
}

func (s *SiteService) applyDefaults(input SiteInput) SiteInput {
	if input.Capacity == 0 {
		input.Capacity = s.defaults.Capacity
	}
	if input.MinDurationMinutes == 0 {
		input.MinDurationMinutes = s.defaults.MinDurationMinutes
	}
	if input.MaxDurationMinutes == 0 {
		input.MaxDurationMinutes = s.defaults.MaxDurationMinutes
	}
	return input
}

func validateSiteInput(input SiteInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}
	if input.MinDurationMinutes <= 0 {
		vErr.add("min_duration_minutes", "minimum duration must be positive")
	}
	if input.MaxDurationMinutes < input.MinDurationMinutes {
		vErr.add("max_duration_minutes", "maximum duration must not be below the minimum")
	}
	return vErr
}

func toApplicationSite(record persistence.Site) Site {
	return Site{
		ID:                 record.ID,
		Name:               record.Name,
		Description:        record.Description,
		Capacity:           record.Capacity,
		MinDurationMinutes: record.MinDurationMinutes,
		MaxDurationMinutes: record.MaxDurationMinutes,
		Version:            record.Version,
		Appointments:       toApplicationAppointments(record.ID, record.Appointments),
		CreatedAt:          record.CreatedAt,
		UpdatedAt:          record.UpdatedAt,
	}
}

// mapRepoError translates persistence sentinels into application errors.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	default:
		return err
	}
}
