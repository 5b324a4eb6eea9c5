package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/clubsite/internal/persistence"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user persistence.User) error
	UpdateUser(ctx context.Context, user persistence.User) error
	GetUser(ctx context.Context, id string) (persistence.User, error)
	GetUserByEmail(ctx context.Context, email string) (persistence.User, error)
	ListUsers(ctx context.Context) ([]persistence.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// UserService orchestrates account registration and administration.
type UserService struct {
	users       UserRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for user operations.
func NewUserService(users UserRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, idGenerator: idGenerator, now: now, logger: logger}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// Register validates input and persists a new account. Registration is open;
// the admin flag can only be granted by an existing administrator through
// UpdateUser.
func (s *UserService) Register(ctx context.Context, params RegisterUserParams) (user User, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("user service not configured")
		return
	}

	logger := s.loggerWith(ctx, "Register")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	}()

	normalized := normalizeUserInput(params.Input)
	vErr := validateUserInput(normalized, true)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	hash, err := CreatePasswordHash(normalized.Password, DefaultArgon2idParams)
	if err != nil {
		return
	}

	createdAt := s.now()
	record := persistence.User{
		ID:           s.idGenerator(),
		Email:        normalized.Email,
		DisplayName:  normalized.DisplayName,
		PasswordHash: hash,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}

	if err = s.users.CreateUser(ctx, record); err != nil {
		err = mapRepoError(err)
		return
	}

	user = toApplicationUser(record)
	return
}

// GetUser retrieves an account. Users may read themselves; administrators may
// read anyone.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil || s.users == nil {
		return User{}, fmt.Errorf("user service not configured")
	}
	if !principal.IsAdmin && principal.UserID != userID {
		return User{}, ErrUnauthorized
	}
	record, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapRepoError(err)
	}
	return toApplicationUser(record), nil
}

// ListUsers enumerates accounts for administrators.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil || s.users == nil {
		return nil, fmt.Errorf("user service not configured")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	records, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	out := make([]User, 0, len(records))
	for _, record := range records {
		out = append(out, toApplicationUser(record))
	}
	return out, nil
}

// UpdateUser updates an account. Users may change their own display name and
// password; only administrators may change emails or grant the admin flag.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (user User, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("user service not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateUser", "user_id", params.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user updated")
	}()

	self := params.Principal.UserID == params.UserID
	if !params.Principal.IsAdmin && !self {
		err = ErrUnauthorized
		return
	}

	existing, err := s.users.GetUser(ctx, params.UserID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	normalized := normalizeUserInput(params.Input)
	if !params.Principal.IsAdmin {
		if normalized.Email != "" && normalized.Email != existing.Email {
			err = ErrUnauthorized
			return
		}
		if normalized.IsAdmin && !existing.IsAdmin {
			err = ErrUnauthorized
			return
		}
		normalized.IsAdmin = existing.IsAdmin
	}
	if normalized.Email == "" {
		normalized.Email = existing.Email
	}
	if normalized.DisplayName == "" {
		normalized.DisplayName = existing.DisplayName
	}

	vErr := validateUserInput(normalized, false)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Email = normalized.Email
	updated.DisplayName = normalized.DisplayName
	updated.IsAdmin = normalized.IsAdmin
	updated.UpdatedAt = s.now()

	if normalized.Password != "" {
		var hash string
		hash, err = CreatePasswordHash(normalized.Password, DefaultArgon2idParams)
		if err != nil {
			return
		}
		updated.PasswordHash = hash
	}

	if err = s.users.UpdateUser(ctx, updated); err != nil {
		err = mapRepoError(err)
		return
	}

	user = toApplicationUser(updated)
	return
}

// DeleteUser removes an account when requested by an administrator.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if s == nil || s.users == nil {
		return fmt.Errorf("user service not configured")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return mapRepoError(err)
	}
	s.loggerWith(ctx, "DeleteUser", "user_id", userID).InfoContext(ctx, "user deleted")
	return nil
}

func normalizeUserInput(input UserInput) UserInput {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	return input
}

func validateUserInput(input UserInput, passwordRequired bool) *ValidationError {
	vErr := &ValidationError{}
	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}
	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}
	if passwordRequired && len(input.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}
	if !passwordRequired && input.Password != "" && len(input.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}
	return vErr
}

func toApplicationUser(record persistence.User) User {
	return User{
		ID:          record.ID,
		Email:       record.Email,
		DisplayName: record.DisplayName,
		IsAdmin:     record.IsAdmin,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}
