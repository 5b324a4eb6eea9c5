package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/clubsite/internal/persistence"
)

// TokenSigner issues signed access tokens for authenticated users.
type TokenSigner interface {
	Issue(userID string, isAdmin bool) (string, error)
}

// AuthService authenticates credentials and hands out access tokens.
type AuthService struct {
	users  UserRepository
	signer TokenSigner
	logger *slog.Logger
}

// NewAuthService wires dependencies for authentication.
func NewAuthService(users UserRepository, signer TokenSigner, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, signer: signer, logger: logger}
}

// Authenticate verifies the credentials and returns a signed token. A missing
// account and a wrong password both report ErrInvalidCredentials so the
// response does not reveal which accounts exist.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil || s.users == nil || s.signer == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "AuthService", "Authenticate")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "authentication failed", "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "user authenticated")
	}()

	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	record, lookupErr := s.users.GetUserByEmail(ctx, email)
	if lookupErr != nil {
		if errors.Is(lookupErr, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
			return
		}
		err = lookupErr
		return
	}

	if verifyErr := VerifyPassword(record.PasswordHash, params.Password); verifyErr != nil {
		err = ErrInvalidCredentials
		return
	}

	token, signErr := s.signer.Issue(record.ID, record.IsAdmin)
	if signErr != nil {
		err = signErr
		return
	}

	result = AuthenticateResult{User: toApplicationUser(record), Token: token}
	return
}
