package service

import (
	"context"
	"fmt"
	"time"

	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"
	"jvc-treasury/pkg/apperror"
)

// AuthServiceImpl implements ports.AuthService for admin operators.
type AuthServiceImpl struct {
	admins   ports.AdminRepository
	hashSvc  ports.HashService
	tokenSvc ports.TokenService
	audit    ports.AuditService
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	admins ports.AdminRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	audit ports.AuditService,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		admins:   admins,
		hashSvc:  hashSvc,
		tokenSvc: tokenSvc,
		audit:    audit,
	}
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	admin, err := s.admins.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find admin: %w", err))
	}
	if admin == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, admin.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(admin.ID, admin.Username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	if s.audit != nil {
		id := admin.ID
		s.audit.Record(ctx, &domain.AuditLog{
			AdminID: &id,
			Action:  domain.AuditActionLogin,
		})
	}

	return token, expiry, nil
}
