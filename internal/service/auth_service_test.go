package service

import (
	"context"
	"testing"
	"time"

	"jvc-treasury/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (*AuthServiceImpl, *fakeAdminRepo) {
	t.Helper()
	admins := newFakeAdminRepo()
	hashSvc := NewArgon2HashService()
	tokenSvc := NewJWTTokenService(testJWTSecret, 12*time.Hour, "jvc-treasury")
	svc := NewAuthService(admins, hashSvc, tokenSvc, nil)

	hash, err := hashSvc.Hash("correct-horse")
	require.NoError(t, err)
	require.NoError(t, admins.Create(context.Background(), &domain.Admin{
		ID:           uuid.New(),
		Username:     "ops-admin",
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}))
	return svc, admins
}

func TestLogin_Success(t *testing.T) {
	svc, _ := newAuthFixture(t)

	token, expiry, err := svc.Login(context.Background(), "ops-admin", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiry.After(time.Now()))
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, _, err := svc.Login(context.Background(), "ops-admin", "wrong")
	assertAppError(t, err, "AUTH_001")
}

func TestLogin_UnknownUsername(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, _, err := svc.Login(context.Background(), "nobody", "whatever")
	assertAppError(t, err, "AUTH_001")
}
