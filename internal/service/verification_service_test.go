package service

import (
	"context"
	"testing"

	"jvc-treasury/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_SufficientBalance(t *testing.T) {
	wallets := newFakeWalletRepo()
	wallets.seed("user-1", domain.PrincipalTypeUser, 100)
	svc := NewVerificationService(wallets, zerolog.Nop())

	ok, err := svc.Verify(context.Background(), "user-1", 100)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Verify(context.Background(), "user-1", 101)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_UnknownPrincipalHasNoFunds(t *testing.T) {
	svc := NewVerificationService(newFakeWalletRepo(), zerolog.Nop())

	ok, err := svc.Verify(context.Background(), "ghost", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_FrozenWalletFails(t *testing.T) {
	wallets := newFakeWalletRepo()
	w := wallets.seed("user-1", domain.PrincipalTypeUser, 100)
	require.NoError(t, wallets.SetFrozen(context.Background(), w.ID, true, nil))
	svc := NewVerificationService(wallets, zerolog.Nop())

	ok, err := svc.Verify(context.Background(), "user-1", 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_ZeroRequiredAlwaysPasses(t *testing.T) {
	wallets := newFakeWalletRepo()
	wallets.seed("user-1", domain.PrincipalTypeUser, 0)
	svc := NewVerificationService(wallets, zerolog.Nop())

	ok, err := svc.Verify(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_NegativeRequiredRejected(t *testing.T) {
	svc := NewVerificationService(newFakeWalletRepo(), zerolog.Nop())

	_, err := svc.Verify(context.Background(), "user-1", -5)
	assertAppError(t, err, "LED_002")
}
