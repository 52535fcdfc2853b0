package service

import (
	"context"

	"jvc-treasury/internal/core/ports"
	"jvc-treasury/pkg/apperror"

	"github.com/rs/zerolog"
)

type verificationService struct {
	wallets ports.WalletRepository
	log     zerolog.Logger
}

// NewVerificationService creates the synchronous balance pre-check. It is a
// pure read over current state; the authoritative check is re-done inside the
// ledger debit, so a stale positive here can still fail at commit time.
func NewVerificationService(wallets ports.WalletRepository, log zerolog.Logger) ports.VerificationService {
	return &verificationService{
		wallets: wallets,
		log:     log.With().Str("component", "verification").Logger(),
	}
}

func (s *verificationService) Verify(ctx context.Context, principal string, required int64) (bool, error) {
	if required < 0 {
		return false, apperror.ErrInvalidOperation("Required amount must not be negative")
	}

	wallet, err := s.wallets.GetByPrincipal(ctx, principal)
	if err != nil {
		return false, apperror.ErrDatabaseError(err)
	}
	if wallet == nil {
		// An unknown principal simply has no funds; not an error
		return false, nil
	}
	if wallet.Frozen {
		return false, nil
	}
	return wallet.TokenBalance >= required, nil
}
