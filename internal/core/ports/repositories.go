package ports

import (
	"context"
	"time"

	"jvc-treasury/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepository defines persistence operations for wallets.
// Balance updates are version-checked: UpdateBalance returns false when the
// expected version no longer matches, signalling a CAS conflict to retry.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByPrincipal(ctx context.Context, principal string) (*domain.Wallet, error)
	GetByPrincipalTx(ctx context.Context, tx pgx.Tx, principal string) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, newBalance int64, expectedVersion int64) (bool, error)
	SetFrozen(ctx context.Context, walletID uuid.UUID, frozen bool, reason *string) error
	SetChainAddress(ctx context.Context, walletID uuid.UUID, address string, trustline bool) error
	SumBalances(ctx context.Context) (int64, error)
}

// TreasuryMutation is an additive change applied to the treasury row in the
// same commit as the wallet mutation it belongs to. Zero-valued fields are
// no-ops.
type TreasuryMutation struct {
	SupplyDelta             int64
	ReserveDeltaUSD         decimal.Decimal
	Rail                    *domain.Rail // attributes ReserveDeltaUSD to a rail snapshot
	PendingDepositsDelta    decimal.Decimal
	PendingWithdrawalsDelta decimal.Decimal
	CollectedFeesDelta      int64
}

// IsZero reports whether the mutation changes nothing.
func (m TreasuryMutation) IsZero() bool {
	return m.SupplyDelta == 0 &&
		m.ReserveDeltaUSD.IsZero() &&
		m.PendingDepositsDelta.IsZero() &&
		m.PendingWithdrawalsDelta.IsZero() &&
		m.CollectedFeesDelta == 0
}

// TreasuryRepository defines persistence operations for the singleton
// treasury row.
type TreasuryRepository interface {
	Get(ctx context.Context) (*domain.Treasury, error)
	GetTx(ctx context.Context, tx pgx.Tx) (*domain.Treasury, error)
	ApplyMutation(ctx context.Context, tx pgx.Tx, mut TreasuryMutation, expectedVersion int64) (bool, error)
	SetReconciliation(ctx context.Context, status domain.ReconciliationStatus, at time.Time) error
}

// LedgerRepository defines persistence for the append-only audit trail.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByExternalReference(ctx context.Context, ref string) (*domain.LedgerEntry, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
}

// DepositRepository defines persistence for deposit records.
type DepositRepository interface {
	Create(ctx context.Context, d *domain.DepositRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DepositRecord, error)
	GetByExternalReference(ctx context.Context, rail domain.Rail, ref string) (*domain.DepositRecord, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, amountToken int64, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateConfirmations(ctx context.Context, id uuid.UUID, confirmations int) error
	ListPendingByRail(ctx context.Context, rail domain.Rail) ([]domain.DepositRecord, error)
	ListExpiredPending(ctx context.Context, olderThan time.Time) ([]domain.DepositRecord, error)
}

// WithdrawalRepository defines persistence for withdrawal records.
type WithdrawalRepository interface {
	Create(ctx context.Context, w *domain.WithdrawalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRecord, error)
	GetByExternalReference(ctx context.Context, rail domain.Rail, ref string) (*domain.WithdrawalRecord, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// AdminRepository defines persistence for admin operators.
type AdminRepository interface {
	Create(ctx context.Context, admin *domain.Admin) error
	GetByUsername(ctx context.Context, username string) (*domain.Admin, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error)
}

// AuditRepository defines persistence for administrative audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
