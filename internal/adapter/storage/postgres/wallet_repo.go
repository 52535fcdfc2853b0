package postgres

import (
	"context"
	"errors"
	"fmt"

	"jvc-treasury/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, principal, principal_type, token_balance, reward_points,
	chain_address, trustline_set, frozen, frozen_reason, version, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.Principal, &w.PrincipalType, &w.TokenBalance, &w.RewardPoints,
		&w.ChainAddress, &w.TrustlineSet, &w.Frozen, &w.FrozenReason,
		&w.Version, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}

// Create inserts a new wallet within a database transaction. Wallets are
// created on the first balance-affecting event for a principal.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, principal, principal_type, token_balance, reward_points,
		chain_address, trustline_set, frozen, frozen_reason, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.Principal, w.PrincipalType, w.TokenBalance, w.RewardPoints,
		w.ChainAddress, w.TrustlineSet, w.Frozen, w.FrozenReason,
		w.Version, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByPrincipal fetches a wallet by principal (non-transactional read).
func (r *WalletRepo) GetByPrincipal(ctx context.Context, principal string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE principal = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, principal))
	if err != nil {
		return nil, fmt.Errorf("get wallet by principal: %w", err)
	}
	return w, nil
}

// GetByPrincipalTx fetches a wallet inside a transaction. No row lock is
// taken; writers detect conflicts through the version column.
func (r *WalletRepo) GetByPrincipalTx(ctx context.Context, tx pgx.Tx, principal string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE principal = $1`

	w, err := scanWallet(tx.QueryRow(ctx, query, principal))
	if err != nil {
		return nil, fmt.Errorf("get wallet by principal tx: %w", err)
	}
	return w, nil
}

// UpdateBalance applies a version-checked balance update. Returns false when
// the expected version no longer matches (concurrent writer won the race).
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, newBalance int64, expectedVersion int64) (bool, error) {
	query := `UPDATE wallets SET token_balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`

	tag, err := tx.Exec(ctx, query, newBalance, walletID, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("update wallet balance: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetFrozen flags or unflags a wallet for compliance.
func (r *WalletRepo) SetFrozen(ctx context.Context, walletID uuid.UUID, frozen bool, reason *string) error {
	query := `UPDATE wallets SET frozen = $1, frozen_reason = $2, updated_at = NOW() WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, frozen, reason, walletID)
	if err != nil {
		return fmt.Errorf("set wallet frozen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

// SetChainAddress records the wallet's blockchain address and trustline state.
func (r *WalletRepo) SetChainAddress(ctx context.Context, walletID uuid.UUID, address string, trustline bool) error {
	query := `UPDATE wallets SET chain_address = $1, trustline_set = $2, updated_at = NOW() WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, address, trustline, walletID)
	if err != nil {
		return fmt.Errorf("set wallet chain address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

// SumBalances returns the sum of all wallet token balances. Used by the
// reconciliation engine's conservation check.
func (r *WalletRepo) SumBalances(ctx context.Context) (int64, error) {
	query := `SELECT COALESCE(SUM(token_balance), 0) FROM wallets`

	var sum int64
	if err := r.pool.QueryRow(ctx, query).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum wallet balances: %w", err)
	}
	return sum, nil
}
