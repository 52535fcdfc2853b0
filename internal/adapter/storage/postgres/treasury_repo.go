package postgres

import (
	"context"
	"fmt"
	"time"

	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const treasuryColumns = `id, total_supply, total_reserve_usd,
	card_reserve_usd, bank_reserve_usd, payid_reserve_usd, chain_reserve_usd,
	pending_deposits_usd, pending_withdrawals_usd, collected_fees,
	reconciliation_status, last_reconciled_at, version, updated_at`

// TreasuryRepo implements ports.TreasuryRepository over the single treasury
// row.
type TreasuryRepo struct {
	pool Pool
}

// NewTreasuryRepo creates a new TreasuryRepo.
func NewTreasuryRepo(pool Pool) *TreasuryRepo {
	return &TreasuryRepo{pool: pool}
}

func scanTreasury(row pgx.Row) (*domain.Treasury, error) {
	t := &domain.Treasury{}
	err := row.Scan(
		&t.ID, &t.TotalSupply, &t.TotalReserveUSD,
		&t.Reserves.Card, &t.Reserves.Bank, &t.Reserves.PayID, &t.Reserves.Chain,
		&t.PendingDepositsUSD, &t.PendingWithdrawalsUSD, &t.CollectedFees,
		&t.ReconciliationStatus, &t.LastReconciledAt, &t.Version, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Get fetches the treasury row outside any transaction.
func (r *TreasuryRepo) Get(ctx context.Context) (*domain.Treasury, error) {
	query := `SELECT ` + treasuryColumns + ` FROM treasury WHERE id = $1`

	t, err := scanTreasury(r.pool.QueryRow(ctx, query, domain.TreasuryID))
	if err != nil {
		return nil, fmt.Errorf("get treasury: %w", err)
	}
	return t, nil
}

// GetTx fetches the treasury row inside a transaction.
func (r *TreasuryRepo) GetTx(ctx context.Context, tx pgx.Tx) (*domain.Treasury, error) {
	query := `SELECT ` + treasuryColumns + ` FROM treasury WHERE id = $1`

	t, err := scanTreasury(tx.QueryRow(ctx, query, domain.TreasuryID))
	if err != nil {
		return nil, fmt.Errorf("get treasury tx: %w", err)
	}
	return t, nil
}

// railReserveColumn maps a rail to its reserve snapshot column.
func railReserveColumn(rail domain.Rail) string {
	switch rail {
	case domain.RailCard:
		return "card_reserve_usd"
	case domain.RailBank:
		return "bank_reserve_usd"
	case domain.RailInstant:
		return "payid_reserve_usd"
	case domain.RailChain:
		return "chain_reserve_usd"
	}
	return ""
}

// ApplyMutation applies an additive, version-checked mutation to the treasury
// row. Returns false on a CAS conflict.
func (r *TreasuryRepo) ApplyMutation(ctx context.Context, tx pgx.Tx, mut ports.TreasuryMutation, expectedVersion int64) (bool, error) {
	query := `UPDATE treasury SET
		total_supply = total_supply + $1,
		total_reserve_usd = total_reserve_usd + $2,
		pending_deposits_usd = pending_deposits_usd + $3,
		pending_withdrawals_usd = pending_withdrawals_usd + $4,
		collected_fees = collected_fees + $5,
		version = version + 1,
		updated_at = NOW()`
	args := []any{
		mut.SupplyDelta, mut.ReserveDeltaUSD,
		mut.PendingDepositsDelta, mut.PendingWithdrawalsDelta,
		mut.CollectedFeesDelta,
	}

	if mut.Rail != nil && !mut.ReserveDeltaUSD.IsZero() {
		col := railReserveColumn(*mut.Rail)
		if col == "" {
			return false, fmt.Errorf("unknown rail: %s", *mut.Rail)
		}
		query += fmt.Sprintf(", %s = %s + $6 WHERE id = $7 AND version = $8", col, col)
		args = append(args, mut.ReserveDeltaUSD, domain.TreasuryID, expectedVersion)
	} else {
		query += " WHERE id = $6 AND version = $7"
		args = append(args, domain.TreasuryID, expectedVersion)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("apply treasury mutation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetReconciliation updates the health flag written by the reconciliation
// engine. Not version-checked: the status never participates in value math.
func (r *TreasuryRepo) SetReconciliation(ctx context.Context, status domain.ReconciliationStatus, at time.Time) error {
	query := `UPDATE treasury SET reconciliation_status = $1, last_reconciled_at = $2, updated_at = NOW()
		WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, status, at, domain.TreasuryID)
	if err != nil {
		return fmt.Errorf("set reconciliation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("treasury row missing")
	}
	return nil
}
