package postgres

import (
	"context"
	"errors"
	"fmt"

	"jvc-treasury/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, operation_type, amount, wallet_id, principal,
	balance_before, balance_after, supply_before, supply_after,
	triggered_by, external_reference, reason, created_at`

// LedgerRepo implements ports.LedgerRepository. Rows are append-only; there
// is no update or delete path.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(
		&e.ID, &e.OperationType, &e.Amount, &e.WalletID, &e.Principal,
		&e.BalanceBefore, &e.BalanceAfter, &e.SupplyBefore, &e.SupplyAfter,
		&e.TriggeredBy, &e.ExternalReference, &e.Reason, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// Create appends a ledger entry within a database transaction. The partial
// unique index on external_reference enforces idempotency at the storage
// boundary; callers treat a unique violation as a concurrent replay.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, operation_type, amount, wallet_id, principal,
		balance_before, balance_after, supply_before, supply_after,
		triggered_by, external_reference, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.OperationType, e.Amount, e.WalletID, e.Principal,
		e.BalanceBefore, e.BalanceAfter, e.SupplyBefore, e.SupplyAfter,
		e.TriggeredBy, e.ExternalReference, e.Reason, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByExternalReference fetches the entry recorded for a rail event, if any.
func (r *LedgerRepo) GetByExternalReference(ctx context.Context, ref string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE external_reference = $1`

	e, err := scanLedgerEntry(r.pool.QueryRow(ctx, query, ref))
	if err != nil {
		return nil, fmt.Errorf("get ledger entry by external reference: %w", err)
	}
	return e, nil
}

// ListByWallet returns the most recent entries for a wallet.
func (r *LedgerRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{}
		if err := rows.Scan(
			&e.ID, &e.OperationType, &e.Amount, &e.WalletID, &e.Principal,
			&e.BalanceBefore, &e.BalanceAfter, &e.SupplyBefore, &e.SupplyAfter,
			&e.TriggeredBy, &e.ExternalReference, &e.Reason, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
