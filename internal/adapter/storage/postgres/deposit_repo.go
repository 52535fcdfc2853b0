package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jvc-treasury/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const depositColumns = `id, principal, rail, status, amount_usd, amount_token,
	external_reference, chain_tx_id, confirmations, created_at, completed_at`

// DepositRepo implements ports.DepositRepository.
type DepositRepo struct {
	pool Pool
}

// NewDepositRepo creates a new DepositRepo.
func NewDepositRepo(pool Pool) *DepositRepo {
	return &DepositRepo{pool: pool}
}

func scanDeposit(row pgx.Row) (*domain.DepositRecord, error) {
	d := &domain.DepositRecord{}
	err := row.Scan(
		&d.ID, &d.Principal, &d.Rail, &d.Status, &d.AmountUSD, &d.AmountToken,
		&d.ExternalReference, &d.ChainTxID, &d.Confirmations, &d.CreatedAt, &d.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// Create inserts a new deposit record.
func (r *DepositRepo) Create(ctx context.Context, d *domain.DepositRecord) error {
	query := `INSERT INTO deposits (id, principal, rail, status, amount_usd, amount_token,
		external_reference, chain_tx_id, confirmations, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		d.ID, d.Principal, d.Rail, d.Status, d.AmountUSD, d.AmountToken,
		d.ExternalReference, d.ChainTxID, d.Confirmations, d.CreatedAt, d.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert deposit: %w", err)
	}
	return nil
}

// GetByID fetches a deposit by id.
func (r *DepositRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.DepositRecord, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1`

	d, err := scanDeposit(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get deposit by id: %w", err)
	}
	return d, nil
}

// GetByExternalReference fetches a deposit by its rail event reference.
func (r *DepositRepo) GetByExternalReference(ctx context.Context, rail domain.Rail, ref string) (*domain.DepositRecord, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE rail = $1 AND external_reference = $2`

	d, err := scanDeposit(r.pool.QueryRow(ctx, query, rail, ref))
	if err != nil {
		return nil, fmt.Errorf("get deposit by external reference: %w", err)
	}
	return d, nil
}

// MarkCompleted finalizes a pending deposit with its settled token amount.
// The status guard keeps terminal records immutable.
func (r *DepositRepo) MarkCompleted(ctx context.Context, id uuid.UUID, amountToken int64, at time.Time) error {
	query := `UPDATE deposits SET status = $1, amount_token = $2, completed_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := r.pool.Exec(ctx, query,
		domain.DepositStatusCompleted, amountToken, at, id, domain.DepositStatusPending)
	if err != nil {
		return fmt.Errorf("mark deposit completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deposit %s not pending", id)
	}
	return nil
}

// MarkFailed moves a pending deposit to failed.
func (r *DepositRepo) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE deposits SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4`

	tag, err := r.pool.Exec(ctx, query,
		domain.DepositStatusFailed, at, id, domain.DepositStatusPending)
	if err != nil {
		return fmt.Errorf("mark deposit failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deposit %s not pending", id)
	}
	return nil
}

// UpdateConfirmations records the observed chain confirmation count.
func (r *DepositRepo) UpdateConfirmations(ctx context.Context, id uuid.UUID, confirmations int) error {
	query := `UPDATE deposits SET confirmations = $1 WHERE id = $2 AND status = $3`

	_, err := r.pool.Exec(ctx, query, confirmations, id, domain.DepositStatusPending)
	if err != nil {
		return fmt.Errorf("update deposit confirmations: %w", err)
	}
	return nil
}

// ListPendingByRail returns pending deposits for one rail, oldest first.
func (r *DepositRepo) ListPendingByRail(ctx context.Context, rail domain.Rail) ([]domain.DepositRecord, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits
		WHERE rail = $1 AND status = $2 ORDER BY created_at ASC`

	return r.listDeposits(ctx, query, rail, domain.DepositStatusPending)
}

// ListExpiredPending returns pending deposits initiated before the cutoff.
func (r *DepositRepo) ListExpiredPending(ctx context.Context, olderThan time.Time) ([]domain.DepositRecord, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits
		WHERE status = $1 AND created_at < $2 ORDER BY created_at ASC`

	return r.listDeposits(ctx, query, domain.DepositStatusPending, olderThan)
}

func (r *DepositRepo) listDeposits(ctx context.Context, query string, args ...any) ([]domain.DepositRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	defer rows.Close()

	var deposits []domain.DepositRecord
	for rows.Next() {
		d := domain.DepositRecord{}
		if err := rows.Scan(
			&d.ID, &d.Principal, &d.Rail, &d.Status, &d.AmountUSD, &d.AmountToken,
			&d.ExternalReference, &d.ChainTxID, &d.Confirmations, &d.CreatedAt, &d.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}
