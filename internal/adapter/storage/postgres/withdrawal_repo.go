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

const withdrawalColumns = `id, principal, rail, status, amount_usd, amount_token,
	fee_token, destination, external_reference, created_at, completed_at`

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRecord, error) {
	w := &domain.WithdrawalRecord{}
	err := row.Scan(
		&w.ID, &w.Principal, &w.Rail, &w.Status, &w.AmountUSD, &w.AmountToken,
		&w.FeeToken, &w.Destination, &w.ExternalReference, &w.CreatedAt, &w.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}

// Create inserts a new withdrawal record.
func (r *WithdrawalRepo) Create(ctx context.Context, w *domain.WithdrawalRecord) error {
	query := `INSERT INTO withdrawals (id, principal, rail, status, amount_usd, amount_token,
		fee_token, destination, external_reference, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.Principal, w.Rail, w.Status, w.AmountUSD, w.AmountToken,
		w.FeeToken, w.Destination, w.ExternalReference, w.CreatedAt, w.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetByID fetches a withdrawal by id.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRecord, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get withdrawal by id: %w", err)
	}
	return w, nil
}

// GetByExternalReference fetches a withdrawal by its rail event reference.
func (r *WithdrawalRepo) GetByExternalReference(ctx context.Context, rail domain.Rail, ref string) (*domain.WithdrawalRecord, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE rail = $1 AND external_reference = $2`

	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, rail, ref))
	if err != nil {
		return nil, fmt.Errorf("get withdrawal by external reference: %w", err)
	}
	return w, nil
}

// MarkCompleted finalizes a pending withdrawal.
func (r *WithdrawalRepo) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE withdrawals SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4`

	tag, err := r.pool.Exec(ctx, query,
		domain.DepositStatusCompleted, at, id, domain.DepositStatusPending)
	if err != nil {
		return fmt.Errorf("mark withdrawal completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal %s not pending", id)
	}
	return nil
}

// MarkFailed moves a pending withdrawal to failed.
func (r *WithdrawalRepo) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE withdrawals SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4`

	tag, err := r.pool.Exec(ctx, query,
		domain.DepositStatusFailed, at, id, domain.DepositStatusPending)
	if err != nil {
		return fmt.Errorf("mark withdrawal failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal %s not pending", id)
	}
	return nil
}
