package postgres

import (
	"context"
	"testing"
	"time"

	"jvc-treasury/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry(ref *string) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:                uuid.New(),
		OperationType:     domain.OperationDeposit,
		Amount:            100,
		WalletID:          uuid.New(),
		Principal:         "user-1",
		BalanceBefore:     0,
		BalanceAfter:      100,
		SupplyBefore:      1000,
		SupplyAfter:       1100,
		TriggeredBy:       domain.SystemActor,
		ExternalReference: ref,
		CreatedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}
}

func ledgerColumnNames() []string {
	return []string{"id", "operation_type", "amount", "wallet_id", "principal",
		"balance_before", "balance_after", "supply_before", "supply_after",
		"triggered_by", "external_reference", "reason", "created_at"}
}

func ledgerRow(e *domain.LedgerEntry) *pgxmock.Rows {
	return pgxmock.NewRows(ledgerColumnNames()).AddRow(
		e.ID, e.OperationType, e.Amount, e.WalletID, e.Principal,
		e.BalanceBefore, e.BalanceAfter, e.SupplyBefore, e.SupplyAfter,
		e.TriggeredBy, e.ExternalReference, e.Reason, e.CreatedAt,
	)
}

func TestLedgerRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	ref := "card:pi_123"
	e := newTestEntry(&ref)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.OperationType, e.Amount, e.WalletID, e.Principal,
			e.BalanceBefore, e.BalanceAfter, e.SupplyBefore, e.SupplyAfter,
			e.TriggeredBy, e.ExternalReference, e.Reason, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, e)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByExternalReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	ref := "card:pi_123"
	e := newTestEntry(&ref)

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE external_reference").
		WithArgs(ref).
		WillReturnRows(ledgerRow(e))

	result, err := repo.GetByExternalReference(context.Background(), ref)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, e.ID, result.ID)
	assert.Equal(t, ref, *result.ExternalReference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByExternalReference_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE external_reference").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(ledgerColumnNames()))

	result, err := repo.GetByExternalReference(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListByWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()
	e1 := newTestEntry(nil)
	e2 := newTestEntry(nil)
	e1.WalletID = walletID
	e2.WalletID = walletID

	rows := pgxmock.NewRows(ledgerColumnNames())
	for _, e := range []*domain.LedgerEntry{e1, e2} {
		rows.AddRow(
			e.ID, e.OperationType, e.Amount, e.WalletID, e.Principal,
			e.BalanceBefore, e.BalanceAfter, e.SupplyBefore, e.SupplyAfter,
			e.TriggeredBy, e.ExternalReference, e.Reason, e.CreatedAt,
		)
	}

	mock.ExpectQuery("SELECT .+ FROM ledger_entries").
		WithArgs(walletID, 10).
		WillReturnRows(rows)

	entries, err := repo.ListByWallet(context.Background(), walletID, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
