package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReconFixture(t *testing.T, lf *ledgerFixture, reporters ...ports.RailBalanceReporter) ports.ReconciliationService {
	t.Helper()
	return NewReconciliationService(
		lf.wallets, lf.treasury, reporters, &fakeRunLock{},
		decimal.NewFromInt(1), time.Minute, zerolog.Nop(),
	)
}

// depositVia credits a principal through the ledger with a rail-attributed
// reserve delta, the same shape a confirmed deposit produces.
func depositVia(t *testing.T, lf *ledgerFixture, rail domain.Rail, principal string, tokens int64, reserveUSD int64) {
	t.Helper()
	ref := domain.BuildExternalReference(rail, "recon-"+principal+"-"+string(rail))
	_, err := lf.svc.Credit(context.Background(), ports.CreditParams{
		Principal:         principal,
		PrincipalType:     domain.PrincipalTypeUser,
		Amount:            tokens,
		OpType:            domain.OperationDeposit,
		ExternalReference: &ref,
		TreasuryExtra: ports.TreasuryMutation{
			ReserveDeltaUSD: decimal.NewFromInt(reserveUSD),
			Rail:            &rail,
		},
		TriggeredBy: domain.SystemActor,
	})
	require.NoError(t, err)
}

func TestReconcile_HealthyAtFullBacking(t *testing.T) {
	lf := newLedgerFixture()
	depositVia(t, lf, domain.RailCard, "user-1", 100, 100)
	svc := newReconFixture(t, lf, &fakeReporter{rail: domain.RailCard, balance: decimal.NewFromInt(100)})

	report, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, domain.ReconciliationStatusHealthy, report.Status)
	assert.False(t, report.Critical)
	assert.Equal(t, int64(0), report.DriftToken)
	assert.True(t, report.BackingRatio.Equal(decimal.NewFromInt(100)))
}

func TestReconcile_OverBackedIsHealthy(t *testing.T) {
	lf := newLedgerFixture()
	// 150 USD reserve backing 100 tokens
	depositVia(t, lf, domain.RailCard, "user-1", 100, 150)
	svc := newReconFixture(t, lf, &fakeReporter{rail: domain.RailCard, balance: decimal.NewFromInt(150)})

	report, err := svc.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.ReconciliationStatusHealthy, report.Status)
	assert.True(t, report.BackingRatio.Equal(decimal.NewFromInt(150)))
}

func TestReconcile_UnderBackedNeedsReview(t *testing.T) {
	lf := newLedgerFixture()
	// 80 USD reserve backing 100 tokens
	depositVia(t, lf, domain.RailCard, "user-1", 100, 80)
	svc := newReconFixture(t, lf, &fakeReporter{rail: domain.RailCard, balance: decimal.NewFromInt(80)})

	report, err := svc.Reconcile(context.Background())
	require.NoError(t, err)

	// The ledger still conserves; only the reserve is short
	assert.Equal(t, domain.ReconciliationStatusNeedsReview, report.Status)
	assert.False(t, report.Critical)
	assert.True(t, report.BackingRatio.Equal(decimal.NewFromInt(80)))
	assert.NotEmpty(t, report.Details)

	treasury, _ := lf.treasury.Get(context.Background())
	assert.Equal(t, domain.ReconciliationStatusNeedsReview, treasury.ReconciliationStatus)
	assert.NotNil(t, treasury.LastReconciledAt)
}

func TestReconcile_ConservationViolationIsCritical(t *testing.T) {
	lf := newLedgerFixture()
	depositVia(t, lf, domain.RailCard, "user-1", 100, 100)
	// Balance that never went through the ledger
	lf.wallets.seed("ghost", domain.PrincipalTypeUser, 25)
	svc := newReconFixture(t, lf, &fakeReporter{rail: domain.RailCard, balance: decimal.NewFromInt(100)})

	report, err := svc.Reconcile(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Critical)
	assert.Equal(t, int64(25), report.DriftToken)
	assert.Equal(t, domain.ReconciliationStatusNeedsReview, report.Status)
}

func TestReconcile_RailDriftOutsideTolerance(t *testing.T) {
	lf := newLedgerFixture()
	depositVia(t, lf, domain.RailCard, "user-1", 100, 100)
	// Processor reports 10 USD less than the ledger attributes to the rail
	svc := newReconFixture(t, lf, &fakeReporter{rail: domain.RailCard, balance: decimal.NewFromInt(90)})

	report, err := svc.Reconcile(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Critical)
	assert.Equal(t, domain.ReconciliationStatusNeedsReview, report.Status)
	require.Len(t, report.Rails, 1)
	assert.False(t, report.Rails[0].WithinTolerance)
	assert.True(t, report.Rails[0].DriftUSD.Equal(decimal.NewFromInt(-10)))
}

func TestReconcile_RailReportFailureNeedsReview(t *testing.T) {
	lf := newLedgerFixture()
	depositVia(t, lf, domain.RailCard, "user-1", 100, 100)
	svc := newReconFixture(t, lf, &fakeReporter{rail: domain.RailCard, err: errors.New("processor timeout")})

	report, err := svc.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.ReconciliationStatusNeedsReview, report.Status)
	require.Len(t, report.Rails, 1)
	assert.Equal(t, "processor timeout", report.Rails[0].Err)
}

func TestReconcile_SkipsWhenLockHeld(t *testing.T) {
	lf := newLedgerFixture()
	lock := &fakeRunLock{}
	held, err := lock.Acquire(context.Background(), time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	svc := NewReconciliationService(
		lf.wallets, lf.treasury, nil, lock,
		decimal.NewFromInt(1), time.Minute, zerolog.Nop(),
	)

	report, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report)
}
