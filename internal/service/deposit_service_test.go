package service

import (
	"context"
	"testing"
	"time"

	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type depositFixture struct {
	svc      ports.DepositService
	ledger   *ledgerFixture
	deposits *fakeDepositRepo
	card     *fakeRailAdapter
	bank     *fakeRailAdapter
	chain    *fakeRailAdapter
}

func newDepositFixture(t *testing.T) *depositFixture {
	t.Helper()
	lf := newLedgerFixture()
	deposits := newFakeDepositRepo()
	card := &fakeRailAdapter{
		rail: domain.RailCard,
		instructions: domain.CardInstructions{
			ClientSecret:    "cs_test_secret",
			PaymentIntentID: "pi_123",
		},
	}
	bank := &fakeRailAdapter{
		rail: domain.RailBank,
		instructions: domain.BankInstructions{
			AccountName:   "JVC Treasury",
			AccountNumber: "12345678",
			BranchCode:    "083-001",
		},
	}
	chain := &fakeRailAdapter{
		rail: domain.RailChain,
		instructions: domain.CryptoInstructions{
			Address:               "rIssuerAddr",
			Memo:                  "memo-1",
			RequiredConfirmations: 3,
		},
	}
	svc := NewDepositService(
		&fakeTransactor{}, deposits, lf.treasury, lf.svc,
		[]ports.RailAdapter{card, bank, chain},
		decimal.NewFromInt(1), 24*time.Hour, zerolog.Nop(),
	)
	return &depositFixture{svc: svc, ledger: lf, deposits: deposits, card: card, bank: bank, chain: chain}
}

func TestDepositInitiate_CardReturnsProcessorInstructions(t *testing.T) {
	f := newDepositFixture(t)
	ctx := context.Background()

	record, instructions, err := f.svc.Initiate(ctx, ports.DepositRequest{
		Principal:     "user-1",
		PrincipalType: domain.PrincipalTypeUser,
		Rail:          domain.RailCard,
		AmountUSD:     decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	card, ok := instructions.(domain.CardInstructions)
	require.True(t, ok)
	assert.Equal(t, "cs_test_secret", card.ClientSecret)

	// Card deposits are keyed by the processor's payment intent id
	assert.Equal(t, "pi_123", record.ExternalReference)
	assert.Equal(t, domain.DepositStatusPending, record.Status)

	// No tokens move on initiate
	wallet, _ := f.ledger.wallets.GetByPrincipal(ctx, "user-1")
	assert.Nil(t, wallet)

	treasury, _ := f.ledger.treasury.Get(ctx)
	assert.True(t, treasury.PendingDepositsUSD.Equal(decimal.NewFromInt(100)))
}

func TestDepositInitiate_UnknownRail(t *testing.T) {
	f := newDepositFixture(t)

	_, _, err := f.svc.Initiate(context.Background(), ports.DepositRequest{
		Principal: "user-1",
		Rail:      domain.Rail("paypal"),
		AmountUSD: decimal.NewFromInt(10),
	})
	assertAppError(t, err, "DEP_001")
}

func TestDepositConfirm_CreditsAndAttributesReserve(t *testing.T) {
	f := newDepositFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Initiate(ctx, ports.DepositRequest{
		Principal:     "user-1",
		PrincipalType: domain.PrincipalTypeUser,
		Rail:          domain.RailCard,
		AmountUSD:     decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	record, err := f.svc.Confirm(ctx, ports.DepositConfirmation{
		Rail:      domain.RailCard,
		EventID:   "pi_123",
		AmountUSD: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DepositStatusCompleted, record.Status)
	assert.Equal(t, int64(100), record.AmountToken)

	wallet, _ := f.ledger.wallets.GetByPrincipal(ctx, "user-1")
	assert.Equal(t, int64(100), wallet.TokenBalance)

	treasury, _ := f.ledger.treasury.Get(ctx)
	assert.Equal(t, int64(100), treasury.TotalSupply)
	assert.True(t, treasury.TotalReserveUSD.Equal(decimal.NewFromInt(100)))
	assert.True(t, treasury.Reserves.Card.Equal(decimal.NewFromInt(100)))
	assert.True(t, treasury.PendingDepositsUSD.IsZero())
}

func TestDepositConfirm_ReplayedWebhookCreditsOnce(t *testing.T) {
	f := newDepositFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Initiate(ctx, ports.DepositRequest{
		Principal:     "user-1",
		PrincipalType: domain.PrincipalTypeUser,
		Rail:          domain.RailCard,
		AmountUSD:     decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	confirmation := ports.DepositConfirmation{
		Rail:      domain.RailCard,
		EventID:   "pi_123",
		AmountUSD: decimal.NewFromInt(50),
	}
	first, err := f.svc.Confirm(ctx, confirmation)
	require.NoError(t, err)
	second, err := f.svc.Confirm(ctx, confirmation)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.DepositStatusCompleted, second.Status)

	wallet, _ := f.ledger.wallets.GetByPrincipal(ctx, "user-1")
	assert.Equal(t, int64(50), wallet.TokenBalance)
	treasury, _ := f.ledger.treasury.Get(ctx)
	assert.Equal(t, int64(50), treasury.TotalSupply)
}

func TestDepositConfirm_UnknownEvent(t *testing.T) {
	f := newDepositFixture(t)

	_, err := f.svc.Confirm(context.Background(), ports.DepositConfirmation{
		Rail:      domain.RailCard,
		EventID:   "pi_unknown",
		AmountUSD: decimal.NewFromInt(10),
	})
	assertAppError(t, err, "LED_006")
}

func TestDepositConfirm_BankUsesReceivedAmount(t *testing.T) {
	f := newDepositFixture(t)
	ctx := context.Background()

	_, instructions, err := f.svc.Initiate(ctx, ports.DepositRequest{
		Principal:     "user-1",
		PrincipalType: domain.PrincipalTypeUser,
		Rail:          domain.RailBank,
		AmountUSD:     decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	_, ok := instructions.(domain.BankInstructions)
	require.True(t, ok)

	// The transfer arrives for less than was announced; credit what arrived
	record, err := f.svc.Confirm(ctx, ports.DepositConfirmation{
		Rail:      domain.RailBank,
		EventID:   f.bank.lastRef,
		AmountUSD: decimal.NewFromInt(80),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(80), record.AmountToken)

	wallet, _ := f.ledger.wallets.GetByPrincipal(ctx, "user-1")
	assert.Equal(t, int64(80), wallet.TokenBalance)
}

func TestDepositFail_ReleasesPendingReservation(t *testing.T) {
	f := newDepositFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Initiate(ctx, ports.DepositRequest{
		Principal:     "user-1",
		PrincipalType: domain.PrincipalTypeUser,
		Rail:          domain.RailBank,
		AmountUSD:     decimal.NewFromInt(60),
	})
	require.NoError(t, err)

	record, err := f.svc.Fail(ctx, domain.RailBank, f.bank.lastRef)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositStatusFailed, record.Status)
	require.NotNil(t, record.CompletedAt)

	// No tokens were issued and the reservation is released
	wallet, _ := f.ledger.wallets.GetByPrincipal(ctx, "user-1")
	assert.Nil(t, wallet)
	treasury, _ := f.ledger.treasury.Get(ctx)
	assert.True(t, treasury.PendingDepositsUSD.IsZero())

	// A redelivered failure returns the terminal record unchanged
	again, err := f.svc.Fail(ctx, domain.RailBank, f.bank.lastRef)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositStatusFailed, again.Status)
	treasury, _ = f.ledger.treasury.Get(ctx)
	assert.True(t, treasury.PendingDepositsUSD.IsZero())
}

func TestDepositFail_UnknownEvent(t *testing.T) {
	f := newDepositFixture(t)

	_, err := f.svc.Fail(context.Background(), domain.RailBank, "no-such-ref")
	assertAppError(t, err, "LED_006")
}

func TestDepositExpireStale(t *testing.T) {
	f := newDepositFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Initiate(ctx, ports.DepositRequest{
		Principal:     "user-1",
		PrincipalType: domain.PrincipalTypeUser,
		Rail:          domain.RailBank,
		AmountUSD:     decimal.NewFromInt(40),
	})
	require.NoError(t, err)

	// Age the record past the TTL
	for _, d := range f.deposits.deposits {
		d.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	}

	expired, err := f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	treasury, _ := f.ledger.treasury.Get(ctx)
	assert.True(t, treasury.PendingDepositsUSD.IsZero())

	// An expired deposit can no longer be confirmed
	_, err = f.svc.Confirm(ctx, ports.DepositConfirmation{
		Rail:      domain.RailBank,
		EventID:   f.bank.lastRef,
		AmountUSD: decimal.NewFromInt(40),
	})
	assertAppError(t, err, "DEP_002")
}
