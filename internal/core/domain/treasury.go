package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus is the treasury health flag set by the reconciliation
// engine. It never blocks reads.
type ReconciliationStatus string

const (
	ReconciliationStatusHealthy     ReconciliationStatus = "HEALTHY"
	ReconciliationStatusNeedsReview ReconciliationStatus = "NEEDS_REVIEW"
)

// TreasuryID is the primary key of the single treasury row.
const TreasuryID = 1

// RailReserves is the per-rail breakdown of on-hand USD reserves.
type RailReserves struct {
	Card  decimal.Decimal `json:"card"`
	Bank  decimal.Decimal `json:"bank"`
	PayID decimal.Decimal `json:"instant_transfer"`
	Chain decimal.Decimal `json:"blockchain"`
}

// ForRail returns the reserve snapshot attributed to a rail.
func (r RailReserves) ForRail(rail Rail) decimal.Decimal {
	switch rail {
	case RailCard:
		return r.Card
	case RailBank:
		return r.Bank
	case RailInstant:
		return r.PayID
	case RailChain:
		return r.Chain
	}
	return decimal.Zero
}

// Treasury is the singleton aggregate tracking circulating supply and the USD
// reserves backing it. Mutated under optimistic concurrency for the system's
// lifetime.
type Treasury struct {
	ID                    int                  `json:"-"`
	TotalSupply           int64                `json:"total_supply"`
	TotalReserveUSD       decimal.Decimal      `json:"total_reserve_usd"`
	Reserves              RailReserves         `json:"reserves"`
	PendingDepositsUSD    decimal.Decimal      `json:"pending_deposits_usd"`
	PendingWithdrawalsUSD decimal.Decimal      `json:"pending_withdrawals_usd"`
	CollectedFees         int64                `json:"collected_fees"`
	ReconciliationStatus  ReconciliationStatus `json:"reconciliation_status"`
	LastReconciledAt      *time.Time           `json:"last_reconciled_at,omitempty"`
	Version               int64                `json:"-"`
	UpdatedAt             time.Time            `json:"updated_at"`
}

// BackingRatio returns reserve/supply as a percentage. A supply of zero is
// fully backed by definition.
func (t *Treasury) BackingRatio() decimal.Decimal {
	if t.TotalSupply == 0 {
		return decimal.NewFromInt(100)
	}
	return t.TotalReserveUSD.
		Div(decimal.NewFromInt(t.TotalSupply)).
		Mul(decimal.NewFromInt(100))
}
