package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RailDrift is the comparison of one rail's externally reported balance
// against the ledger's reserve snapshot for that rail.
type RailDrift struct {
	Rail            Rail            `json:"rail"`
	ReportedUSD     decimal.Decimal `json:"reported_usd"`
	LedgerUSD       decimal.Decimal `json:"ledger_usd"`
	DriftUSD        decimal.Decimal `json:"drift_usd"`
	WithinTolerance bool            `json:"within_tolerance"`
	Err             string          `json:"error,omitempty"`
}

// ReconciliationReport is the outcome of one reconciliation run. Drift is
// reported, never silently corrected; correction requires an explicit
// administrative mint or burn with a documented reason.
type ReconciliationReport struct {
	Status       ReconciliationStatus `json:"status"`
	Critical     bool                 `json:"critical"`
	BackingRatio decimal.Decimal      `json:"backing_ratio"`
	TotalSupply  int64                `json:"total_supply"`
	WalletSum    int64                `json:"wallet_sum"`
	DriftToken   int64                `json:"drift_token"`
	DriftUSD     decimal.Decimal      `json:"drift_usd"`
	Rails        []RailDrift          `json:"rails"`
	Details      []string             `json:"details,omitempty"`
	RanAt        time.Time            `json:"ran_at"`
}
