package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rail identifies an external payment channel.
type Rail string

const (
	RailCard    Rail = "card"
	RailBank    Rail = "bank"
	RailInstant Rail = "instant_transfer"
	RailChain   Rail = "blockchain"
)

// Valid reports whether the rail is one of the supported channels.
func (r Rail) Valid() bool {
	switch r {
	case RailCard, RailBank, RailInstant, RailChain:
		return true
	}
	return false
}

// DepositStatus is the lifecycle state of a deposit or withdrawal record.
type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "PENDING"
	DepositStatusCompleted DepositStatus = "COMPLETED"
	DepositStatusFailed    DepositStatus = "FAILED"
)

// DepositRecord tracks one inbound funding event. Status transitions until
// terminal, then the record is immutable. AmountToken is fixed once at
// confirmation time using the configured peg and never recomputed.
type DepositRecord struct {
	ID                uuid.UUID       `json:"id"`
	Principal         string          `json:"principal"`
	Rail              Rail            `json:"rail"`
	Status            DepositStatus   `json:"status"`
	AmountUSD         decimal.Decimal `json:"amount_usd"`
	AmountToken       int64           `json:"amount_token"`
	ExternalReference string          `json:"external_reference"`
	ChainTxID         *string         `json:"chain_tx_id,omitempty"`
	Confirmations     int             `json:"confirmations,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// IsTerminal returns true once the record can no longer change.
func (d *DepositRecord) IsTerminal() bool {
	return d.Status == DepositStatusCompleted || d.Status == DepositStatusFailed
}

// WithdrawalRecord tracks one outbound settlement event.
type WithdrawalRecord struct {
	ID                uuid.UUID       `json:"id"`
	Principal         string          `json:"principal"`
	Rail              Rail            `json:"rail"`
	Status            DepositStatus   `json:"status"`
	AmountUSD         decimal.Decimal `json:"amount_usd"`
	AmountToken       int64           `json:"amount_token"`
	FeeToken          int64           `json:"fee_token"`
	Destination       string          `json:"destination"`
	ExternalReference string          `json:"external_reference"`
	CreatedAt         time.Time       `json:"created_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}
