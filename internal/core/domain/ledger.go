package domain

import (
	"time"

	"github.com/google/uuid"
)

// OperationType classifies a ledger entry.
type OperationType string

const (
	OperationMint        OperationType = "MINT"
	OperationBurn        OperationType = "BURN"
	OperationDeposit     OperationType = "DEPOSIT"
	OperationWithdrawal  OperationType = "WITHDRAWAL"
	OperationTransferIn  OperationType = "TRANSFER_IN"
	OperationTransferOut OperationType = "TRANSFER_OUT"
	OperationFee         OperationType = "FEE"
)

// IsDebit returns true for operations that decrease a wallet balance.
func (t OperationType) IsDebit() bool {
	switch t {
	case OperationBurn, OperationWithdrawal, OperationTransferOut, OperationFee:
		return true
	}
	return false
}

// SupplyDelta returns how the operation moves total supply for a given
// (positive) amount. Transfers move value between wallets and leave supply
// untouched; deposits and mints issue tokens, the rest retire them.
func (t OperationType) SupplyDelta(amount int64) int64 {
	switch t {
	case OperationMint, OperationDeposit:
		return amount
	case OperationBurn, OperationWithdrawal, OperationFee:
		return -amount
	}
	return 0
}

// LedgerEntry is the append-only audit record. Exactly one entry exists for
// every change to a wallet balance or to total supply, and it is immutable
// once written.
type LedgerEntry struct {
	ID                uuid.UUID     `json:"id"`
	OperationType     OperationType `json:"operation_type"`
	Amount            int64         `json:"amount"`
	WalletID          uuid.UUID     `json:"wallet_id"`
	Principal         string        `json:"principal"`
	BalanceBefore     int64         `json:"balance_before"`
	BalanceAfter      int64         `json:"balance_after"`
	SupplyBefore      int64         `json:"supply_before"`
	SupplyAfter       int64         `json:"supply_after"`
	TriggeredBy       string        `json:"triggered_by"`
	ExternalReference *string       `json:"external_reference,omitempty"`
	Reason            *string       `json:"reason,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

// SystemActor is the TriggeredBy value for mutations originating inside the
// service rather than from an admin or user.
const SystemActor = "system"

// BuildExternalReference namespaces a rail event id so references are unique
// across rails. Format: "<rail>:<event_id>".
func BuildExternalReference(rail Rail, eventID string) string {
	return string(rail) + ":" + eventID
}
