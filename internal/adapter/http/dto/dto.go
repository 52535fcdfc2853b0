package dto

import (
	"jvc-treasury/internal/core/domain"
)

// LoginRequest is the request body for admin login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// TransferRequest is the request body for a wallet-to-wallet transfer.
type TransferRequest struct {
	SenderPrincipal   string `json:"sender_principal" binding:"required,max=100,safe_id"`
	ReceiverPrincipal string `json:"receiver_principal" binding:"required,max=100,safe_id"`
	ReceiverType      string `json:"receiver_type,omitempty" binding:"omitempty,oneof=USER VENUE"`
	Amount            int64  `json:"amount" binding:"required,gt=0"`
}

// LedgerEntryResponse is one ledger entry in API responses.
type LedgerEntryResponse struct {
	ID                string  `json:"id"`
	OperationType     string  `json:"operation_type"`
	Amount            int64   `json:"amount"`
	Principal         string  `json:"principal"`
	BalanceBefore     int64   `json:"balance_before"`
	BalanceAfter      int64   `json:"balance_after"`
	SupplyAfter       int64   `json:"supply_after"`
	ExternalReference *string `json:"external_reference,omitempty"`
	Reason            *string `json:"reason,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

// NewLedgerEntryResponse maps a domain ledger entry to its API shape.
func NewLedgerEntryResponse(e *domain.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:                e.ID.String(),
		OperationType:     string(e.OperationType),
		Amount:            e.Amount,
		Principal:         e.Principal,
		BalanceBefore:     e.BalanceBefore,
		BalanceAfter:      e.BalanceAfter,
		SupplyAfter:       e.SupplyAfter,
		ExternalReference: e.ExternalReference,
		Reason:            e.Reason,
		CreatedAt:         e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// TransferResponse carries both legs of a committed transfer.
type TransferResponse struct {
	Sender    LedgerEntryResponse `json:"sender"`
	Receiver  LedgerEntryResponse `json:"receiver"`
	ChainTxID *string             `json:"chain_tx_id,omitempty"`
}

// BalanceResponse is the response for a wallet balance query.
type BalanceResponse struct {
	Principal    string  `json:"principal"`
	Balance      int64   `json:"balance"`
	Frozen       bool    `json:"frozen"`
	ChainAddress *string `json:"chain_address,omitempty"`
	TrustlineSet bool    `json:"trustline_set"`
}

// VerifyRequest asks whether a principal can cover an amount.
type VerifyRequest struct {
	Principal string `json:"principal" binding:"required,max=100,safe_id"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
}

// VerifyResponse is the outcome of a balance verification.
type VerifyResponse struct {
	Sufficient bool `json:"sufficient"`
}

// DepositInitiateRequest starts a deposit through a rail.
type DepositInitiateRequest struct {
	Principal     string `json:"principal" binding:"required,max=100,safe_id"`
	PrincipalType string `json:"principal_type,omitempty" binding:"omitempty,oneof=USER VENUE"`
	Rail          string `json:"rail" binding:"required"`
	AmountUSD     string `json:"amount_usd" binding:"required"`
}

// DepositResponse is the API shape of a deposit record.
type DepositResponse struct {
	ID           string      `json:"id"`
	Principal    string      `json:"principal"`
	Rail         string      `json:"rail"`
	Status       string      `json:"status"`
	AmountUSD    string      `json:"amount_usd"`
	AmountToken  int64       `json:"amount_token,omitempty"`
	Reference    string      `json:"reference"`
	Instructions interface{} `json:"instructions,omitempty"`
}

// NewDepositResponse maps a deposit record, optionally with its rail
// instructions.
func NewDepositResponse(d *domain.DepositRecord, instructions domain.DepositInstructions) DepositResponse {
	return DepositResponse{
		ID:           d.ID.String(),
		Principal:    d.Principal,
		Rail:         string(d.Rail),
		Status:       string(d.Status),
		AmountUSD:    d.AmountUSD.String(),
		AmountToken:  d.AmountToken,
		Reference:    d.ExternalReference,
		Instructions: instructions,
	}
}

// WithdrawalCreateRequest moves tokens back out through a rail.
type WithdrawalCreateRequest struct {
	Principal   string `json:"principal" binding:"required,max=100,safe_id"`
	Rail        string `json:"rail" binding:"required"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Destination string `json:"destination" binding:"required,max=200,safe_id"`
}

// WithdrawalResponse is the API shape of a withdrawal record.
type WithdrawalResponse struct {
	ID          string `json:"id"`
	Principal   string `json:"principal"`
	Rail        string `json:"rail"`
	Status      string `json:"status"`
	AmountUSD   string `json:"amount_usd"`
	AmountToken int64  `json:"amount_token"`
	FeeToken    int64  `json:"fee_token"`
	Destination string `json:"destination"`
	Reference   string `json:"reference"`
}

// NewWithdrawalResponse maps a withdrawal record to its API shape.
func NewWithdrawalResponse(w *domain.WithdrawalRecord) WithdrawalResponse {
	return WithdrawalResponse{
		ID:          w.ID.String(),
		Principal:   w.Principal,
		Rail:        string(w.Rail),
		Status:      string(w.Status),
		AmountUSD:   w.AmountUSD.String(),
		AmountToken: w.AmountToken,
		FeeToken:    w.FeeToken,
		Destination: w.Destination,
		Reference:   w.ExternalReference,
	}
}

// MintRequest is the request body for an administrative mint.
// An empty target mints to the treasury float wallet.
type MintRequest struct {
	Target string `json:"target,omitempty" binding:"omitempty,max=100,safe_id"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Reason string `json:"reason" binding:"required,max=500"`
}

// BurnRequest is the request body for an administrative burn.
type BurnRequest struct {
	Target      string `json:"target,omitempty" binding:"omitempty,max=100,safe_id"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Reason      string `json:"reason" binding:"required,max=500"`
	AllowFrozen bool   `json:"allow_frozen,omitempty"`
}

// FreezeRequest is the request body for freezing a wallet.
type FreezeRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// TrustlineRequest enables blockchain mirroring for a wallet.
type TrustlineRequest struct {
	Principal      string `json:"principal" binding:"required,max=100,safe_id"`
	TrustlineLimit int64  `json:"trustline_limit" binding:"required,gt=0"`
}

// TrustlineResponse returns the provisioned chain address.
type TrustlineResponse struct {
	Principal    string `json:"principal"`
	ChainAddress string `json:"chain_address"`
}

// RailWebhook is the normalized event body delivered by rail processors.
// EventType distinguishes inbound confirmations from outbound settlements.
type RailWebhook struct {
	EventID   string `json:"event_id" binding:"required,max=200"`
	EventType string `json:"event_type" binding:"required,oneof=payment.succeeded payment.failed payout.succeeded payout.failed"`
	Reference string `json:"reference,omitempty" binding:"omitempty,max=200"`
	AmountUSD string `json:"amount_usd,omitempty"`
}

// HistoryResponse wraps a wallet's ledger history.
type HistoryResponse struct {
	Principal string                `json:"principal"`
	Entries   []LedgerEntryResponse `json:"entries"`
}
