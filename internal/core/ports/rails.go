package ports

import (
	"context"

	"jvc-treasury/internal/core/domain"

	"github.com/shopspring/decimal"
)

// RailAdapter is the common capability every deposit rail implements:
// translate a funding request into rail-specific instructions. Confirmation
// arrives separately (webhook or chain watcher) as a DepositConfirmation.
type RailAdapter interface {
	Rail() domain.Rail
	Initiate(ctx context.Context, principal string, amountUSD decimal.Decimal, reference string) (domain.DepositInstructions, error)
}

// PaymentIntent is the processor's answer to create_payment.
type PaymentIntent struct {
	ID           string
	Status       string
	ClientSecret string
	PaymentURL   string
}

// PaymentProcessor is the opaque card/bank/instant-transfer processor
// boundary. Only the normalized contract is relied upon.
type PaymentProcessor interface {
	CreatePayment(ctx context.Context, amountUSD decimal.Decimal, currency, method, reference string) (*PaymentIntent, error)
	GetAccountBalance(ctx context.Context) (decimal.Decimal, error)
}

// RailBalanceReporter exposes a rail's externally reported USD balance for
// reconciliation. Card and instant-transfer rails report the processor
// account balance; the blockchain rail reports the issuer address balance.
type RailBalanceReporter interface {
	Rail() domain.Rail
	ReportedBalance(ctx context.Context) (decimal.Decimal, error)
}

// ChainPayment is an observed inbound payment to a watched address.
type ChainPayment struct {
	TxID          string
	Memo          string
	AmountUSD     decimal.Decimal
	Confirmations int
}

// ChainClient is the blockchain rail service boundary.
type ChainClient interface {
	GenerateWallet(ctx context.Context) (string, error)
	SetupTrustline(ctx context.Context, address string, limit int64) error
	Transfer(ctx context.Context, from, to string, amount int64) (string, error)
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
	GetConfirmations(ctx context.Context, txID string) (int, error)
	ListIncoming(ctx context.Context, address string) ([]ChainPayment, error)
}
