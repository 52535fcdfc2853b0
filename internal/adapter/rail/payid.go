package rail

import (
	"context"

	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"

	"github.com/shopspring/decimal"
)

// PayIDRail funds deposits through the instant-transfer network. Payers send
// to the treasury's PayID alias with the handed-out reference; the processor
// may also return a hosted checkout URL.
type PayIDRail struct {
	processor ports.PaymentProcessor
	alias     string
}

// NewPayIDRail creates the instant-transfer deposit rail.
func NewPayIDRail(processor ports.PaymentProcessor, alias string) *PayIDRail {
	return &PayIDRail{processor: processor, alias: alias}
}

func (r *PayIDRail) Rail() domain.Rail { return domain.RailInstant }

func (r *PayIDRail) Initiate(ctx context.Context, principal string, amountUSD decimal.Decimal, reference string) (domain.DepositInstructions, error) {
	intent, err := r.processor.CreatePayment(ctx, amountUSD, "USD", "payid", reference)
	if err != nil {
		return nil, err
	}

	instructions := domain.PayIDInstructions{
		PayID:     r.alias,
		Reference: reference,
	}
	if intent.PaymentURL != "" {
		url := intent.PaymentURL
		instructions.RedirectURL = &url
	}
	return instructions, nil
}

// ReportedBalance exposes the processor account balance for reconciliation.
func (r *PayIDRail) ReportedBalance(ctx context.Context) (decimal.Decimal, error) {
	return r.processor.GetAccountBalance(ctx)
}
