package rail

import (
	"context"

	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"

	"github.com/shopspring/decimal"
)

// CardRail funds deposits through the card processor. The processor's payment
// intent id becomes the deposit's confirmation key: the success webhook echoes
// it back as the event id.
type CardRail struct {
	processor ports.PaymentProcessor
}

// NewCardRail creates the card deposit rail.
func NewCardRail(processor ports.PaymentProcessor) *CardRail {
	return &CardRail{processor: processor}
}

func (r *CardRail) Rail() domain.Rail { return domain.RailCard }

func (r *CardRail) Initiate(ctx context.Context, principal string, amountUSD decimal.Decimal, reference string) (domain.DepositInstructions, error) {
	intent, err := r.processor.CreatePayment(ctx, amountUSD, "USD", "card", reference)
	if err != nil {
		return nil, err
	}
	return domain.CardInstructions{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

// ReportedBalance exposes the processor account balance for reconciliation.
func (r *CardRail) ReportedBalance(ctx context.Context) (decimal.Decimal, error) {
	return r.processor.GetAccountBalance(ctx)
}
