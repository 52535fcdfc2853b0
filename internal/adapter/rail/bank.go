package rail

import (
	"context"

	"jvc-treasury/config"
	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"

	"github.com/shopspring/decimal"
)

// BankRail funds deposits through manual bank transfers. Initiation hands out
// static payee details plus a reference the payer must quote; the bank feed
// webhook later matches on that reference.
type BankRail struct {
	cfg       config.BankRailConfig
	processor ports.PaymentProcessor
}

// NewBankRail creates the bank transfer deposit rail. The processor is only
// used for balance reporting and may be nil in setups without a bank feed.
func NewBankRail(cfg config.BankRailConfig, processor ports.PaymentProcessor) *BankRail {
	return &BankRail{cfg: cfg, processor: processor}
}

func (r *BankRail) Rail() domain.Rail { return domain.RailBank }

func (r *BankRail) Initiate(ctx context.Context, principal string, amountUSD decimal.Decimal, reference string) (domain.DepositInstructions, error) {
	return domain.BankInstructions{
		AccountName:   r.cfg.AccountName,
		AccountNumber: r.cfg.AccountNumber,
		BranchCode:    r.cfg.BranchCode,
		Reference:     reference,
	}, nil
}

// ReportedBalance exposes the bank feed balance for reconciliation.
func (r *BankRail) ReportedBalance(ctx context.Context) (decimal.Decimal, error) {
	return r.processor.GetAccountBalance(ctx)
}
