package rail

import (
	"context"
	"time"

	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"

	"github.com/rs/zerolog"
)

// ChainWatcher polls the issuer address for inbound payments and confirms
// pending blockchain deposits once they reach the required confirmation
// depth. Payments are matched to deposits by memo.
type ChainWatcher struct {
	client                ports.ChainClient
	deposits              ports.DepositRepository
	depositSvc            ports.DepositService
	issuerAddress         string
	requiredConfirmations int
	pollInterval          time.Duration
	log                   zerolog.Logger
}

// NewChainWatcher creates the confirmation poller for the blockchain rail.
func NewChainWatcher(
	client ports.ChainClient,
	deposits ports.DepositRepository,
	depositSvc ports.DepositService,
	issuerAddress string,
	requiredConfirmations int,
	pollInterval time.Duration,
	log zerolog.Logger,
) *ChainWatcher {
	return &ChainWatcher{
		client:                client,
		deposits:              deposits,
		depositSvc:            depositSvc,
		issuerAddress:         issuerAddress,
		requiredConfirmations: requiredConfirmations,
		pollInterval:          pollInterval,
		log:                   log.With().Str("component", "chain_watcher").Logger(),
	}
}

// Run polls until the context is cancelled.
func (w *ChainWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", w.pollInterval).Msg("Chain watcher started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Chain watcher stopped")
			return
		case <-ticker.C:
			if err := w.Poll(ctx); err != nil {
				w.log.Warn().Err(err).Msg("Chain poll failed")
			}
		}
	}
}

// Poll runs one pass: fetch inbound payments, update confirmation counts and
// confirm deposits that reached the required depth.
func (w *ChainWatcher) Poll(ctx context.Context) error {
	pending, err := w.deposits.ListPendingByRail(ctx, domain.RailChain)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	payments, err := w.client.ListIncoming(ctx, w.issuerAddress)
	if err != nil {
		return err
	}
	byMemo := make(map[string]ports.ChainPayment, len(payments))
	for _, p := range payments {
		byMemo[p.Memo] = p
	}

	for _, d := range pending {
		payment, ok := byMemo[d.ExternalReference]
		if !ok {
			continue
		}

		if payment.Confirmations != d.Confirmations {
			if err := w.deposits.UpdateConfirmations(ctx, d.ID, payment.Confirmations); err != nil {
				w.log.Warn().Err(err).Str("deposit_id", d.ID.String()).Msg("Failed to update confirmations")
			}
		}

		if payment.Confirmations < w.requiredConfirmations {
			w.log.Debug().
				Str("deposit_id", d.ID.String()).
				Str("tx_id", payment.TxID).
				Int("confirmations", payment.Confirmations).
				Int("required", w.requiredConfirmations).
				Msg("Deposit awaiting confirmations")
			continue
		}

		if _, err := w.depositSvc.Confirm(ctx, ports.DepositConfirmation{
			Rail:      domain.RailChain,
			EventID:   d.ExternalReference,
			AmountUSD: payment.AmountUSD,
		}); err != nil {
			w.log.Error().Err(err).Str("deposit_id", d.ID.String()).Msg("Failed to confirm chain deposit")
			continue
		}
		w.log.Info().
			Str("deposit_id", d.ID.String()).
			Str("tx_id", payment.TxID).
			Int("confirmations", payment.Confirmations).
			Msg("Chain deposit confirmed")
	}
	return nil
}
