package service

import (
	"context"
	"fmt"
	"time"

	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"
	"jvc-treasury/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type reconciliationService struct {
	wallets   ports.WalletRepository
	treasury  ports.TreasuryRepository
	reporters []ports.RailBalanceReporter
	lock      ports.RunLock
	tolerance decimal.Decimal
	lockTTL   time.Duration
	log       zerolog.Logger
}

// NewReconciliationService creates the reconciliation engine. It compares
// ledger aggregates against externally reported rail balances and flags
// drift; it never changes balances itself.
func NewReconciliationService(
	wallets ports.WalletRepository,
	treasury ports.TreasuryRepository,
	reporters []ports.RailBalanceReporter,
	lock ports.RunLock,
	tolerance decimal.Decimal,
	lockTTL time.Duration,
	log zerolog.Logger,
) ports.ReconciliationService {
	return &reconciliationService{
		wallets:   wallets,
		treasury:  treasury,
		reporters: reporters,
		lock:      lock,
		tolerance: tolerance,
		lockTTL:   lockTTL,
		log:       log.With().Str("component", "reconcile").Logger(),
	}
}

// Reconcile runs one reconciliation pass. A nil report with a nil error means
// another run was already in progress and this one was skipped.
func (s *reconciliationService) Reconcile(ctx context.Context) (*domain.ReconciliationReport, error) {
	acquired, err := s.lock.Acquire(ctx, s.lockTTL)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if !acquired {
		s.log.Info().Msg("Reconciliation already in progress, skipping run")
		return nil, nil
	}
	defer s.lock.Release(ctx)

	treasury, err := s.treasury.Get(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	walletSum, err := s.wallets.SumBalances(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	report := &domain.ReconciliationReport{
		TotalSupply:  treasury.TotalSupply,
		WalletSum:    walletSum,
		DriftToken:   walletSum - treasury.TotalSupply,
		BackingRatio: treasury.BackingRatio(),
		RanAt:        time.Now().UTC(),
	}

	// Conservation: every issued token must live in exactly one wallet
	if report.DriftToken != 0 {
		report.Critical = true
		report.Details = append(report.Details, fmt.Sprintf(
			"conservation violated: wallet sum %d != total supply %d",
			walletSum, treasury.TotalSupply))
	}

	needsReview := report.Critical

	// Backing: reserves should cover circulating supply at the peg. Under-
	// backing warrants operator review but, unlike a conservation break, does
	// not mean the ledger itself is wrong.
	if report.BackingRatio.LessThan(decimal.NewFromInt(100)) {
		needsReview = true
		report.Details = append(report.Details, fmt.Sprintf(
			"under-backed: reserve covers %s%% of supply", report.BackingRatio.StringFixed(2)))
	}
	for _, reporter := range s.reporters {
		drift := s.checkRail(ctx, reporter, treasury)
		report.Rails = append(report.Rails, drift)
		report.DriftUSD = report.DriftUSD.Add(drift.DriftUSD)
		if !drift.WithinTolerance {
			needsReview = true
			if drift.Err == "" {
				report.Details = append(report.Details, fmt.Sprintf(
					"rail %s drifted by %s USD", drift.Rail, drift.DriftUSD.String()))
			}
		}
	}

	report.Status = domain.ReconciliationStatusHealthy
	if needsReview {
		report.Status = domain.ReconciliationStatusNeedsReview
	}

	if err := s.treasury.SetReconciliation(ctx, report.Status, report.RanAt); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist reconciliation status")
	}

	event := s.log.Info()
	if report.Critical {
		event = s.log.Error()
	} else if needsReview {
		event = s.log.Warn()
	}
	event.
		Str("status", string(report.Status)).
		Int64("total_supply", report.TotalSupply).
		Int64("wallet_sum", report.WalletSum).
		Str("backing_ratio", report.BackingRatio.StringFixed(2)).
		Str("drift_usd", report.DriftUSD.String()).
		Msg("Reconciliation run finished")
	return report, nil
}

// checkRail compares one rail's reported balance against the ledger's
// reserve attribution for that rail. A reporting failure is itself a reason
// for review, not a crash.
func (s *reconciliationService) checkRail(ctx context.Context, reporter ports.RailBalanceReporter, treasury *domain.Treasury) domain.RailDrift {
	rail := reporter.Rail()
	ledgerUSD := treasury.Reserves.ForRail(rail)

	reported, err := reporter.ReportedBalance(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("rail", string(rail)).Msg("Rail balance report failed")
		return domain.RailDrift{
			Rail:      rail,
			LedgerUSD: ledgerUSD,
			Err:       err.Error(),
		}
	}

	drift := reported.Sub(ledgerUSD)
	return domain.RailDrift{
		Rail:            rail,
		ReportedUSD:     reported,
		LedgerUSD:       ledgerUSD,
		DriftUSD:        drift,
		WithinTolerance: drift.Abs().LessThanOrEqual(s.tolerance),
	}
}

// RunReconciliationLoop runs the engine on a fixed interval until the context
// is cancelled. Errors are logged and the loop keeps going.
func RunReconciliationLoop(ctx context.Context, svc ports.ReconciliationService, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("Reconciliation loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Reconciliation loop stopped")
			return
		case <-ticker.C:
			if _, err := svc.Reconcile(ctx); err != nil {
				log.Error().Err(err).Msg("Reconciliation run failed")
			}
		}
	}
}
