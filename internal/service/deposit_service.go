package service

import (
	"context"
	"time"

	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"
	"jvc-treasury/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type depositService struct {
	transactor ports.DBTransactor
	deposits   ports.DepositRepository
	treasury   ports.TreasuryRepository
	ledger     ports.LedgerService
	rails      map[domain.Rail]ports.RailAdapter
	pegRate    decimal.Decimal
	depositTTL time.Duration
	log        zerolog.Logger
}

// NewDepositService creates the deposit lifecycle owner. Rail adapters are
// registered by rail name; a request for an unregistered rail fails with
// DEP_001 rather than guessing.
func NewDepositService(
	transactor ports.DBTransactor,
	deposits ports.DepositRepository,
	treasury ports.TreasuryRepository,
	ledger ports.LedgerService,
	rails []ports.RailAdapter,
	pegRate decimal.Decimal,
	depositTTL time.Duration,
	log zerolog.Logger,
) ports.DepositService {
	byRail := make(map[domain.Rail]ports.RailAdapter, len(rails))
	for _, r := range rails {
		byRail[r.Rail()] = r
	}
	return &depositService{
		transactor: transactor,
		deposits:   deposits,
		treasury:   treasury,
		ledger:     ledger,
		rails:      byRail,
		pegRate:    pegRate,
		depositTTL: depositTTL,
		log:        log.With().Str("component", "deposit").Logger(),
	}
}

// Initiate opens a pending deposit and returns the rail-specific payment
// instructions. No tokens move until the rail confirms receipt of funds.
func (s *depositService) Initiate(ctx context.Context, req ports.DepositRequest) (*domain.DepositRecord, domain.DepositInstructions, error) {
	if !req.Rail.Valid() {
		return nil, nil, apperror.ErrUnknownRail(string(req.Rail))
	}
	adapter, ok := s.rails[req.Rail]
	if !ok {
		return nil, nil, apperror.ErrUnknownRail(string(req.Rail))
	}
	if !req.AmountUSD.IsPositive() {
		return nil, nil, apperror.Validation("Deposit amount must be positive")
	}
	if req.Principal == "" {
		return nil, nil, apperror.Validation("Principal is required")
	}

	reference := newDepositReference()
	instructions, err := adapter.Initiate(ctx, req.Principal, req.AmountUSD, reference)
	if err != nil {
		return nil, nil, err
	}

	record := &domain.DepositRecord{
		ID:                uuid.New(),
		Principal:         req.Principal,
		Rail:              req.Rail,
		Status:            domain.DepositStatusPending,
		AmountUSD:         req.AmountUSD,
		ExternalReference: confirmationKey(instructions, reference),
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.deposits.Create(ctx, record); err != nil {
		return nil, nil, apperror.ErrDatabaseError(err)
	}

	if err := s.adjustPendingDeposits(ctx, req.AmountUSD); err != nil {
		s.log.Warn().Err(err).Str("deposit_id", record.ID.String()).
			Msg("Failed to bump pending deposits, reconciliation will surface it")
	}

	s.log.Info().
		Str("deposit_id", record.ID.String()).
		Str("principal", req.Principal).
		Str("rail", string(req.Rail)).
		Str("amount_usd", req.AmountUSD.String()).
		Msg("Deposit initiated")
	return record, instructions, nil
}

// Confirm credits a pending deposit after the rail reports funds received.
// Redelivered confirmations return the already completed record unchanged.
func (s *depositService) Confirm(ctx context.Context, c ports.DepositConfirmation) (*domain.DepositRecord, error) {
	if !c.Rail.Valid() {
		return nil, apperror.ErrUnknownRail(string(c.Rail))
	}
	if c.EventID == "" {
		return nil, apperror.Validation("Event id is required")
	}

	record, err := s.deposits.GetByExternalReference(ctx, c.Rail, c.EventID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if record == nil {
		return nil, apperror.ErrNotFound("Deposit")
	}
	if record.Status == domain.DepositStatusCompleted {
		s.log.Info().Str("deposit_id", record.ID.String()).Msg("Deposit confirmation replayed")
		return record, nil
	}
	if record.Status != domain.DepositStatusPending {
		return nil, apperror.ErrDepositNotPending()
	}

	// The rail-reported amount is authoritative when present; a manual bank
	// transfer may arrive for a different amount than was announced.
	amountUSD := record.AmountUSD
	if c.AmountUSD.IsPositive() {
		amountUSD = c.AmountUSD
	}
	amountToken := s.usdToToken(amountUSD)
	if amountToken <= 0 {
		return nil, apperror.Validation("Confirmed amount is below one token")
	}

	rail := c.Rail
	extRef := domain.BuildExternalReference(c.Rail, c.EventID)
	entry, err := s.ledger.Credit(ctx, ports.CreditParams{
		Principal:         record.Principal,
		PrincipalType:     domain.PrincipalTypeUser,
		Amount:            amountToken,
		OpType:            domain.OperationDeposit,
		ExternalReference: &extRef,
		TreasuryExtra: ports.TreasuryMutation{
			ReserveDeltaUSD:      amountUSD,
			Rail:                 &rail,
			PendingDepositsDelta: record.AmountUSD.Neg(),
		},
		TriggeredBy: domain.SystemActor,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.deposits.MarkCompleted(ctx, record.ID, amountToken, now); err != nil {
		// The credit is committed and idempotent; the record catches up on
		// the next redelivery.
		s.log.Error().Err(err).Str("deposit_id", record.ID.String()).
			Msg("Deposit credited but record not marked completed")
		return nil, apperror.ErrDatabaseError(err)
	}

	record.Status = domain.DepositStatusCompleted
	record.AmountUSD = amountUSD
	record.AmountToken = amountToken
	record.CompletedAt = &now

	s.log.Info().
		Str("deposit_id", record.ID.String()).
		Str("rail", string(c.Rail)).
		Int64("amount_token", amountToken).
		Str("ledger_entry", entry.ID.String()).
		Msg("Deposit confirmed and credited")
	return record, nil
}

// Fail marks a pending deposit failed after the rail reports the payment did
// not complete, releasing its pending-deposit reservation. Redeliveries of a
// terminal record return it unchanged.
func (s *depositService) Fail(ctx context.Context, rail domain.Rail, eventID string) (*domain.DepositRecord, error) {
	if !rail.Valid() {
		return nil, apperror.ErrUnknownRail(string(rail))
	}
	if eventID == "" {
		return nil, apperror.Validation("Event id is required")
	}

	record, err := s.deposits.GetByExternalReference(ctx, rail, eventID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if record == nil {
		return nil, apperror.ErrNotFound("Deposit")
	}
	if record.IsTerminal() {
		return record, nil
	}

	now := time.Now().UTC()
	if err := s.deposits.MarkFailed(ctx, record.ID, now); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if err := s.adjustPendingDeposits(ctx, record.AmountUSD.Neg()); err != nil {
		s.log.Warn().Err(err).Str("deposit_id", record.ID.String()).
			Msg("Failed to release pending deposit reservation")
	}

	record.Status = domain.DepositStatusFailed
	record.CompletedAt = &now
	s.log.Info().
		Str("deposit_id", record.ID.String()).
		Str("rail", string(rail)).
		Msg("Deposit failed by rail")
	return record, nil
}

// ExpireStale fails pending deposits older than the configured TTL and
// releases their pending-deposit reservation. Returns how many were expired.
func (s *depositService) ExpireStale(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.depositTTL)
	stale, err := s.deposits.ListExpiredPending(ctx, cutoff)
	if err != nil {
		return 0, apperror.ErrDatabaseError(err)
	}

	expired := 0
	for _, d := range stale {
		if err := s.deposits.MarkFailed(ctx, d.ID, time.Now().UTC()); err != nil {
			s.log.Warn().Err(err).Str("deposit_id", d.ID.String()).Msg("Failed to expire deposit")
			continue
		}
		if err := s.adjustPendingDeposits(ctx, d.AmountUSD.Neg()); err != nil {
			s.log.Warn().Err(err).Str("deposit_id", d.ID.String()).
				Msg("Failed to release pending deposit reservation")
		}
		expired++
		s.log.Info().
			Str("deposit_id", d.ID.String()).
			Str("rail", string(d.Rail)).
			Msg("Pending deposit expired")
	}
	return expired, nil
}

// adjustPendingDeposits applies a pending-deposits delta to the treasury row
// under its version guard.
func (s *depositService) adjustPendingDeposits(ctx context.Context, delta decimal.Decimal) error {
	for attempt := 1; attempt <= casMaxAttempts; attempt++ {
		tx, err := s.transactor.Begin(ctx)
		if err != nil {
			return err
		}
		treasury, err := s.treasury.GetTx(ctx, tx)
		if err != nil {
			tx.Rollback(ctx)
			return err
		}
		ok, err := s.treasury.ApplyMutation(ctx, tx, ports.TreasuryMutation{
			PendingDepositsDelta: delta,
		}, treasury.Version)
		if err != nil {
			tx.Rollback(ctx)
			return err
		}
		if !ok {
			tx.Rollback(ctx)
			continue
		}
		return tx.Commit(ctx)
	}
	return apperror.ErrContention()
}

func (s *depositService) usdToToken(usd decimal.Decimal) int64 {
	return usd.Div(s.pegRate).Floor().IntPart()
}

// confirmationKey picks the reference the rail will echo back at confirmation
// time. Card deposits are keyed by the processor's payment intent id; every
// other rail echoes the reference we handed out.
func confirmationKey(instructions domain.DepositInstructions, reference string) string {
	if card, ok := instructions.(domain.CardInstructions); ok && card.PaymentIntentID != "" {
		return card.PaymentIntentID
	}
	return reference
}

func newDepositReference() string {
	return "JVC-" + uuid.NewString()[:18]
}
