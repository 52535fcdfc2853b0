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

type withdrawalService struct {
	transactor  ports.DBTransactor
	withdrawals ports.WithdrawalRepository
	treasury    ports.TreasuryRepository
	ledger      ports.LedgerService
	pegRate     decimal.Decimal
	feeBps      int64
	log         zerolog.Logger
}

// NewWithdrawalService creates the withdrawal lifecycle owner. Tokens are
// debited and retired up front; a failed settlement refunds them through a
// fresh credit rather than deleting history.
func NewWithdrawalService(
	transactor ports.DBTransactor,
	withdrawals ports.WithdrawalRepository,
	treasury ports.TreasuryRepository,
	ledger ports.LedgerService,
	pegRate decimal.Decimal,
	feeBps int64,
	log zerolog.Logger,
) ports.WithdrawalService {
	return &withdrawalService{
		transactor:  transactor,
		withdrawals: withdrawals,
		treasury:    treasury,
		ledger:      ledger,
		pegRate:     pegRate,
		feeBps:      feeBps,
		log:         log.With().Str("component", "withdrawal").Logger(),
	}
}

// Request debits and retires the requested tokens, holds the net USD as a
// pending withdrawal and records the payout for the rail to settle.
func (s *withdrawalService) Request(ctx context.Context, req ports.WithdrawalRequest) (*domain.WithdrawalRecord, error) {
	if !req.Rail.Valid() {
		return nil, apperror.ErrUnknownRail(string(req.Rail))
	}
	if req.AmountToken <= 0 {
		return nil, apperror.Validation("Withdrawal amount must be positive")
	}
	if req.Destination == "" {
		return nil, apperror.Validation("Destination is required")
	}

	fee := req.AmountToken * s.feeBps / 10000
	net := req.AmountToken - fee
	if net <= 0 {
		return nil, apperror.Validation("Withdrawal amount does not cover the fee")
	}
	netUSD := s.tokenToUSD(net)

	reference := "JVW-" + uuid.NewString()[:18]
	reason := "withdrawal " + reference
	_, err := s.ledger.Debit(ctx, ports.DebitParams{
		Principal:   req.Principal,
		Amount:      net,
		OpType:      domain.OperationWithdrawal,
		TriggeredBy: req.Principal,
		Reason:      &reason,
		TreasuryExtra: ports.TreasuryMutation{
			PendingWithdrawalsDelta: netUSD,
		},
	})
	if err != nil {
		return nil, err
	}

	// The fee is its own ledger entry so the collected amount has an audit
	// trail separate from the payout principal.
	if fee > 0 {
		feeReason := "withdrawal fee " + reference
		_, err = s.ledger.Debit(ctx, ports.DebitParams{
			Principal:   req.Principal,
			Amount:      fee,
			OpType:      domain.OperationFee,
			TriggeredBy: domain.SystemActor,
			Reason:      &feeReason,
			TreasuryExtra: ports.TreasuryMutation{
				CollectedFeesDelta: fee,
			},
		})
		if err != nil {
			s.compensateNet(ctx, req.Principal, net, netUSD, reference)
			return nil, err
		}
	}

	record := &domain.WithdrawalRecord{
		ID:                uuid.New(),
		Principal:         req.Principal,
		Rail:              req.Rail,
		Status:            domain.DepositStatusPending,
		AmountUSD:         netUSD,
		AmountToken:       req.AmountToken,
		FeeToken:          fee,
		Destination:       req.Destination,
		ExternalReference: reference,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.withdrawals.Create(ctx, record); err != nil {
		// Tokens are already retired; the record is what the rail settles
		// against, so surface the failure loudly.
		s.log.Error().Err(err).Str("principal", req.Principal).
			Msg("Tokens debited but withdrawal record not created")
		return nil, apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("withdrawal_id", record.ID.String()).
		Str("principal", req.Principal).
		Str("rail", string(req.Rail)).
		Int64("amount_token", req.AmountToken).
		Int64("fee_token", fee).
		Msg("Withdrawal requested")
	return record, nil
}

// Settle finalizes a withdrawal after the rail reports the payout outcome.
// Success releases the reserve; failure refunds the tokens.
func (s *withdrawalService) Settle(ctx context.Context, rail domain.Rail, eventID string, success bool) (*domain.WithdrawalRecord, error) {
	record, err := s.withdrawals.GetByExternalReference(ctx, rail, eventID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if record == nil {
		return nil, apperror.ErrNotFound("Withdrawal")
	}
	if record.Status != domain.DepositStatusPending {
		// Terminal records absorb redeliveries
		return record, nil
	}

	now := time.Now().UTC()
	if success {
		r := rail
		if err := s.adjustTreasury(ctx, ports.TreasuryMutation{
			ReserveDeltaUSD:         record.AmountUSD.Neg(),
			Rail:                    &r,
			PendingWithdrawalsDelta: record.AmountUSD.Neg(),
		}); err != nil {
			return nil, err
		}
		if err := s.withdrawals.MarkCompleted(ctx, record.ID, now); err != nil {
			return nil, apperror.ErrDatabaseError(err)
		}
		record.Status = domain.DepositStatusCompleted
		record.CompletedAt = &now
		s.log.Info().Str("withdrawal_id", record.ID.String()).Msg("Withdrawal settled")
		return record, nil
	}

	// Refund both debits, fee included. The credit carries its own
	// external reference so a redelivered failure cannot refund twice.
	refundRef := domain.BuildExternalReference(rail, eventID) + ":refund"
	refundReason := "withdrawal failed, refunded"
	_, err = s.ledger.Credit(ctx, ports.CreditParams{
		Principal:         record.Principal,
		PrincipalType:     domain.PrincipalTypeUser,
		Amount:            record.AmountToken,
		OpType:            domain.OperationDeposit,
		ExternalReference: &refundRef,
		Reason:            &refundReason,
		TriggeredBy:       domain.SystemActor,
		TreasuryExtra: ports.TreasuryMutation{
			PendingWithdrawalsDelta: record.AmountUSD.Neg(),
			CollectedFeesDelta:      -record.FeeToken,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := s.withdrawals.MarkFailed(ctx, record.ID, now); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	record.Status = domain.DepositStatusFailed
	record.CompletedAt = &now
	s.log.Warn().Str("withdrawal_id", record.ID.String()).Msg("Withdrawal failed, tokens refunded")
	return record, nil
}

// compensateNet re-credits the net debit when the fee debit cannot follow it.
// The two debits are separate transactions, so this is the undo path for a
// half-applied request.
func (s *withdrawalService) compensateNet(ctx context.Context, principal string, net int64, netUSD decimal.Decimal, reference string) {
	reason := "withdrawal " + reference + " reversed, fee debit failed"
	_, err := s.ledger.Credit(ctx, ports.CreditParams{
		Principal:     principal,
		PrincipalType: domain.PrincipalTypeUser,
		Amount:        net,
		OpType:        domain.OperationDeposit,
		TriggeredBy:   domain.SystemActor,
		Reason:        &reason,
		TreasuryExtra: ports.TreasuryMutation{
			PendingWithdrawalsDelta: netUSD.Neg(),
		},
	})
	if err != nil {
		s.log.Error().Err(err).Str("principal", principal).Str("reference", reference).
			Msg("Failed to reverse net debit after fee debit failure")
	}
}

func (s *withdrawalService) adjustTreasury(ctx context.Context, mut ports.TreasuryMutation) error {
	for attempt := 1; attempt <= casMaxAttempts; attempt++ {
		tx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.ErrDatabaseError(err)
		}
		treasury, err := s.treasury.GetTx(ctx, tx)
		if err != nil {
			tx.Rollback(ctx)
			return apperror.ErrDatabaseError(err)
		}
		ok, err := s.treasury.ApplyMutation(ctx, tx, mut, treasury.Version)
		if err != nil {
			tx.Rollback(ctx)
			return apperror.ErrDatabaseError(err)
		}
		if !ok {
			tx.Rollback(ctx)
			continue
		}
		if err := tx.Commit(ctx); err != nil {
			return apperror.ErrDatabaseError(err)
		}
		return nil
	}
	return apperror.ErrContention()
}

func (s *withdrawalService) tokenToUSD(tokens int64) decimal.Decimal {
	return decimal.NewFromInt(tokens).Mul(s.pegRate)
}
