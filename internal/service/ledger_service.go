package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"
	"jvc-treasury/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

func newEntryID() uuid.UUID {
	return uuid.New()
}

const (
	// casMaxAttempts bounds the optimistic-concurrency retry loop. A hot
	// wallet that loses three races in a row surfaces LED_005 to the caller.
	casMaxAttempts = 3

	// idempotencyTTL covers the window in which rails redeliver events.
	idempotencyTTL = 24 * time.Hour
)

type ledgerService struct {
	transactor ports.DBTransactor
	wallets    ports.WalletRepository
	treasury   ports.TreasuryRepository
	entries    ports.LedgerRepository
	cache      ports.IdempotencyCache
	log        zerolog.Logger
}

// NewLedgerService creates the ledger service, the single writer for wallet
// balances and total supply.
func NewLedgerService(
	transactor ports.DBTransactor,
	wallets ports.WalletRepository,
	treasury ports.TreasuryRepository,
	entries ports.LedgerRepository,
	cache ports.IdempotencyCache,
	log zerolog.Logger,
) ports.LedgerService {
	return &ledgerService{
		transactor: transactor,
		wallets:    wallets,
		treasury:   treasury,
		entries:    entries,
		cache:      cache,
		log:        log.With().Str("component", "ledger").Logger(),
	}
}

// Credit increases a wallet balance, creating the wallet on first use.
// Replays of the same external reference return the original entry.
func (s *ledgerService) Credit(ctx context.Context, p ports.CreditParams) (*domain.LedgerEntry, error) {
	if p.Amount <= 0 {
		return nil, apperror.ErrInvalidOperation("Credit amount must be positive")
	}
	if p.OpType.IsDebit() {
		return nil, apperror.ErrInvalidOperation("Operation type is not a credit")
	}

	if entry, ok := s.replay(ctx, p.ExternalReference); ok {
		return entry, nil
	}

	entry, err := s.withRetry(ctx, p.ExternalReference, func(tx pgx.Tx) (*domain.LedgerEntry, bool, error) {
		wallet, err := s.wallets.GetByPrincipalTx(ctx, tx, p.Principal)
		if err != nil {
			return nil, false, apperror.ErrDatabaseError(err)
		}
		if wallet == nil {
			wallet = domain.NewWallet(p.Principal, p.PrincipalType)
			if err := s.wallets.Create(ctx, tx, wallet); err != nil {
				return nil, false, apperror.ErrDatabaseError(err)
			}
		}

		newBalance := wallet.TokenBalance + p.Amount
		ok, err := s.wallets.UpdateBalance(ctx, tx, wallet.ID, newBalance, wallet.Version)
		if err != nil {
			return nil, false, apperror.ErrDatabaseError(err)
		}
		if !ok {
			return nil, true, nil
		}

		return s.applyTreasuryAndRecord(ctx, tx, wallet, p.Amount, newBalance, p.OpType, recordParams{
			externalReference: p.ExternalReference,
			treasuryExtra:     p.TreasuryExtra,
			triggeredBy:       p.TriggeredBy,
			reason:            p.Reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.finish(ctx, entry)
	return entry, nil
}

// Debit decreases a wallet balance. The wallet must exist, be unfrozen
// (unless AllowFrozen) and hold at least the debited amount.
func (s *ledgerService) Debit(ctx context.Context, p ports.DebitParams) (*domain.LedgerEntry, error) {
	if p.Amount <= 0 {
		return nil, apperror.ErrInvalidOperation("Debit amount must be positive")
	}
	if !p.OpType.IsDebit() {
		return nil, apperror.ErrInvalidOperation("Operation type is not a debit")
	}

	if entry, ok := s.replay(ctx, p.ExternalReference); ok {
		return entry, nil
	}

	entry, err := s.withRetry(ctx, p.ExternalReference, func(tx pgx.Tx) (*domain.LedgerEntry, bool, error) {
		wallet, err := s.wallets.GetByPrincipalTx(ctx, tx, p.Principal)
		if err != nil {
			return nil, false, apperror.ErrDatabaseError(err)
		}
		if wallet == nil {
			return nil, false, apperror.ErrNotFound("Wallet")
		}
		if wallet.Frozen && !p.AllowFrozen {
			return nil, false, apperror.ErrWalletFrozen()
		}
		if wallet.TokenBalance < p.Amount {
			// Conservation keeps every balance at or below total supply, so a
			// burn larger than the balance is also larger than the supply.
			if p.OpType == domain.OperationBurn {
				return nil, false, apperror.ErrBurnExceedsSupply()
			}
			return nil, false, apperror.ErrInsufficientBalance()
		}

		newBalance := wallet.TokenBalance - p.Amount
		ok, err := s.wallets.UpdateBalance(ctx, tx, wallet.ID, newBalance, wallet.Version)
		if err != nil {
			return nil, false, apperror.ErrDatabaseError(err)
		}
		if !ok {
			return nil, true, nil
		}

		return s.applyTreasuryAndRecord(ctx, tx, wallet, p.Amount, newBalance, p.OpType, recordParams{
			externalReference: p.ExternalReference,
			treasuryExtra:     p.TreasuryExtra,
			triggeredBy:       p.TriggeredBy,
			reason:            p.Reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.finish(ctx, entry)
	return entry, nil
}

// Transfer moves balance between two wallets in a single transaction. Either
// both legs commit or neither does.
func (s *ledgerService) Transfer(ctx context.Context, p ports.TransferParams) (*ports.TransferEntries, error) {
	if p.Amount <= 0 {
		return nil, apperror.ErrInvalidOperation("Transfer amount must be positive")
	}
	if p.SenderPrincipal == p.ReceiverPrincipal {
		return nil, apperror.ErrInvalidOperation("Sender and receiver must differ")
	}

	for attempt := 1; attempt <= casMaxAttempts; attempt++ {
		result, conflict, err := s.transferOnce(ctx, p)
		if err != nil {
			return nil, err
		}
		if !conflict {
			s.log.Info().
				Str("sender", p.SenderPrincipal).
				Str("receiver", p.ReceiverPrincipal).
				Int64("amount", p.Amount).
				Msg("Transfer committed")
			return result, nil
		}
		s.log.Debug().
			Str("sender", p.SenderPrincipal).
			Int("attempt", attempt).
			Msg("Transfer hit version conflict, retrying")
	}
	return nil, apperror.ErrContention()
}

func (s *ledgerService) transferOnce(ctx context.Context, p ports.TransferParams) (*ports.TransferEntries, bool, error) {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}
	defer tx.Rollback(ctx)

	sender, err := s.wallets.GetByPrincipalTx(ctx, tx, p.SenderPrincipal)
	if err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}
	if sender == nil {
		return nil, false, apperror.ErrNotFound("Sender wallet")
	}
	if sender.Frozen {
		return nil, false, apperror.ErrWalletFrozen()
	}
	if sender.TokenBalance < p.Amount {
		return nil, false, apperror.ErrInsufficientBalance()
	}

	receiver, err := s.wallets.GetByPrincipalTx(ctx, tx, p.ReceiverPrincipal)
	if err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}
	if receiver == nil {
		receiver = domain.NewWallet(p.ReceiverPrincipal, p.ReceiverType)
		if err := s.wallets.Create(ctx, tx, receiver); err != nil {
			return nil, false, apperror.ErrDatabaseError(err)
		}
	}
	if receiver.Frozen {
		return nil, false, apperror.ErrWalletFrozen()
	}

	ok, err := s.wallets.UpdateBalance(ctx, tx, sender.ID, sender.TokenBalance-p.Amount, sender.Version)
	if err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}
	if !ok {
		return nil, true, nil
	}
	ok, err = s.wallets.UpdateBalance(ctx, tx, receiver.ID, receiver.TokenBalance+p.Amount, receiver.Version)
	if err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}
	if !ok {
		return nil, true, nil
	}

	// Transfers are supply-neutral; the treasury row is only read for the
	// supply snapshot on the entries.
	treasury, err := s.treasury.GetTx(ctx, tx)
	if err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}

	now := time.Now().UTC()
	out := &domain.LedgerEntry{
		ID:            newEntryID(),
		OperationType: domain.OperationTransferOut,
		Amount:        p.Amount,
		WalletID:      sender.ID,
		Principal:     sender.Principal,
		BalanceBefore: sender.TokenBalance,
		BalanceAfter:  sender.TokenBalance - p.Amount,
		SupplyBefore:  treasury.TotalSupply,
		SupplyAfter:   treasury.TotalSupply,
		TriggeredBy:   p.TriggeredBy,
		CreatedAt:     now,
	}
	in := &domain.LedgerEntry{
		ID:            newEntryID(),
		OperationType: domain.OperationTransferIn,
		Amount:        p.Amount,
		WalletID:      receiver.ID,
		Principal:     receiver.Principal,
		BalanceBefore: receiver.TokenBalance,
		BalanceAfter:  receiver.TokenBalance + p.Amount,
		SupplyBefore:  treasury.TotalSupply,
		SupplyAfter:   treasury.TotalSupply,
		TriggeredBy:   p.TriggeredBy,
		CreatedAt:     now,
	}
	if err := s.entries.Create(ctx, tx, out); err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}
	if err := s.entries.Create(ctx, tx, in); err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}
	return &ports.TransferEntries{Sender: out, Receiver: in}, false, nil
}

// MutateSupply applies a signed supply change as a credit (mint) or debit
// (burn) against the target wallet.
func (s *ledgerService) MutateSupply(ctx context.Context, m ports.SupplyMutation) (*domain.LedgerEntry, error) {
	if m.Delta == 0 {
		return nil, apperror.ErrInvalidOperation("Supply delta must be non-zero")
	}
	reason := m.Reason
	pt := domain.PrincipalTypeUser
	if m.Principal == domain.TreasuryPrincipal {
		pt = domain.PrincipalTypeTreasury
	}

	if m.Delta > 0 {
		return s.Credit(ctx, ports.CreditParams{
			Principal:     m.Principal,
			PrincipalType: pt,
			Amount:        m.Delta,
			OpType:        m.OpType,
			TriggeredBy:   m.Actor,
			Reason:        &reason,
		})
	}
	return s.Debit(ctx, ports.DebitParams{
		Principal:   m.Principal,
		Amount:      -m.Delta,
		OpType:      m.OpType,
		TriggeredBy: m.Actor,
		Reason:      &reason,
		AllowFrozen: m.AllowFrozen,
	})
}

// --- internals ---

type recordParams struct {
	externalReference *string
	treasuryExtra     ports.TreasuryMutation
	triggeredBy       string
	reason            *string
}

// applyTreasuryAndRecord updates the treasury row (supply plus any extras
// handed in by the caller), writes the ledger entry and commits. The supply
// movement is always derived from the operation type; callers never set
// TreasuryMutation.SupplyDelta themselves.
func (s *ledgerService) applyTreasuryAndRecord(
	ctx context.Context,
	tx pgx.Tx,
	wallet *domain.Wallet,
	amount int64,
	newBalance int64,
	opType domain.OperationType,
	rp recordParams,
) (*domain.LedgerEntry, bool, error) {
	treasury, err := s.treasury.GetTx(ctx, tx)
	if err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}

	mut := rp.treasuryExtra
	mut.SupplyDelta = opType.SupplyDelta(amount)

	supplyAfter := treasury.TotalSupply + mut.SupplyDelta
	if supplyAfter < 0 {
		return nil, false, apperror.ErrBurnExceedsSupply()
	}

	if !mut.IsZero() {
		ok, err := s.treasury.ApplyMutation(ctx, tx, mut, treasury.Version)
		if err != nil {
			return nil, false, apperror.ErrDatabaseError(err)
		}
		if !ok {
			return nil, true, nil
		}
	}

	entry := &domain.LedgerEntry{
		ID:                newEntryID(),
		OperationType:     opType,
		Amount:            amount,
		WalletID:          wallet.ID,
		Principal:         wallet.Principal,
		BalanceBefore:     wallet.TokenBalance,
		BalanceAfter:      newBalance,
		SupplyBefore:      treasury.TotalSupply,
		SupplyAfter:       supplyAfter,
		TriggeredBy:       rp.triggeredBy,
		ExternalReference: rp.externalReference,
		Reason:            rp.reason,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.entries.Create(ctx, tx, entry); err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}
	return entry, false, nil
}

// withRetry runs one attempt of fn inside a fresh transaction, retrying on
// version conflicts. A unique violation on external_reference means a
// concurrent request won the race; the original entry is returned instead.
func (s *ledgerService) withRetry(
	ctx context.Context,
	extRef *string,
	fn func(tx pgx.Tx) (*domain.LedgerEntry, bool, error),
) (*domain.LedgerEntry, error) {
	for attempt := 1; attempt <= casMaxAttempts; attempt++ {
		entry, conflict, err := s.attempt(ctx, fn)
		if err != nil {
			if extRef != nil && isUniqueViolation(err) {
				if existing, ok := s.replay(ctx, extRef); ok {
					return existing, nil
				}
			}
			return nil, err
		}
		if !conflict {
			return entry, nil
		}
		s.log.Debug().Int("attempt", attempt).Msg("Ledger write hit version conflict, retrying")
	}
	return nil, apperror.ErrContention()
}

func (s *ledgerService) attempt(
	ctx context.Context,
	fn func(tx pgx.Tx) (*domain.LedgerEntry, bool, error),
) (*domain.LedgerEntry, bool, error) {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.ErrDatabaseError(err)
	}
	defer tx.Rollback(ctx)
	return fn(tx)
}

// replay checks both idempotency layers for a previously applied external
// reference: the Redis fast path first, then the durable ledger index.
func (s *ledgerService) replay(ctx context.Context, extRef *string) (*domain.LedgerEntry, bool) {
	if extRef == nil {
		return nil, false
	}

	if cached, err := s.cache.Get(ctx, *extRef); err == nil && cached != nil {
		var entry domain.LedgerEntry
		if err := json.Unmarshal(cached, &entry); err == nil {
			s.log.Info().Str("external_reference", *extRef).Msg("Replayed external event from cache")
			return &entry, true
		}
	}

	entry, err := s.entries.GetByExternalReference(ctx, *extRef)
	if err != nil || entry == nil {
		return nil, false
	}
	s.log.Info().Str("external_reference", *extRef).Msg("Replayed external event from ledger")
	return entry, true
}

// finish caches the committed entry for replay and logs it. Cache failures
// are non-fatal; the ledger index remains authoritative.
func (s *ledgerService) finish(ctx context.Context, entry *domain.LedgerEntry) {
	if entry.ExternalReference != nil {
		if payload, err := json.Marshal(entry); err == nil {
			if err := s.cache.Set(ctx, *entry.ExternalReference, payload, idempotencyTTL); err != nil {
				s.log.Warn().Err(err).Msg("Failed to cache ledger entry for idempotency")
			}
		}
	}
	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("operation", string(entry.OperationType)).
		Str("principal", entry.Principal).
		Int64("amount", entry.Amount).
		Int64("supply_after", entry.SupplyAfter).
		Msg("Ledger entry committed")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
