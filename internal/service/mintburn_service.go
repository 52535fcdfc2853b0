package service

import (
	"context"
	"fmt"
	"strings"

	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"
	"jvc-treasury/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func parseAdminID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

type mintBurnService struct {
	ledger ports.LedgerService
	audit  ports.AuditService
	log    zerolog.Logger
}

// NewMintBurnService creates the administrative supply authority. Every call
// requires a non-empty reason and lands in the admin audit log on top of the
// ledger entry it produces.
func NewMintBurnService(ledger ports.LedgerService, audit ports.AuditService, log zerolog.Logger) ports.MintBurnService {
	return &mintBurnService{
		ledger: ledger,
		audit:  audit,
		log:    log.With().Str("component", "mintburn").Logger(),
	}
}

func (s *mintBurnService) Mint(ctx context.Context, target string, amount int64, reason string, adminID string) (*domain.LedgerEntry, error) {
	if err := validateSupplyChange(amount, reason); err != nil {
		return nil, err
	}
	if target == "" {
		target = domain.TreasuryPrincipal
	}

	entry, err := s.ledger.MutateSupply(ctx, ports.SupplyMutation{
		Principal: target,
		Delta:     amount,
		OpType:    domain.OperationMint,
		Reason:    reason,
		Actor:     adminID,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("admin_id", adminID).
		Str("target", target).
		Int64("amount", amount).
		Int64("supply_after", entry.SupplyAfter).
		Msg("Supply minted")
	s.record(ctx, adminID, domain.AuditActionMint, entry, reason)
	return entry, nil
}

func (s *mintBurnService) Burn(ctx context.Context, target string, amount int64, reason string, adminID string, allowFrozen bool) (*domain.LedgerEntry, error) {
	if err := validateSupplyChange(amount, reason); err != nil {
		return nil, err
	}
	if target == "" {
		target = domain.TreasuryPrincipal
	}

	entry, err := s.ledger.MutateSupply(ctx, ports.SupplyMutation{
		Principal:   target,
		Delta:       -amount,
		OpType:      domain.OperationBurn,
		Reason:      reason,
		Actor:       adminID,
		AllowFrozen: allowFrozen,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("admin_id", adminID).
		Str("target", target).
		Int64("amount", amount).
		Int64("supply_after", entry.SupplyAfter).
		Msg("Supply burned")
	s.record(ctx, adminID, domain.AuditActionBurn, entry, reason)
	return entry, nil
}

func (s *mintBurnService) record(ctx context.Context, adminID string, action domain.AuditAction, entry *domain.LedgerEntry, reason string) {
	if s.audit == nil {
		return
	}
	details := fmt.Sprintf(`{"amount":%d,"principal":%q,"reason":%q}`, entry.Amount, entry.Principal, reason)
	log := &domain.AuditLog{
		Action:     action,
		ResourceID: entry.ID.String(),
		Details:    details,
	}
	if id, err := parseAdminID(adminID); err == nil {
		log.AdminID = &id
	}
	s.audit.Record(ctx, log)
}

func validateSupplyChange(amount int64, reason string) error {
	if amount <= 0 {
		return apperror.ErrInvalidOperation("Amount must be positive")
	}
	if strings.TrimSpace(reason) == "" {
		return apperror.ErrInvalidOperation("A reason is required for supply changes")
	}
	return nil
}
