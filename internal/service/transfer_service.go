package service

import (
	"context"

	"jvc-treasury/internal/core/ports"
	"jvc-treasury/pkg/apperror"

	"github.com/rs/zerolog"
)

type transferService struct {
	ledger  ports.LedgerService
	wallets ports.WalletRepository
	chain   ports.ChainClient
	log     zerolog.Logger
}

// NewTransferService creates the wallet-to-wallet transfer flow. The internal
// ledger is authoritative; the optional on-chain mirror is attempted only
// after the ledger transaction commits and is never reversed on failure.
func NewTransferService(
	ledger ports.LedgerService,
	wallets ports.WalletRepository,
	chain ports.ChainClient,
	log zerolog.Logger,
) ports.TransferService {
	return &transferService{
		ledger:  ledger,
		wallets: wallets,
		chain:   chain,
		log:     log.With().Str("component", "transfer").Logger(),
	}
}

func (s *transferService) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	entries, err := s.ledger.Transfer(ctx, ports.TransferParams{
		SenderPrincipal:   req.SenderPrincipal,
		ReceiverPrincipal: req.ReceiverPrincipal,
		ReceiverType:      req.ReceiverType,
		Amount:            req.Amount,
		TriggeredBy:       req.TriggeredBy,
	})
	if err != nil {
		return nil, err
	}

	result := &ports.TransferResult{
		SenderEntry:   entries.Sender,
		ReceiverEntry: entries.Receiver,
	}
	result.ChainTxID = s.mirrorOnChain(ctx, req.SenderPrincipal, req.ReceiverPrincipal, req.Amount)
	return result, nil
}

// mirrorOnChain submits the movement to the blockchain rail when both parties
// have an address with a trustline. The ledger has already committed, so any
// failure here is logged and left for reconciliation to surface.
func (s *transferService) mirrorOnChain(ctx context.Context, sender, receiver string, amount int64) *string {
	if s.chain == nil {
		return nil
	}

	senderWallet, err := s.wallets.GetByPrincipal(ctx, sender)
	if err != nil || senderWallet == nil || !senderWallet.CanMirrorOnChain() {
		return nil
	}
	receiverWallet, err := s.wallets.GetByPrincipal(ctx, receiver)
	if err != nil || receiverWallet == nil || !receiverWallet.CanMirrorOnChain() {
		return nil
	}

	txID, err := s.chain.Transfer(ctx, *senderWallet.ChainAddress, *receiverWallet.ChainAddress, amount)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("sender", sender).
			Str("receiver", receiver).
			Int64("amount", amount).
			Msg("On-chain mirror failed, ledger transfer stands")
		return nil
	}

	s.log.Info().
		Str("sender", sender).
		Str("receiver", receiver).
		Str("chain_tx_id", txID).
		Msg("Transfer mirrored on chain")
	return &txID
}

// EnableChainMirroring provisions an on-chain address and trustline for a
// wallet so its future transfers can be mirrored.
func (s *transferService) EnableChainMirroring(ctx context.Context, principal string, trustlineLimit int64) (string, error) {
	wallet, err := s.wallets.GetByPrincipal(ctx, principal)
	if err != nil {
		return "", apperror.ErrDatabaseError(err)
	}
	if wallet == nil {
		return "", apperror.ErrNotFound("Wallet")
	}
	if wallet.ChainAddress != nil && wallet.TrustlineSet {
		return *wallet.ChainAddress, nil
	}

	address := ""
	if wallet.ChainAddress != nil {
		address = *wallet.ChainAddress
	}
	if address == "" {
		address, err = s.chain.GenerateWallet(ctx)
		if err != nil {
			return "", err
		}
	}
	if err := s.chain.SetupTrustline(ctx, address, trustlineLimit); err != nil {
		return "", err
	}
	if err := s.wallets.SetChainAddress(ctx, wallet.ID, address, true); err != nil {
		return "", err
	}

	s.log.Info().
		Str("principal", principal).
		Str("address", address).
		Msg("Chain mirroring enabled")
	return address, nil
}
