package domain

import (
	"time"

	"github.com/google/uuid"
)

// PrincipalType identifies the kind of entity that owns a wallet.
type PrincipalType string

const (
	PrincipalTypeUser     PrincipalType = "USER"
	PrincipalTypeVenue    PrincipalType = "VENUE"
	PrincipalTypeTreasury PrincipalType = "TREASURY"
)

// TreasuryPrincipal is the reserved principal of the treasury float wallet.
// Minting "to treasury" credits this wallet so that total supply always equals
// the sum of wallet balances.
const TreasuryPrincipal = "treasury"

// Wallet holds a principal's JVC token balance. The balance is only ever
// changed through the ledger, guarded by the version column (optimistic
// concurrency).
type Wallet struct {
	ID            uuid.UUID     `json:"id"`
	Principal     string        `json:"principal"`
	PrincipalType PrincipalType `json:"principal_type"`
	TokenBalance  int64         `json:"token_balance"`
	RewardPoints  int64         `json:"reward_points"`
	ChainAddress  *string       `json:"chain_address,omitempty"`
	TrustlineSet  bool          `json:"trustline_set"`
	Frozen        bool          `json:"frozen"`
	FrozenReason  *string       `json:"frozen_reason,omitempty"`
	Version       int64         `json:"-"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// CanMirrorOnChain returns true if the wallet can participate in a
// blockchain-mirrored transfer.
func (w *Wallet) CanMirrorOnChain() bool {
	return w.ChainAddress != nil && *w.ChainAddress != "" && w.TrustlineSet
}

// NewWallet creates a wallet with a zero balance for a principal.
func NewWallet(principal string, pt PrincipalType) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:            uuid.New(),
		Principal:     principal,
		PrincipalType: pt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
