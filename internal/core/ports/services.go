package ports

import (
	"context"
	"time"

	"jvc-treasury/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Ledger Store ---

// CreditParams describes a balance credit. A non-nil ExternalReference makes
// the operation idempotent: replaying the same reference returns the original
// entry. TreasuryExtra is applied to the treasury row in the same commit
// (e.g. the reserve increase of a confirmed deposit).
type CreditParams struct {
	Principal         string
	PrincipalType     domain.PrincipalType // used when the wallet is auto-created
	Amount            int64
	OpType            domain.OperationType
	ExternalReference *string
	TreasuryExtra     TreasuryMutation
	TriggeredBy       string
	Reason            *string
}

// DebitParams describes a balance debit. AllowFrozen is honoured only for
// administrative burns.
type DebitParams struct {
	Principal         string
	Amount            int64
	OpType            domain.OperationType
	ExternalReference *string
	TreasuryExtra     TreasuryMutation
	TriggeredBy       string
	Reason            *string
	AllowFrozen       bool
}

// TransferParams describes a two-legged transfer executed under one
// transactional boundary so partial application is impossible.
type TransferParams struct {
	SenderPrincipal   string
	ReceiverPrincipal string
	ReceiverType      domain.PrincipalType
	Amount            int64
	TriggeredBy       string
}

// TransferEntries holds both legs of a committed transfer.
type TransferEntries struct {
	Sender   *domain.LedgerEntry
	Receiver *domain.LedgerEntry
}

// SupplyMutation describes an administrative supply change. Delta is signed:
// positive mints, negative burns.
type SupplyMutation struct {
	Principal   string
	Delta       int64
	OpType      domain.OperationType
	Reason      string
	Actor       string
	AllowFrozen bool
}

// LedgerService is the durable source of truth for balances, supply and the
// audit trail. All operations are atomic with respect to the targeted wallet
// and the treasury, serialized by optimistic concurrency with bounded retry.
type LedgerService interface {
	Credit(ctx context.Context, p CreditParams) (*domain.LedgerEntry, error)
	Debit(ctx context.Context, p DebitParams) (*domain.LedgerEntry, error)
	Transfer(ctx context.Context, p TransferParams) (*TransferEntries, error)
	MutateSupply(ctx context.Context, m SupplyMutation) (*domain.LedgerEntry, error)
}

// --- Mint/Burn Authority ---

// MintBurnService changes total supply under administrative authority.
type MintBurnService interface {
	Mint(ctx context.Context, target string, amount int64, reason string, adminID string) (*domain.LedgerEntry, error)
	Burn(ctx context.Context, target string, amount int64, reason string, adminID string, allowFrozen bool) (*domain.LedgerEntry, error)
}

// --- Balance Verification ---

// VerificationService is the synchronous pre-check used before any debit.
// Pure read; the authoritative check happens inside the ledger debit.
type VerificationService interface {
	Verify(ctx context.Context, principal string, required int64) (bool, error)
}

// --- Wallet Transfer ---

// TransferRequest is a peer-to-peer token movement.
type TransferRequest struct {
	SenderPrincipal   string
	ReceiverPrincipal string
	ReceiverType      domain.PrincipalType
	Amount            int64
	TriggeredBy       string
}

// TransferResult carries both ledger entries and, when the transfer was
// mirrored on the blockchain rail, the on-chain transaction id.
type TransferResult struct {
	SenderEntry   *domain.LedgerEntry
	ReceiverEntry *domain.LedgerEntry
	ChainTxID     *string
}

// TransferService moves balance between wallets, optionally mirroring the
// movement on the blockchain rail after the internal ledger commits.
type TransferService interface {
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	EnableChainMirroring(ctx context.Context, principal string, trustlineLimit int64) (string, error)
}

// --- Deposits ---

// DepositRequest initiates funding through a rail.
type DepositRequest struct {
	Principal     string
	PrincipalType domain.PrincipalType
	Rail          domain.Rail
	AmountUSD     decimal.Decimal
}

// DepositConfirmation is the normalized "funds received" fact produced by a
// rail adapter. EventID is the rail's unique idempotency key.
type DepositConfirmation struct {
	Rail      domain.Rail
	EventID   string
	AmountUSD decimal.Decimal
}

// DepositService owns the deposit lifecycle across all rails.
type DepositService interface {
	Initiate(ctx context.Context, req DepositRequest) (*domain.DepositRecord, domain.DepositInstructions, error)
	Confirm(ctx context.Context, c DepositConfirmation) (*domain.DepositRecord, error)
	Fail(ctx context.Context, rail domain.Rail, eventID string) (*domain.DepositRecord, error)
	ExpireStale(ctx context.Context) (int, error)
}

// --- Withdrawals ---

// WithdrawalRequest moves tokens back out through a rail.
type WithdrawalRequest struct {
	Principal   string
	Rail        domain.Rail
	AmountToken int64
	Destination string
}

// WithdrawalService owns the withdrawal lifecycle.
type WithdrawalService interface {
	Request(ctx context.Context, req WithdrawalRequest) (*domain.WithdrawalRecord, error)
	Settle(ctx context.Context, rail domain.Rail, eventID string, success bool) (*domain.WithdrawalRecord, error)
}

// --- Reconciliation ---

// ReconciliationService compares ledger aggregates against externally
// reported rail balances. Overlapping runs are skipped.
type ReconciliationService interface {
	Reconcile(ctx context.Context) (*domain.ReconciliationReport, error)
}

// --- Admin auth & ambient services ---

// AuthService authenticates admin operators.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// TokenService handles JWT token operations for admin sessions.
type TokenService interface {
	Generate(adminID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AdminID  uuid.UUID
	Username string
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// SignatureService handles HMAC-SHA256 signing and verification of rail
// webhook payloads.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// AuditService records administrative actions.
type AuditService interface {
	Record(ctx context.Context, log *domain.AuditLog)
}

// IdempotencyCache is the Redis-layer idempotency fast path keyed by external
// reference. A hit returns the cached ledger entry JSON.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RunLock prevents overlapping reconciliation runs.
type RunLock interface {
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}
