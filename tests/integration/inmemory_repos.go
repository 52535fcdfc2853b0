package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// In-memory implementations of the persistence ports. They honour the same
// contracts the PostgreSQL repos do (version-checked balance updates, the
// unique index on external references) so the services behave the same way
// they would against a real database.

type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *noopTx) Conn() *pgx.Conn                                               { return nil }

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor { return &inMemoryTransactor{} }

func (tr *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) { return &noopTx{}, nil }

// --- wallets ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[string]*domain.Wallet // by principal
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[string]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *wallet
	r.wallets[wallet.Principal] = &cp
	return nil
}

func (r *inMemoryWalletRepo) GetByPrincipal(ctx context.Context, principal string) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[principal]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByPrincipalTx(ctx context.Context, tx pgx.Tx, principal string) (*domain.Wallet, error) {
	return r.GetByPrincipal(ctx, principal)
}

func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, newBalance int64, expectedVersion int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.ID == walletID {
			if w.Version != expectedVersion {
				return false, nil
			}
			w.TokenBalance = newBalance
			w.Version++
			w.UpdatedAt = time.Now().UTC()
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryWalletRepo) SetFrozen(ctx context.Context, walletID uuid.UUID, frozen bool, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.ID == walletID {
			w.Frozen = frozen
			w.FrozenReason = reason
			return nil
		}
	}
	return nil
}

func (r *inMemoryWalletRepo) SetChainAddress(ctx context.Context, walletID uuid.UUID, address string, trustline bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.ID == walletID {
			w.ChainAddress = &address
			w.TrustlineSet = trustline
			return nil
		}
	}
	return nil
}

func (r *inMemoryWalletRepo) SumBalances(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, w := range r.wallets {
		sum += w.TokenBalance
	}
	return sum, nil
}

// --- treasury ---

type inMemoryTreasuryRepo struct {
	mu       sync.RWMutex
	treasury domain.Treasury
}

func newInMemoryTreasuryRepo() *inMemoryTreasuryRepo {
	return &inMemoryTreasuryRepo{
		treasury: domain.Treasury{
			ID:                   domain.TreasuryID,
			TotalReserveUSD:      decimal.Zero,
			ReconciliationStatus: domain.ReconciliationStatusHealthy,
			UpdatedAt:            time.Now().UTC(),
		},
	}
}

func (r *inMemoryTreasuryRepo) Get(ctx context.Context) (*domain.Treasury, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := r.treasury
	return &cp, nil
}

func (r *inMemoryTreasuryRepo) GetTx(ctx context.Context, tx pgx.Tx) (*domain.Treasury, error) {
	return r.Get(ctx)
}

func (r *inMemoryTreasuryRepo) ApplyMutation(ctx context.Context, tx pgx.Tx, mut ports.TreasuryMutation, expectedVersion int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.treasury.Version != expectedVersion {
		return false, nil
	}
	t := &r.treasury
	t.TotalSupply += mut.SupplyDelta
	t.TotalReserveUSD = t.TotalReserveUSD.Add(mut.ReserveDeltaUSD)
	if mut.Rail != nil {
		switch *mut.Rail {
		case domain.RailCard:
			t.Reserves.Card = t.Reserves.Card.Add(mut.ReserveDeltaUSD)
		case domain.RailBank:
			t.Reserves.Bank = t.Reserves.Bank.Add(mut.ReserveDeltaUSD)
		case domain.RailInstant:
			t.Reserves.PayID = t.Reserves.PayID.Add(mut.ReserveDeltaUSD)
		case domain.RailChain:
			t.Reserves.Chain = t.Reserves.Chain.Add(mut.ReserveDeltaUSD)
		}
	}
	t.PendingDepositsUSD = t.PendingDepositsUSD.Add(mut.PendingDepositsDelta)
	t.PendingWithdrawalsUSD = t.PendingWithdrawalsUSD.Add(mut.PendingWithdrawalsDelta)
	t.CollectedFees += mut.CollectedFeesDelta
	t.Version++
	t.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *inMemoryTreasuryRepo) SetReconciliation(ctx context.Context, status domain.ReconciliationStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.treasury.ReconciliationStatus = status
	r.treasury.LastReconciledAt = &at
	return nil
}

// --- ledger ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
	byRef   map[string]*domain.LedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{byRef: make(map[string]*domain.LedgerEntry)}
}

func (r *inMemoryLedgerRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ExternalReference != nil {
		if _, exists := r.byRef[*entry.ExternalReference]; exists {
			// Same shape the partial unique index produces
			return &pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_external_reference_key"}
		}
	}
	cp := *entry
	r.entries = append(r.entries, cp)
	if entry.ExternalReference != nil {
		r.byRef[*entry.ExternalReference] = &cp
	}
	return nil
}

func (r *inMemoryLedgerRepo) GetByExternalReference(ctx context.Context, ref string) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byRef[ref]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *inMemoryLedgerRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.LedgerEntry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].WalletID == walletID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *inMemoryLedgerRepo) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// --- deposits ---

type inMemoryDepositRepo struct {
	mu       sync.RWMutex
	deposits map[uuid.UUID]*domain.DepositRecord
}

func newInMemoryDepositRepo() *inMemoryDepositRepo {
	return &inMemoryDepositRepo{deposits: make(map[uuid.UUID]*domain.DepositRecord)}
}

func (r *inMemoryDepositRepo) Create(ctx context.Context, d *domain.DepositRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.deposits[d.ID] = &cp
	return nil
}

func (r *inMemoryDepositRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.DepositRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.deposits[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *inMemoryDepositRepo) GetByExternalReference(ctx context.Context, rail domain.Rail, ref string) (*domain.DepositRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.deposits {
		if d.Rail == rail && d.ExternalReference == ref {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryDepositRepo) MarkCompleted(ctx context.Context, id uuid.UUID, amountToken int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.deposits[id]; ok && d.Status == domain.DepositStatusPending {
		d.Status = domain.DepositStatusCompleted
		d.AmountToken = amountToken
		d.CompletedAt = &at
	}
	return nil
}

func (r *inMemoryDepositRepo) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.deposits[id]; ok && d.Status == domain.DepositStatusPending {
		d.Status = domain.DepositStatusFailed
		d.CompletedAt = &at
	}
	return nil
}

func (r *inMemoryDepositRepo) UpdateConfirmations(ctx context.Context, id uuid.UUID, confirmations int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.deposits[id]; ok {
		d.Confirmations = confirmations
	}
	return nil
}

func (r *inMemoryDepositRepo) ListPendingByRail(ctx context.Context, rail domain.Rail) ([]domain.DepositRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.DepositRecord
	for _, d := range r.deposits {
		if d.Rail == rail && d.Status == domain.DepositStatusPending {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *inMemoryDepositRepo) ListExpiredPending(ctx context.Context, olderThan time.Time) ([]domain.DepositRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.DepositRecord
	for _, d := range r.deposits {
		if d.Status == domain.DepositStatusPending && d.CreatedAt.Before(olderThan) {
			out = append(out, *d)
		}
	}
	return out, nil
}

// --- withdrawals ---

type inMemoryWithdrawalRepo struct {
	mu          sync.RWMutex
	withdrawals map[uuid.UUID]*domain.WithdrawalRecord
}

func newInMemoryWithdrawalRepo() *inMemoryWithdrawalRepo {
	return &inMemoryWithdrawalRepo{withdrawals: make(map[uuid.UUID]*domain.WithdrawalRecord)}
}

func (r *inMemoryWithdrawalRepo) Create(ctx context.Context, w *domain.WithdrawalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.withdrawals[w.ID] = &cp
	return nil
}

func (r *inMemoryWithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWithdrawalRepo) GetByExternalReference(ctx context.Context, rail domain.Rail, ref string) (*domain.WithdrawalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.withdrawals {
		if w.Rail == rail && w.ExternalReference == ref {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWithdrawalRepo) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.withdrawals[id]; ok && w.Status == domain.DepositStatusPending {
		w.Status = domain.DepositStatusCompleted
		w.CompletedAt = &at
	}
	return nil
}

func (r *inMemoryWithdrawalRepo) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.withdrawals[id]; ok && w.Status == domain.DepositStatusPending {
		w.Status = domain.DepositStatusFailed
		w.CompletedAt = &at
	}
	return nil
}

// --- admins & audit ---

type inMemoryAdminRepo struct {
	mu     sync.RWMutex
	admins map[string]*domain.Admin // by username
}

func newInMemoryAdminRepo() *inMemoryAdminRepo {
	return &inMemoryAdminRepo{admins: make(map[string]*domain.Admin)}
}

func (r *inMemoryAdminRepo) Create(ctx context.Context, admin *domain.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *admin
	r.admins[admin.Username] = &cp
	return nil
}

func (r *inMemoryAdminRepo) GetByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.admins[username]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAdminRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.admins {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

type inMemoryAuditRepo struct {
	mu   sync.Mutex
	logs []domain.AuditLog
}

func newInMemoryAuditRepo() *inMemoryAuditRepo { return &inMemoryAuditRepo{} }

func (r *inMemoryAuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *inMemoryAuditRepo) actions() []domain.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}

// --- rails ---

// stubRail serves as both a deposit rail adapter and a balance reporter. The
// reported balance is settable so reconciliation scenarios can line it up
// with (or drift it from) the ledger's reserve snapshot.
type stubRail struct {
	mu      sync.Mutex
	rail    domain.Rail
	balance decimal.Decimal
	intents int
}

func newStubRail(rail domain.Rail) *stubRail {
	return &stubRail{rail: rail, balance: decimal.Zero}
}

func (r *stubRail) Rail() domain.Rail { return r.rail }

func (r *stubRail) Initiate(ctx context.Context, principal string, amountUSD decimal.Decimal, reference string) (domain.DepositInstructions, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.rail {
	case domain.RailCard:
		r.intents++
		id := fmt.Sprintf("pi_test_%d", r.intents)
		return domain.CardInstructions{ClientSecret: id + "_secret", PaymentIntentID: id}, nil
	case domain.RailBank:
		return domain.BankInstructions{
			AccountName:   "JVC Treasury",
			AccountNumber: "000111222",
			BranchCode:    "062-000",
			Reference:     reference,
		}, nil
	case domain.RailInstant:
		return domain.PayIDInstructions{PayID: "pay@jvc.test", Reference: reference}, nil
	}
	return domain.CryptoInstructions{Address: "rTestIssuer", Memo: reference, RequiredConfirmations: 3}, nil
}

func (r *stubRail) ReportedBalance(ctx context.Context) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balance, nil
}

func (r *stubRail) setBalance(b decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balance = b
}

type stubChainClient struct {
	mu        sync.Mutex
	transfers []string
}

func newStubChainClient() *stubChainClient { return &stubChainClient{} }

func (c *stubChainClient) GenerateWallet(ctx context.Context) (string, error) {
	return "addr-" + uuid.NewString()[:8], nil
}

func (c *stubChainClient) SetupTrustline(ctx context.Context, address string, limit int64) error {
	return nil
}

func (c *stubChainClient) Transfer(ctx context.Context, from, to string, amount int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transfers = append(c.transfers, fmt.Sprintf("%s->%s:%d", from, to, amount))
	return fmt.Sprintf("chain-tx-%d", len(c.transfers)), nil
}

func (c *stubChainClient) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (c *stubChainClient) GetConfirmations(ctx context.Context, txID string) (int, error) {
	return 0, nil
}

func (c *stubChainClient) ListIncoming(ctx context.Context, address string) ([]ports.ChainPayment, error) {
	return nil, nil
}
