package service

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

// In-memory doubles for the persistence ports. Writes apply immediately; the
// noop transaction only satisfies the pgx.Tx plumbing.

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

type fakeTransactor struct{}

func (f *fakeTransactor) Begin(ctx context.Context) (pgx.Tx, error) { return &noopTx{}, nil }

// --- wallets ---

type fakeWalletRepo struct {
	mu      sync.RWMutex
	wallets map[string]*domain.Wallet // by principal

	// forceConflicts makes the next N UpdateBalance calls report a lost CAS
	// race regardless of version.
	forceConflicts int
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: make(map[string]*domain.Wallet)}
}

func (r *fakeWalletRepo) Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *wallet
	r.wallets[wallet.Principal] = &cp
	return nil
}

func (r *fakeWalletRepo) GetByPrincipal(ctx context.Context, principal string) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[principal]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *fakeWalletRepo) GetByPrincipalTx(ctx context.Context, tx pgx.Tx, principal string) (*domain.Wallet, error) {
	return r.GetByPrincipal(ctx, principal)
}

func (r *fakeWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, newBalance int64, expectedVersion int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.forceConflicts > 0 {
		r.forceConflicts--
		return false, nil
	}
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

func (r *fakeWalletRepo) SetFrozen(ctx context.Context, walletID uuid.UUID, frozen bool, reason *string) error {
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

func (r *fakeWalletRepo) SetChainAddress(ctx context.Context, walletID uuid.UUID, address string, trustline bool) error {
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

func (r *fakeWalletRepo) SumBalances(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, w := range r.wallets {
		sum += w.TokenBalance
	}
	return sum, nil
}

// seed installs a wallet with a given balance, bypassing the ledger.
func (r *fakeWalletRepo) seed(principal string, pt domain.PrincipalType, balance int64) *domain.Wallet {
	w := domain.NewWallet(principal, pt)
	w.TokenBalance = balance
	r.wallets[principal] = w
	return w
}

// --- treasury ---

type fakeTreasuryRepo struct {
	mu       sync.RWMutex
	treasury domain.Treasury
}

func newFakeTreasuryRepo() *fakeTreasuryRepo {
	return &fakeTreasuryRepo{
		treasury: domain.Treasury{
			ID:                   domain.TreasuryID,
			TotalReserveUSD:      decimal.Zero,
			ReconciliationStatus: domain.ReconciliationStatusHealthy,
			UpdatedAt:            time.Now().UTC(),
		},
	}
}

func (r *fakeTreasuryRepo) Get(ctx context.Context) (*domain.Treasury, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := r.treasury
	return &cp, nil
}

func (r *fakeTreasuryRepo) GetTx(ctx context.Context, tx pgx.Tx) (*domain.Treasury, error) {
	return r.Get(ctx)
}

func (r *fakeTreasuryRepo) ApplyMutation(ctx context.Context, tx pgx.Tx, mut ports.TreasuryMutation, expectedVersion int64) (bool, error) {
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

func (r *fakeTreasuryRepo) SetReconciliation(ctx context.Context, status domain.ReconciliationStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.treasury.ReconciliationStatus = status
	r.treasury.LastReconciledAt = &at
	return nil
}

// --- ledger ---

type fakeLedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
	byRef   map[string]*domain.LedgerEntry
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{byRef: make(map[string]*domain.LedgerEntry)}
}

func (r *fakeLedgerRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ExternalReference != nil {
		if _, exists := r.byRef[*entry.ExternalReference]; exists {
			// Mirrors the partial unique index on external_reference
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

func (r *fakeLedgerRepo) GetByExternalReference(ctx context.Context, ref string) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byRef[ref]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *fakeLedgerRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
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

// --- idempotency cache ---

type fakeCache struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

// --- deposits ---

type fakeDepositRepo struct {
	mu       sync.RWMutex
	deposits map[uuid.UUID]*domain.DepositRecord
}

func newFakeDepositRepo() *fakeDepositRepo {
	return &fakeDepositRepo{deposits: make(map[uuid.UUID]*domain.DepositRecord)}
}

func (r *fakeDepositRepo) Create(ctx context.Context, d *domain.DepositRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.deposits[d.ID] = &cp
	return nil
}

func (r *fakeDepositRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.DepositRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.deposits[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDepositRepo) GetByExternalReference(ctx context.Context, rail domain.Rail, ref string) (*domain.DepositRecord, error) {
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

func (r *fakeDepositRepo) MarkCompleted(ctx context.Context, id uuid.UUID, amountToken int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.deposits[id]; ok && d.Status == domain.DepositStatusPending {
		d.Status = domain.DepositStatusCompleted
		d.AmountToken = amountToken
		d.CompletedAt = &at
	}
	return nil
}

func (r *fakeDepositRepo) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.deposits[id]; ok && d.Status == domain.DepositStatusPending {
		d.Status = domain.DepositStatusFailed
		d.CompletedAt = &at
	}
	return nil
}

func (r *fakeDepositRepo) UpdateConfirmations(ctx context.Context, id uuid.UUID, confirmations int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.deposits[id]; ok {
		d.Confirmations = confirmations
	}
	return nil
}

func (r *fakeDepositRepo) ListPendingByRail(ctx context.Context, rail domain.Rail) ([]domain.DepositRecord, error) {
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

func (r *fakeDepositRepo) ListExpiredPending(ctx context.Context, olderThan time.Time) ([]domain.DepositRecord, error) {
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

type fakeWithdrawalRepo struct {
	mu          sync.RWMutex
	withdrawals map[uuid.UUID]*domain.WithdrawalRecord
}

func newFakeWithdrawalRepo() *fakeWithdrawalRepo {
	return &fakeWithdrawalRepo{withdrawals: make(map[uuid.UUID]*domain.WithdrawalRecord)}
}

func (r *fakeWithdrawalRepo) Create(ctx context.Context, w *domain.WithdrawalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.withdrawals[w.ID] = &cp
	return nil
}

func (r *fakeWithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *fakeWithdrawalRepo) GetByExternalReference(ctx context.Context, rail domain.Rail, ref string) (*domain.WithdrawalRecord, error) {
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

func (r *fakeWithdrawalRepo) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.withdrawals[id]; ok && w.Status == domain.DepositStatusPending {
		w.Status = domain.DepositStatusCompleted
		w.CompletedAt = &at
	}
	return nil
}

func (r *fakeWithdrawalRepo) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.withdrawals[id]; ok && w.Status == domain.DepositStatusPending {
		w.Status = domain.DepositStatusFailed
		w.CompletedAt = &at
	}
	return nil
}

// --- admins & audit ---

type fakeAdminRepo struct {
	mu     sync.RWMutex
	admins map[string]*domain.Admin // by username
}

func newFakeAdminRepo() *fakeAdminRepo {
	return &fakeAdminRepo{admins: make(map[string]*domain.Admin)}
}

func (r *fakeAdminRepo) Create(ctx context.Context, admin *domain.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *admin
	r.admins[admin.Username] = &cp
	return nil
}

func (r *fakeAdminRepo) GetByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.admins[username]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAdminRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
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

type fakeAuditRepo struct {
	mu   sync.Mutex
	logs []domain.AuditLog
}

func (r *fakeAuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

// --- rails ---

type fakeRailAdapter struct {
	rail         domain.Rail
	instructions domain.DepositInstructions
	err          error
	lastRef      string
}

func (a *fakeRailAdapter) Rail() domain.Rail { return a.rail }

func (a *fakeRailAdapter) Initiate(ctx context.Context, principal string, amountUSD decimal.Decimal, reference string) (domain.DepositInstructions, error) {
	a.lastRef = reference
	if a.err != nil {
		return nil, a.err
	}
	return a.instructions, nil
}

type fakeReporter struct {
	rail     domain.Rail
	balance  decimal.Decimal
	err      error
}

func (r *fakeReporter) Rail() domain.Rail { return r.rail }

func (r *fakeReporter) ReportedBalance(ctx context.Context) (decimal.Decimal, error) {
	if r.err != nil {
		return decimal.Zero, r.err
	}
	return r.balance, nil
}

type fakeChainClient struct {
	mu            sync.Mutex
	transferErr   error
	transfers     []string // "from->to:amount"
	nextTxID      string
	confirmations map[string]int
	balances      map[string]decimal.Decimal
}

func newFakeChainClient() *fakeChainClient {
	return &fakeChainClient{
		nextTxID:      "chain-tx-1",
		confirmations: make(map[string]int),
		balances:      make(map[string]decimal.Decimal),
	}
}

func (c *fakeChainClient) GenerateWallet(ctx context.Context) (string, error) {
	return "addr-" + uuid.NewString()[:8], nil
}

func (c *fakeChainClient) SetupTrustline(ctx context.Context, address string, limit int64) error {
	return nil
}

func (c *fakeChainClient) Transfer(ctx context.Context, from, to string, amount int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transferErr != nil {
		return "", c.transferErr
	}
	c.transfers = append(c.transfers, fmt.Sprintf("%s->%s:%d", from, to, amount))
	return c.nextTxID, nil
}

func (c *fakeChainClient) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[address], nil
}

func (c *fakeChainClient) GetConfirmations(ctx context.Context, txID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmations[txID], nil
}

func (c *fakeChainClient) ListIncoming(ctx context.Context, address string) ([]ports.ChainPayment, error) {
	return nil, nil
}

// --- run lock ---

type fakeRunLock struct {
	mu   sync.Mutex
	held bool
}

func (l *fakeRunLock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeRunLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}
