package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"economy/internal/domain"
	"economy/internal/metrics"
	"economy/internal/writebehind"
)

// Registry is the in-memory authoritative store of accounts. Every account it
// creates or loads shares the registry's dirty set and ledger queue.
type Registry struct {
	mu           sync.RWMutex
	accounts     map[uuid.UUID]*domain.Account
	online       map[uuid.UUID]*domain.Account
	participants map[uuid.UUID]struct{}

	dirty  *writebehind.DirtySet
	ledger *writebehind.LedgerQueue

	// marker and sink are what accounts see; they wrap dirty and ledger when
	// debug logging is enabled.
	marker domain.DirtyMarker
	sink   domain.LedgerSink

	repo            domain.AccountRepository
	logger          *slog.Logger
	metrics         *metrics.Metrics
	startingBalance decimal.Decimal
	ready           atomic.Bool
}

type Option func(*Registry)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithStartingBalance sets the balance given to accounts created by Join.
func WithStartingBalance(balance decimal.Decimal) Option {
	return func(r *Registry) { r.startingBalance = balance }
}

// WithDebug logs every dirty mark and ledger append at debug level.
func WithDebug(enabled bool) Option {
	return func(r *Registry) {
		if !enabled {
			return
		}
		r.marker = debugMarker{next: r.dirty, logger: r.logger}
		r.sink = debugSink{next: r.ledger, logger: r.logger}
	}
}

func NewRegistry(repo domain.AccountRepository, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		accounts:     make(map[uuid.UUID]*domain.Account),
		online:       make(map[uuid.UUID]*domain.Account),
		participants: make(map[uuid.UUID]struct{}),
		dirty:        writebehind.NewDirtySet(),
		ledger:       writebehind.NewLedgerQueue(),
		repo:         repo,
		logger:       logger,
	}
	r.marker = r.dirty
	r.sink = r.ledger
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize loads every persisted account into memory. It must complete
// before the registry serves lookups; a load error leaves the registry not
// ready and is returned to the caller.
func (r *Registry) Initialize(ctx context.Context) error {
	rows, err := r.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	r.mu.Lock()
	for _, row := range rows {
		r.accounts[row.ID] = domain.FromSnapshot(row, r.marker, r.sink)
		if domain.ClassifyName(row.Name) == domain.KindPlayer {
			r.participants[row.ID] = struct{}{}
		}
	}
	n := len(r.accounts)
	r.mu.Unlock()

	r.ready.Store(true)
	r.metrics.SetAccounts(n)
	r.logger.Info("Loaded accounts", "count", len(rows))
	return nil
}

func (r *Registry) Ready() bool {
	return r.ready.Load()
}

func (r *Registry) Get(id uuid.UUID) (*domain.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	return a, ok
}

// GetByName returns the first account whose name matches exactly.
func (r *Registry) GetByName(name string) (*domain.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return findByName(r.accounts, name)
}

func (r *Registry) GetOnline(id uuid.UUID) (*domain.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.online[id]
	return a, ok
}

func (r *Registry) GetOnlineByName(name string) (*domain.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return findByName(r.online, name)
}

func findByName(m map[uuid.UUID]*domain.Account, name string) (*domain.Account, bool) {
	for _, a := range m {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// Create inserts a new account, replacing any account with the same id. The
// account is marked dirty so the next flush persists it.
func (r *Registry) Create(id uuid.UUID, name string, balance decimal.Decimal) *domain.Account {
	account := domain.NewAccount(id, name, balance, false, r.marker, r.sink)

	r.mu.Lock()
	r.accounts[id] = account
	if _, ok := r.online[id]; ok {
		r.online[id] = account
	}
	n := len(r.accounts)
	r.mu.Unlock()

	r.marker.MarkDirty(id)
	r.metrics.SetAccounts(n)
	return account
}

// Delete removes the account from memory immediately. The backend delete runs
// in the background and its failure is only logged. A pending dirty mark for
// the id is skipped by the next flush.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) bool {
	r.mu.Lock()
	delete(r.accounts, id)
	delete(r.online, id)
	n := len(r.accounts)
	r.mu.Unlock()

	r.metrics.SetAccounts(n)

	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := r.repo.DeleteAccount(ctx, id); err != nil {
			r.logger.Error("Failed to delete account", "account_id", id, "error", err)
		}
	}()
	return true
}

func (r *Registry) Rename(id uuid.UUID, name string) bool {
	account, ok := r.Get(id)
	if !ok {
		return false
	}
	return account.Rename(name)
}

// All returns the accounts present at the time of the call. The slice is a
// copy and may be iterated while other goroutines mutate the registry.
func (r *Registry) All() []*domain.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out
}

func (r *Registry) AddOnline(account *domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.online[account.ID()] = account
	r.participants[account.ID()] = struct{}{}
}

func (r *Registry) RemoveOnline(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.online, id)
}

func (r *Registry) IsOnline(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.online[id]
	return ok
}

// HasPlayedBefore reports whether the id has ever joined, or was a player
// account when the registry was loaded.
func (r *Registry) HasPlayedBefore(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.participants[id]
	return ok
}

// Join brings a participant online. An existing account is renamed when the
// name differs ignoring case; a missing one is created with the starting
// balance. The boolean reports whether the account was created.
func (r *Registry) Join(id uuid.UUID, name string) (*domain.Account, bool) {
	account, ok := r.Get(id)
	created := false
	switch {
	case !ok:
		account = r.Create(id, name, r.startingBalance)
		created = true
		r.logger.Info("Created account on join", "account_id", id, "account_name", name)
	case !strings.EqualFold(account.Name(), name):
		if account.Rename(name) {
			r.logger.Info("Renamed account on join", "account_id", id, "account_name", name)
		}
	}

	r.AddOnline(account)
	return account, created
}

func (r *Registry) Quit(id uuid.UUID) {
	r.RemoveOnline(id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.accounts)
}

func (r *Registry) DirtyQueue() *writebehind.DirtySet {
	return r.dirty
}

func (r *Registry) LedgerQueue() *writebehind.LedgerQueue {
	return r.ledger
}

type debugMarker struct {
	next   domain.DirtyMarker
	logger *slog.Logger
}

func (d debugMarker) MarkDirty(id uuid.UUID) {
	d.next.MarkDirty(id)
	d.logger.Debug("Account marked dirty", "account_id", id)
}

type debugSink struct {
	next   domain.LedgerSink
	logger *slog.Logger
}

func (d debugSink) Append(tx domain.Transaction) {
	d.next.Append(tx)
	d.logger.Debug("Transaction queued",
		"account_id", tx.AccountID,
		"account_name", tx.AccountName,
		"actor", tx.Transactor,
		"amount", tx.Amount.String())
}
