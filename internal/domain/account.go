package domain

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DirtyMarker receives the id of an account whose snapshot needs persisting.
type DirtyMarker interface {
	MarkDirty(id uuid.UUID)
}

// LedgerSink receives every balance-changing transaction.
type LedgerSink interface {
	Append(tx Transaction)
}

// AccountSnapshot is an immutable point-in-time copy of an Account. It is also
// the row shape exchanged with the account repository.
type AccountSnapshot struct {
	ID      uuid.UUID       `json:"account_id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
	Frozen  bool            `json:"frozen"`
}

// Account is the in-memory authoritative record of one participant. All state
// changes go through its methods; each mutation signals the dirty marker and,
// when the balance changes, the ledger sink while still holding the lock.
type Account struct {
	mu      sync.Mutex
	id      uuid.UUID
	name    string
	balance decimal.Decimal
	frozen  bool

	dirty  DirtyMarker
	ledger LedgerSink
	now    func() time.Time
}

func NewAccount(id uuid.UUID, name string, balance decimal.Decimal, frozen bool, dirty DirtyMarker, ledger LedgerSink) *Account {
	return &Account{
		id:      id,
		name:    name,
		balance: balance,
		frozen:  frozen,
		dirty:   dirty,
		ledger:  ledger,
		now:     time.Now,
	}
}

// FromSnapshot rebuilds a live account from a persisted row.
func FromSnapshot(s AccountSnapshot, dirty DirtyMarker, ledger LedgerSink) *Account {
	return NewAccount(s.ID, s.Name, s.Balance, s.Frozen, dirty, ledger)
}

func (a *Account) ID() uuid.UUID {
	return a.id
}

func (a *Account) Name() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name
}

// DisplayName is the name formatted for leaderboards and messages.
func (a *Account) DisplayName() string {
	return DisplayName(a.Name())
}

func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

func (a *Account) IsFrozen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frozen
}

// Rename changes the account name. Name changes are not ledgered.
func (a *Account) Rename(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		return false
	}
	a.name = name
	a.markDirty()
	return true
}

func (a *Account) Add(amount decimal.Decimal, transactor Transactor) bool {
	return a.apply(transactor, func(current decimal.Decimal) decimal.Decimal {
		return current.Add(amount)
	})
}

// Subtract does not enforce a non-negative result; insufficient-funds checks
// belong to the caller.
func (a *Account) Subtract(amount decimal.Decimal, transactor Transactor) bool {
	return a.apply(transactor, func(current decimal.Decimal) decimal.Decimal {
		return current.Sub(amount)
	})
}

// SetBalance records the difference between the new and the old balance.
func (a *Account) SetBalance(value decimal.Decimal, transactor Transactor) bool {
	return a.apply(transactor, func(decimal.Decimal) decimal.Decimal {
		return value
	})
}

func (a *Account) apply(transactor Transactor, next func(decimal.Decimal) decimal.Decimal) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		return false
	}

	previous := a.balance
	a.balance = next(previous)

	a.markDirty()
	a.record(a.balance.Sub(previous), transactor)
	return true
}

func (a *Account) SetFrozen(frozen bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.frozen = frozen
	a.markDirty()
}

func (a *Account) Freeze() {
	a.SetFrozen(true)
}

func (a *Account) Unfreeze() {
	a.SetFrozen(false)
}

// Snapshot captures id, name, balance and frozen state atomically.
func (a *Account) Snapshot() AccountSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return AccountSnapshot{
		ID:      a.id,
		Name:    a.name,
		Balance: a.balance,
		Frozen:  a.frozen,
	}
}

func (a *Account) markDirty() {
	if a.dirty != nil {
		a.dirty.MarkDirty(a.id)
	}
}

func (a *Account) record(delta decimal.Decimal, transactor Transactor) {
	if a.ledger == nil {
		return
	}
	a.ledger.Append(Transaction{
		AccountID:   a.id,
		AccountName: a.name,
		Amount:      delta,
		Transactor:  transactor,
		Timestamp:   a.now().UTC(),
	})
}

type AccountRepository interface {
	LoadAll(ctx context.Context) ([]AccountSnapshot, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*AccountSnapshot, error)
	GetAccountByName(ctx context.Context, name string) (*AccountSnapshot, error)
	SaveAccount(ctx context.Context, account AccountSnapshot) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	ExpireAccounts(ctx context.Context, olderThan time.Duration) (int64, error)
}
