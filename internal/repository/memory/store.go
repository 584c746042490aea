package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"economy/internal/domain"
)

type accountRow struct {
	snapshot  domain.AccountSnapshot
	updatedAt time.Time
}

// Store is an in-memory domain.Storage, used with STORAGE_TYPE=memory and in
// tests. It is safe for concurrent use.
type Store struct {
	mu           sync.Mutex
	accounts     map[uuid.UUID]accountRow
	transactions []domain.Transaction
	now          func() time.Time
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]accountRow),
		now:      time.Now,
	}
}

func (s *Store) Account() domain.AccountRepository {
	return (*accountRepository)(s)
}

func (s *Store) Transaction() domain.TransactionRepository {
	return (*transactionRepository)(s)
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

// Expire deletes accounts and ledger rows older than the given ages. A zero
// age leaves that collection untouched.
func (s *Store) Expire(ctx context.Context, accountsOlderThan, transactionsOlderThan time.Duration) (accounts, transactions int64, err error) {
	if accountsOlderThan > 0 {
		if accounts, err = s.Account().ExpireAccounts(ctx, accountsOlderThan); err != nil {
			return 0, 0, err
		}
	}
	if transactionsOlderThan > 0 {
		if transactions, err = s.Transaction().ExpireTransactions(ctx, transactionsOlderThan); err != nil {
			return 0, 0, err
		}
	}
	return accounts, transactions, nil
}

// Transactions returns a copy of every stored ledger row in insertion order.
func (s *Store) Transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]domain.Transaction, len(s.transactions))
	copy(copied, s.transactions)
	return copied
}

type accountRepository Store

func (r *accountRepository) LoadAll(ctx context.Context) ([]domain.AccountSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.AccountSnapshot, 0, len(r.accounts))
	for _, row := range r.accounts {
		out = append(out, row.snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *accountRepository) GetAccount(ctx context.Context, id uuid.UUID) (*domain.AccountSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	snap := row.snapshot
	return &snap, nil
}

func (r *accountRepository) GetAccountByName(ctx context.Context, name string) (*domain.AccountSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.accounts {
		if row.snapshot.Name == name {
			snap := row.snapshot
			return &snap, nil
		}
	}
	return nil, nil
}

func (r *accountRepository) SaveAccount(ctx context.Context, account domain.AccountSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.accounts[account.ID] = accountRow{snapshot: account, updatedAt: r.now()}
	return nil
}

func (r *accountRepository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.accounts, id)
	return nil
}

func (r *accountRepository) ExpireAccounts(ctx context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-olderThan)
	var n int64
	for id, row := range r.accounts {
		if row.updatedAt.Before(cutoff) {
			delete(r.accounts, id)
			n++
		}
	}
	return n, nil
}

type transactionRepository Store

func (r *transactionRepository) CreateTransaction(ctx context.Context, tx domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tx.Timestamp.IsZero() {
		tx.Timestamp = r.now().UTC()
	}
	r.transactions = append(r.transactions, tx)
	return nil
}

// ListTransactions returns the newest rows first.
func (r *transactionRepository) ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Transaction
	for i := len(r.transactions) - 1; i >= 0; i-- {
		if r.transactions[i].AccountID != accountID {
			continue
		}
		out = append(out, r.transactions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *transactionRepository) ExpireTransactions(ctx context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-olderThan)
	kept := r.transactions[:0]
	var n int64
	for _, tx := range r.transactions {
		if tx.Timestamp.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, tx)
	}
	r.transactions = kept
	return n, nil
}

var _ domain.Storage = (*Store)(nil)
