package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"economy/internal/domain"
	"economy/internal/errors"
)

// Store is the Postgres domain.Storage with transaction support
type Store struct {
	db       *sql.DB
	executor SQLExecutor
	logger   *slog.Logger
}

func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		db:       db,
		executor: db,
		logger:   logger,
	}
}

// Account returns an AccountRepository using the current executor
func (s *Store) Account() domain.AccountRepository {
	return NewAccountRepository(s.executor, s.logger)
}

// Transaction returns a TransactionRepository using the current executor
func (s *Store) Transaction() domain.TransactionRepository {
	return NewTransactionRepository(s.executor, s.logger)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithTransaction executes fn within a database transaction
func (s *Store) WithTransaction(ctx context.Context, fn func(*Store) error) error {
	// Only the root store can begin transactions
	db, ok := s.executor.(DB)
	if !ok {
		return errors.ErrCannotBeginTransaction
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	txStore := &Store{
		db:       s.db,
		executor: &TxWrapper{Tx: tx},
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Expire deletes accounts and ledger rows older than the given ages in one
// transaction. A zero age leaves that table untouched.
func (s *Store) Expire(ctx context.Context, accountsOlderThan, transactionsOlderThan time.Duration) (accounts, transactions int64, err error) {
	if accountsOlderThan <= 0 && transactionsOlderThan <= 0 {
		return 0, 0, nil
	}

	err = s.WithTransaction(ctx, func(tx *Store) error {
		if accountsOlderThan > 0 {
			n, err := tx.Account().ExpireAccounts(ctx, accountsOlderThan)
			if err != nil {
				return err
			}
			accounts = n
		}
		if transactionsOlderThan > 0 {
			n, err := tx.Transaction().ExpireTransactions(ctx, transactionsOlderThan)
			if err != nil {
				return err
			}
			transactions = n
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	s.logger.Info("Expired stale rows", "accounts", accounts, "transactions", transactions)
	return accounts, transactions, nil
}

var _ domain.Storage = (*Store)(nil)
