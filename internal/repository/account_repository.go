package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"economy/internal/domain"
	"economy/internal/errors"
)

const accountColumns = `id, name, balance, frozen`

type accountRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewAccountRepository(db SQLExecutor, logger *slog.Logger) domain.AccountRepository {
	return &accountRepository{
		db:     db,
		logger: logger,
	}
}

func (r *accountRepository) LoadAll(ctx context.Context) ([]domain.AccountSnapshot, error) {
	query := `SELECT ` + accountColumns + ` FROM economy_accounts ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to load accounts", "error", err)
		return nil, wrapError("failed to load accounts", err)
	}
	defer rows.Close()

	var accounts []domain.AccountSnapshot
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			r.logger.Error("Failed to scan account", "error", err)
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("failed to load accounts", err)
	}

	return accounts, nil
}

// GetAccount returns nil, nil when no row exists.
func (r *accountRepository) GetAccount(ctx context.Context, id uuid.UUID) (*domain.AccountSnapshot, error) {
	query := `SELECT ` + accountColumns + ` FROM economy_accounts WHERE id = $1`

	return r.queryOne(ctx, query, id)
}

// GetAccountByName returns nil, nil when no row exists.
func (r *accountRepository) GetAccountByName(ctx context.Context, name string) (*domain.AccountSnapshot, error) {
	query := `SELECT ` + accountColumns + ` FROM economy_accounts WHERE name = $1 ORDER BY id LIMIT 1`

	return r.queryOne(ctx, query, name)
}

func (r *accountRepository) queryOne(ctx context.Context, query string, arg interface{}) (*domain.AccountSnapshot, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get account", "arg", arg, "error", err)
		return nil, err
	}
	return account, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row scanner) (*domain.AccountSnapshot, error) {
	var account domain.AccountSnapshot
	var balanceStr string

	if err := row.Scan(&account.ID, &account.Name, &balanceStr, &account.Frozen); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, wrapError("failed to scan account", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to parse balance").WithDetails(err.Error())
	}
	account.Balance = balance
	return &account, nil
}

// SaveAccount inserts the snapshot or overwrites the existing row.
func (r *accountRepository) SaveAccount(ctx context.Context, account domain.AccountSnapshot) error {
	query := `
		INSERT INTO economy_accounts (id, name, balance, frozen, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			balance = EXCLUDED.balance,
			frozen = EXCLUDED.frozen,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Name,
		account.Balance.String(),
		account.Frozen,
		time.Now().UTC(),
	)
	if err != nil {
		return wrapError("failed to save account", err)
	}
	return nil
}

func (r *accountRepository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM economy_accounts WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return wrapError("failed to delete account", err)
	}

	r.logger.Info("Account deleted", "account_id", id)
	return nil
}

func (r *accountRepository) ExpireAccounts(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `DELETE FROM economy_accounts WHERE updated_at < $1`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC().Add(-olderThan))
	if err != nil {
		r.logger.Error("Failed to expire accounts", "error", err)
		return 0, wrapError("failed to expire accounts", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewAppError(errors.InternalError, "failed to get rows affected").WithDetails(err.Error())
	}
	return n, nil
}

// wrapError maps driver errors to application errors.
func wrapError(message string, err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code.Class() {
		case "23":
			if pqErr.Code == "23505" { // unique_violation
				return errors.ErrDuplicateAccount
			}
		case "08", "57":
			return errors.NewAppError(errors.NotReady, message).WithDetails(pqErr.Message)
		}
	}
	return errors.NewAppError(errors.InternalError, message).WithDetails(err.Error())
}
