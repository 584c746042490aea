package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"economy/internal/domain"
	"economy/internal/errors"
)

type transactionRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransactionRepository(db SQLExecutor, logger *slog.Logger) domain.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transactionRepository) CreateTransaction(ctx context.Context, tx domain.Transaction) error {
	query := `
		INSERT INTO economy_transactions (timestamp, account, actor, name, amount)
		VALUES ($1, $2, $3, $4, $5)
	`

	ts := tx.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		ts,
		tx.AccountID,
		string(tx.Transactor),
		tx.AccountName,
		tx.Amount.String(),
	)
	if err != nil {
		return wrapError("failed to create transaction", err)
	}
	return nil
}

// ListTransactions returns an account's ledger rows, newest first.
func (r *transactionRepository) ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT timestamp, account, actor, name, amount
		FROM economy_transactions
		WHERE account = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		r.logger.Error("Failed to list transactions", "account_id", accountID, "error", err)
		return nil, wrapError("failed to list transactions", err)
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var actor, amountStr string

		if err := rows.Scan(&tx.Timestamp, &tx.AccountID, &actor, &tx.AccountName, &amountStr); err != nil {
			return nil, wrapError("failed to scan transaction", err)
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse amount").WithDetails(err.Error())
		}
		tx.Amount = amount
		tx.Transactor = domain.Transactor(actor)

		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("failed to list transactions", err)
	}

	return transactions, nil
}

func (r *transactionRepository) ExpireTransactions(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `DELETE FROM economy_transactions WHERE timestamp < $1`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC().Add(-olderThan))
	if err != nil {
		r.logger.Error("Failed to expire transactions", "error", err)
		return 0, wrapError("failed to expire transactions", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewAppError(errors.InternalError, "failed to get rows affected").WithDetails(err.Error())
	}
	return n, nil
}
