package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transactor identifies what caused a balance change.
type Transactor string

const (
	TransactorPlayer      Transactor = "PLAYER"
	TransactorServer      Transactor = "SERVER"
	TransactorExternalAPI Transactor = "EXTERNAL_API"
)

func ParseTransactor(s string) (Transactor, error) {
	switch t := Transactor(strings.ToUpper(strings.ReplaceAll(s, "-", "_"))); t {
	case TransactorPlayer, TransactorServer, TransactorExternalAPI:
		return t, nil
	default:
		return "", fmt.Errorf("unknown transactor %q", s)
	}
}

// Transaction is one ledger entry: the signed delta applied to an account.
type Transaction struct {
	AccountID   uuid.UUID       `json:"account_id"`
	AccountName string          `json:"account_name"`
	Amount      decimal.Decimal `json:"amount"`
	Transactor  Transactor      `json:"actor"`
	Timestamp   time.Time       `json:"timestamp"`
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx Transaction) error
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]Transaction, error)
	ExpireTransactions(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Storage is the persistence backend the cache writes behind to.
type Storage interface {
	Account() AccountRepository
	Transaction() TransactionRepository
	Ping(ctx context.Context) error
	Close() error
}
