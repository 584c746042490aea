package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const TopicTransactionRecorded = "economy.transaction_recorded"

type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// TransactionRecorded is emitted once a ledger row has been persisted.
type TransactionRecorded struct {
	AccountID   string          `json:"account_id"`
	AccountName string          `json:"account_name"`
	Actor       string          `json:"actor"`
	Amount      decimal.Decimal `json:"amount"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

func (e TransactionRecorded) PartitionKey() string {
	return e.AccountID
}
