package service

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"economy/internal/cache"
	"economy/internal/domain"
	"economy/internal/errors"
	"economy/internal/metrics"
)

type TransactionService struct {
	registry *cache.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewTransactionService(registry *cache.Registry, m *metrics.Metrics, logger *slog.Logger) *TransactionService {
	return &TransactionService{
		registry: registry,
		metrics:  m,
		logger:   logger,
	}
}

type PayRequest struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
}

type PayResult struct {
	From *domain.Account
	To   *domain.Account
}

// Pay moves amount from one account to another as a player payment. The
// source is debited first; if the destination cannot be credited the debit is
// reversed.
func (s *TransactionService) Pay(req *PayRequest) (*PayResult, error) {
	s.logger.Info("Processing payment",
		"from_account_id", req.FromAccountID,
		"to_account_id", req.ToAccountID,
		"amount", req.Amount.String())

	from, err := lookup(s.registry, req.FromAccountID)
	if err != nil {
		return nil, err
	}
	to, err := lookup(s.registry, req.ToAccountID)
	if err != nil {
		return nil, err
	}

	if err := s.validatePayment(from, to, req.Amount); err != nil {
		s.metrics.CountMutation("pay", false)
		return nil, err
	}

	if !from.Subtract(req.Amount, domain.TransactorPlayer) {
		s.metrics.CountMutation("pay", false)
		return nil, errors.ErrAccountFrozen
	}
	if !to.Add(req.Amount, domain.TransactorPlayer) {
		from.Add(req.Amount, domain.TransactorServer)
		s.logger.Warn("Payment reversed, destination frozen",
			"from_account_id", from.ID(),
			"to_account_id", to.ID(),
			"amount", req.Amount.String())
		s.metrics.CountMutation("pay", false)
		return nil, errors.ErrAccountFrozen
	}

	s.metrics.CountMutation("pay", true)
	s.logger.Info("Payment completed successfully",
		"from_account_id", from.ID(),
		"to_account_id", to.ID(),
		"amount", req.Amount.String())
	return &PayResult{From: from, To: to}, nil
}

func (s *TransactionService) validatePayment(from, to *domain.Account, amount decimal.Decimal) error {
	if from.ID() == to.ID() {
		return errors.ErrSameAccountTransfer
	}

	if amount.IsNegative() || amount.IsZero() {
		return errors.ErrInvalidAmount
	}

	if from.IsFrozen() || to.IsFrozen() {
		return errors.ErrAccountFrozen
	}

	if from.Balance().LessThan(amount) {
		return errors.ErrInsufficientBalance
	}

	return nil
}
