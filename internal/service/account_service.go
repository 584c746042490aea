package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"economy/internal/cache"
	"economy/internal/config"
	"economy/internal/domain"
	"economy/internal/errors"
	"economy/internal/leaderboard"
	"economy/internal/metrics"
)

const (
	DefaultTransactionLimit = 20
	MaxTransactionLimit     = 500
)

type AccountService struct {
	registry     *cache.Registry
	transactions domain.TransactionRepository
	leaderboard  *leaderboard.Aggregator
	currency     config.Currency
	startBalance decimal.Decimal
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func NewAccountService(
	registry *cache.Registry,
	transactions domain.TransactionRepository,
	board *leaderboard.Aggregator,
	cfg *config.Config,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		registry:     registry,
		transactions: transactions,
		leaderboard:  board,
		currency:     cfg.Currency,
		startBalance: cfg.StartingBalance,
		metrics:      m,
		logger:       logger,
	}
}

// CreateAccount adds a new account. An empty id generates one and a nil
// balance uses the configured starting balance.
func (s *AccountService) CreateAccount(accountID, name string, balance *decimal.Decimal) (*domain.Account, error) {
	if err := ensureReady(s.registry); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewAppError(errors.InvalidInput, "name is required")
	}

	id := uuid.New()
	if accountID != "" {
		parsed, err := uuid.Parse(accountID)
		if err != nil {
			return nil, errors.ErrInvalidAccountID
		}
		id = parsed
	}

	initial := s.startBalance
	if balance != nil {
		if balance.IsNegative() {
			return nil, errors.NewAppError(errors.InvalidAmount, "initial balance must not be negative")
		}
		initial = *balance
	}

	if _, ok := s.registry.Get(id); ok {
		s.logger.Warn("Duplicate account creation attempt", "account_id", id)
		return nil, errors.ErrDuplicateAccount
	}
	if _, ok := s.registry.GetByName(name); ok {
		s.logger.Warn("Duplicate account creation attempt", "account_name", name)
		return nil, errors.ErrDuplicateAccount.WithDetails("name already in use")
	}

	account := s.registry.Create(id, name, initial)
	s.logger.Info("Account created successfully", "account_id", id, "account_name", name, "balance", initial.String())
	return account, nil
}

// GetAccount resolves an account by id, falling back to an exact name match.
func (s *AccountService) GetAccount(idOrName string) (*domain.Account, error) {
	if err := ensureReady(s.registry); err != nil {
		return nil, err
	}

	if id, err := uuid.Parse(idOrName); err == nil {
		if account, ok := s.registry.Get(id); ok {
			return account, nil
		}
	}
	if account, ok := s.registry.GetByName(idOrName); ok {
		return account, nil
	}
	return nil, errors.ErrAccountNotFound
}

func (s *AccountService) Deposit(accountID string, amount decimal.Decimal, transactor domain.Transactor) (*domain.Account, error) {
	account, err := s.mutable(accountID)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}

	ok := account.Add(amount, transactor)
	s.metrics.CountMutation("deposit", ok)
	if !ok {
		return nil, errors.ErrAccountFrozen
	}

	s.logger.Info("Deposit applied", "account_id", account.ID(), "amount", amount.String(), "actor", transactor)
	return account, nil
}

// Withdraw subtracts amount when the balance covers it. The check and the
// subtraction are separate steps, so concurrent withdrawals may overdraw.
func (s *AccountService) Withdraw(accountID string, amount decimal.Decimal, transactor domain.Transactor) (*domain.Account, error) {
	account, err := s.mutable(accountID)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}
	if account.Balance().LessThan(amount) {
		s.metrics.CountMutation("withdraw", false)
		return nil, errors.ErrInsufficientBalance
	}

	ok := account.Subtract(amount, transactor)
	s.metrics.CountMutation("withdraw", ok)
	if !ok {
		return nil, errors.ErrAccountFrozen
	}

	s.logger.Info("Withdrawal applied", "account_id", account.ID(), "amount", amount.String(), "actor", transactor)
	return account, nil
}

func (s *AccountService) SetBalance(accountID string, value decimal.Decimal, transactor domain.Transactor) (*domain.Account, error) {
	account, err := s.mutable(accountID)
	if err != nil {
		return nil, err
	}

	ok := account.SetBalance(value, transactor)
	s.metrics.CountMutation("set_balance", ok)
	if !ok {
		return nil, errors.ErrAccountFrozen
	}

	s.logger.Info("Balance set", "account_id", account.ID(), "balance", value.String(), "actor", transactor)
	return account, nil
}

func (s *AccountService) Freeze(accountID string) (*domain.Account, error) {
	account, err := s.byID(accountID)
	if err != nil {
		return nil, err
	}
	account.Freeze()
	s.logger.Info("Account frozen", "account_id", account.ID())
	return account, nil
}

func (s *AccountService) Unfreeze(accountID string) (*domain.Account, error) {
	account, err := s.byID(accountID)
	if err != nil {
		return nil, err
	}
	account.Unfreeze()
	s.logger.Info("Account unfrozen", "account_id", account.ID())
	return account, nil
}

func (s *AccountService) Rename(accountID, name string) (*domain.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewAppError(errors.InvalidInput, "name is required")
	}

	account, err := s.mutable(accountID)
	if err != nil {
		return nil, err
	}
	if !account.Rename(name) {
		return nil, errors.ErrAccountFrozen
	}

	s.logger.Info("Account renamed", "account_id", account.ID(), "account_name", name)
	return account, nil
}

func (s *AccountService) DeleteAccount(ctx context.Context, accountID string) error {
	account, err := s.byID(accountID)
	if err != nil {
		return err
	}

	s.registry.Delete(ctx, account.ID())
	s.logger.Info("Account deleted", "account_id", account.ID())
	return nil
}

// Join brings a participant online, creating its account on first join.
func (s *AccountService) Join(accountID, name string) (*domain.Account, bool, error) {
	if err := ensureReady(s.registry); err != nil {
		return nil, false, err
	}

	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, false, errors.ErrInvalidAccountID
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, errors.NewAppError(errors.InvalidInput, "name is required")
	}

	account, created := s.registry.Join(id, name)
	return account, created, nil
}

func (s *AccountService) Quit(accountID string) error {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return errors.ErrInvalidAccountID
	}
	s.registry.Quit(id)
	return nil
}

func (s *AccountService) IsOnline(id uuid.UUID) bool {
	return s.registry.IsOnline(id)
}

// Transactions lists persisted ledger rows, newest first. Entries still
// queued for the next flush are not included.
func (s *AccountService) Transactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, errors.ErrInvalidAccountID
	}
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	if limit > MaxTransactionLimit {
		limit = MaxTransactionLimit
	}

	txs, err := s.transactions.ListTransactions(ctx, id, limit)
	if err != nil {
		s.logger.Error("Failed to list transactions", "account_id", id, "error", err)
		return nil, err
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return txs, nil
}

func (s *AccountService) Top() []leaderboard.Entry {
	return s.leaderboard.Top()
}

func (s *AccountService) Format(amount decimal.Decimal) string {
	return s.currency.Format(amount)
}

func (s *AccountService) byID(accountID string) (*domain.Account, error) {
	return lookup(s.registry, accountID)
}

// mutable resolves an account and rejects it when frozen.
func (s *AccountService) mutable(accountID string) (*domain.Account, error) {
	account, err := s.byID(accountID)
	if err != nil {
		return nil, err
	}
	if account.IsFrozen() {
		return nil, errors.ErrAccountFrozen
	}
	return account, nil
}

func ensureReady(registry *cache.Registry) error {
	if !registry.Ready() {
		return errors.ErrCacheNotReady
	}
	return nil
}

func lookup(registry *cache.Registry, accountID string) (*domain.Account, error) {
	if err := ensureReady(registry); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, errors.ErrInvalidAccountID
	}

	account, ok := registry.Get(id)
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	return account, nil
}
