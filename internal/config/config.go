package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	ServerPort string
	Storage    string

	AccountFlushInterval time.Duration
	LedgerFlushInterval  time.Duration
	LeaderboardInterval  time.Duration
	LeaderboardSize      int

	StartingBalance       decimal.Decimal
	AccountExpireDays     int
	TransactionExpireDays int
	Debug                 bool

	KafkaBrokers []string
	KafkaTopic   string

	Currency Currency
}

// Load reads .env when present, then the process environment. Malformed
// values fall back to their defaults.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "economy"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		Storage:    strings.ToLower(getEnv("STORAGE_TYPE", StoragePostgres)),

		AccountFlushInterval: getDuration("ACCOUNT_FLUSH_INTERVAL", 30*time.Second),
		LedgerFlushInterval:  getDuration("LEDGER_FLUSH_INTERVAL", 30*time.Second),
		LeaderboardInterval:  getDuration("LEADERBOARD_INTERVAL", 30*time.Second),
		LeaderboardSize:      getInt("LEADERBOARD_SIZE", 10),

		StartingBalance:       getDecimal("STARTING_BALANCE", decimal.Zero),
		AccountExpireDays:     getInt("ACCOUNT_EXPIRE_DAYS", 0),
		TransactionExpireDays: getInt("TRANSACTION_EXPIRE_DAYS", 0),
		Debug:                 getBool("DEBUG", false),

		KafkaBrokers: getList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", ""),

		Currency: DefaultCurrency(),
	}

	if path := os.Getenv("CURRENCY_FILE"); path != "" {
		if c, err := LoadCurrency(path); err == nil {
			cfg.Currency = c
		}
	}

	return cfg
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

// AccountExpiry is zero when account expiry is disabled.
func (c *Config) AccountExpiry() time.Duration {
	return days(c.AccountExpireDays)
}

// TransactionExpiry is zero when transaction expiry is disabled.
func (c *Config) TransactionExpiry() time.Duration {
	return days(c.TransactionExpireDays)
}

func days(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * 24 * time.Hour
}

// Currency names the single currency balances are denominated in.
type Currency struct {
	Name         string `yaml:"name"`
	NameSingular string `yaml:"name_singular"`
	NamePlural   string `yaml:"name_plural"`
	Symbol       string `yaml:"symbol"`
}

func DefaultCurrency() Currency {
	return Currency{
		Name:         "crowns",
		NameSingular: "crown",
		NamePlural:   "crowns",
		Symbol:       "♛",
	}
}

// LoadCurrency reads a YAML currency file. Missing fields keep their defaults.
func LoadCurrency(path string) (Currency, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Currency{}, fmt.Errorf("read currency file: %w", err)
	}

	c := DefaultCurrency()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Currency{}, fmt.Errorf("parse currency file %s: %w", path, err)
	}
	return c, nil
}

// Format renders amount as symbol, amount and the singular name when amount
// is exactly one, the plural name otherwise.
func (c Currency) Format(amount decimal.Decimal) string {
	name := c.NamePlural
	if amount.Equal(decimal.NewFromInt(1)) {
		name = c.NameSingular
	}
	return fmt.Sprintf("%s%s %s", c.Symbol, amount.String(), name)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func getDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if d, err := decimal.NewFromString(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
