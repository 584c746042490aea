package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	"economy/internal/cache"
	"economy/internal/config"
	"economy/internal/domain"
	"economy/internal/events/kafka"
	"economy/internal/handler"
	"economy/internal/leaderboard"
	"economy/internal/metrics"
	"economy/internal/repository"
	"economy/internal/repository/memory"
	"economy/internal/scheduler"
	"economy/internal/service"
	"economy/internal/writebehind"
)

// expirer is implemented by storage backends that can drop stale rows.
type expirer interface {
	Expire(ctx context.Context, accountsOlderThan, transactionsOlderThan time.Duration) (int64, int64, error)
}

// Server represents the HTTP server and the account cache behind it
type Server struct {
	router    *mux.Router
	server    *http.Server
	storage   domain.Storage
	registry  *cache.Registry
	board     *leaderboard.Aggregator
	snapshots *writebehind.SnapshotFlusher
	ledger    *writebehind.LedgerFlusher
	scheduler *scheduler.Scheduler
	publisher *kafka.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	port      string
}

// NewServer opens storage, loads every account and schedules the flush and
// leaderboard tasks. The tasks start with Start.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	storage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if e, ok := storage.(expirer); ok {
		if _, _, err := e.Expire(ctx, cfg.AccountExpiry(), cfg.TransactionExpiry()); err != nil {
			logger.Error("Failed to expire stale rows", "error", err)
		}
	}

	m := metrics.New()

	registry := cache.NewRegistry(storage.Account(), logger,
		cache.WithMetrics(m),
		cache.WithStartingBalance(cfg.StartingBalance),
		cache.WithDebug(cfg.Debug),
	)
	if err := registry.Initialize(ctx); err != nil {
		storage.Close()
		return nil, err
	}

	board := leaderboard.NewAggregator(registry, leaderboard.ParticipantsOnly(registry), cfg.LeaderboardSize, m, logger)
	board.Refresh()

	snapshots := writebehind.NewSnapshotFlusher(registry.DirtyQueue(), registry, storage.Account(), m, logger)
	ledger := writebehind.NewLedgerFlusher(registry.LedgerQueue(), storage.Transaction(), m, logger)

	var publisher *kafka.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		ledger.WithPublisher(publisher)
		logger.Info("Publishing ledger events", "brokers", cfg.KafkaBrokers)
	}

	sched := scheduler.New(logger)
	tasks := []struct {
		name   string
		period time.Duration
		run    func(context.Context)
	}{
		{"account-flush", cfg.AccountFlushInterval, func(ctx context.Context) { snapshots.Flush(ctx) }},
		{"ledger-flush", cfg.LedgerFlushInterval, func(ctx context.Context) { ledger.Flush(ctx) }},
		{"leaderboard-refresh", cfg.LeaderboardInterval, func(context.Context) { board.Refresh() }},
	}
	for _, task := range tasks {
		if err := sched.Every(task.name, task.period, task.run); err != nil {
			storage.Close()
			return nil, err
		}
	}

	accountService := service.NewAccountService(registry, storage.Transaction(), board, cfg, m, logger)
	transactionService := service.NewTransactionService(registry, m, logger)

	accountHandler := handler.NewAccountHandler(accountService)
	transactionHandler := handler.NewTransactionHandler(transactionService, accountHandler)

	s := &Server{
		storage:   storage,
		registry:  registry,
		board:     board,
		snapshots: snapshots,
		ledger:    ledger,
		scheduler: sched,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	// Account routes
	router.HandleFunc("/accounts", accountHandler.CreateAccount).Methods("POST")
	router.HandleFunc("/accounts/{account}", accountHandler.GetAccount).Methods("GET")
	router.HandleFunc("/accounts/{id}", accountHandler.DeleteAccount).Methods("DELETE")
	router.HandleFunc("/accounts/{id}/name", accountHandler.Rename).Methods("PUT")
	router.HandleFunc("/accounts/{id}/deposit", accountHandler.Deposit).Methods("POST")
	router.HandleFunc("/accounts/{id}/withdraw", accountHandler.Withdraw).Methods("POST")
	router.HandleFunc("/accounts/{id}/balance", accountHandler.SetBalance).Methods("PUT")
	router.HandleFunc("/accounts/{id}/freeze", accountHandler.Freeze).Methods("POST")
	router.HandleFunc("/accounts/{id}/unfreeze", accountHandler.Unfreeze).Methods("POST")
	router.HandleFunc("/accounts/{id}/transactions", accountHandler.Transactions).Methods("GET")

	// Presence routes
	router.HandleFunc("/players/{id}/join", accountHandler.Join).Methods("POST")
	router.HandleFunc("/players/{id}/quit", accountHandler.Quit).Methods("POST")

	router.HandleFunc("/payments", transactionHandler.Pay).Methods("POST")
	router.HandleFunc("/leaderboard", accountHandler.Leaderboard).Methods("GET")

	router.HandleFunc("/health", s.health).Methods("GET")
	router.Handle("/metrics", m.Handler()).Methods("GET")

	s.router = router
	return s, nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.Storage, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("Using in-memory storage, balances are lost on exit")
		return memory.NewStore(), nil
	case config.StoragePostgres:
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage)
	}

	db, err := sql.Open("postgres", cfg.GetDBConnectionString())
	if err != nil {
		return nil, err
	}

	// Flush tasks write one row at a time, so a small pool is enough
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Successfully connected to database")

	if err := repository.Migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return repository.NewStore(db, logger), nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !s.registry.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "account cache not loaded"})
		return
	}
	if err := s.storage.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"accounts":  s.registry.Len(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.statusCode,
				"duration", time.Since(start),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the scheduled tasks and the HTTP server on the specified port
func (s *Server) Start(port string) (string, error) {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.scheduler.Start()
	s.logger.Info("Starting server", "port", s.port)

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server failed to start", "error", err)
		}
	}()

	return s.port, nil
}

// Stop shuts the HTTP server down, stops the scheduled tasks, flushes both
// queues one last time and closes storage.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var firstErr error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}

	if err := s.scheduler.Stop(ctx); err != nil {
		s.logger.Warn("Scheduled tasks still running at shutdown", "error", err)
	}

	s.Flush(ctx)

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Error("Failed to close event publisher", "error", err)
		}
	}
	if err := s.storage.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Flush persists pending snapshots and ledger entries immediately.
func (s *Server) Flush(ctx context.Context) {
	s.snapshots.Flush(ctx)
	s.ledger.Flush(ctx)
}

// GetPort returns the port the server is listening on
func (s *Server) GetPort() string {
	return s.port
}

// GetBaseURL returns the base URL for the server
func (s *Server) GetBaseURL() string {
	return "http://localhost:" + s.port
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// Leaderboard returns the aggregator for testing purposes
func (s *Server) Leaderboard() *leaderboard.Aggregator {
	return s.board
}

// NewLogger builds the process logger. Tests listening on port 0 get a
// discarding logger.
func NewLogger(cfg *config.Config) *slog.Logger {
	if cfg.ServerPort == "0" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// StartServer starts the server with the given configuration
func StartServer(ctx context.Context, cfg *config.Config) (*Server, string, error) {
	logger := NewLogger(cfg)

	server, err := NewServer(ctx, cfg, logger)
	if err != nil {
		return nil, "", err
	}

	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		server.Stop(ctx)
		return nil, "", err
	}

	return server, port, nil
}
