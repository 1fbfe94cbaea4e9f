package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bank_ledger/internal/api"
	"bank_ledger/internal/api/middleware"
	"bank_ledger/internal/app/service"
	"bank_ledger/internal/common/security"
	"bank_ledger/internal/domain/repository"
	"bank_ledger/internal/platform/idempotency"
	"bank_ledger/internal/platform/queue"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database and repositories
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint: errcheck

	users := repository.NewUserRepository(db.Dialect)
	accounts := repository.NewAccountRepository(db.Dialect)

	// Services
	tokens := security.NewTokenIssuer([]byte(cfg.JWT.Secret), cfg.JWT.Expiration)
	ledger := service.NewLedgerService(db, users, accounts, service.NewGate(users), service.LedgerOptions{
		TxTimeout:        cfg.Ledger.TxTimeout,
		EnforceOwnership: cfg.Ledger.EnforceOwnership,
	})
	auth := service.NewAuthService(db, users, tokens)

	if _, err := ledger.Bootstrap(ctx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword); err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	// Idempotency keys live in Redis when it is configured.
	var store idempotency.Store
	if cfg.Redis.Enabled {
		rdb, err := queue.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer queue.CloseRedis(rdb)
		store = idempotency.NewRedisStore(rdb)
	} else {
		log.Debug("Redis disabled, keeping idempotency keys in memory")
		store = idempotency.NewMemoryStore(10 * time.Minute)
	}

	router := api.NewRouter(api.RouterDeps{
		AuthService:    auth,
		LedgerService:  ledger,
		Tokens:         tokens,
		Idempotency:    idempotency.NewGuard(store, cfg.Ledger.IdempotencyTTL),
		Callers:        middleware.CallerResolver{AllowParams: cfg.Ledger.AllowCallerParams},
		RequestTimeout: requestTimeout,
	})

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", "listen", cfg.Listen, "database", db.Dialect)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", cfg.Listen, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Info("Server stopped gracefully.")
		return nil
	})

	return g.Wait()
}
