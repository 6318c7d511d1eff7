package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/storefront"
	"github.com/giantswarm/storefront/instrumentation"
	"github.com/giantswarm/storefront/storage"
	"github.com/giantswarm/storefront/storage/memory"
	"github.com/giantswarm/storefront/storage/redis"
	"github.com/giantswarm/storefront/storage/sqlstore"
	"github.com/giantswarm/storefront/storage/valkey"
)

const shutdownTimeout = 30 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	StaticDir string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP server",
		Long: `Run the storefront HTTP server until SIGINT or SIGTERM.

Configuration is read from the --config file and the environment
(ADMIN_USERNAME, ADMIN_PASSWORD_HASH, STORAGE_BACKEND, DATABASE_DSN, ...).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.StaticDir, "static-dir", "", "directory serving the checkout and admin pages")

	return cmd
}

func runServe(ctx context.Context, rootOpts *RootOptions, opts *ServeOptions, cmd *cobra.Command) error {
	logger := rootOpts.Logger(cmd.ErrOrStderr())

	config, err := storefront.LoadConfig(rootOpts.ConfigPath)
	if err != nil {
		return err
	}
	config.Logger = logger

	inst, err := instrumentation.New(instrumentation.Config{
		ServiceVersion:  config.Instrumentation.ServiceVersion,
		Enabled:         config.Instrumentation.Enabled,
		MetricsExporter: config.Instrumentation.MetricsExporter,
		LogClientIPs:    config.Instrumentation.LogClientIPs,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize instrumentation: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := inst.Shutdown(shutdownCtx); err != nil {
			logger.Error("Instrumentation shutdown error", "error", err)
		}
	}()

	stores, err := openStores(ctx, config, inst, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	var pages http.Handler
	if opts.StaticDir != "" {
		pages = http.FileServer(http.Dir(opts.StaticDir))
	}

	srv, err := storefront.NewServer(config, storefront.Dependencies{
		Counters:        stores.counters,
		Sessions:        stores.sessions,
		Products:        stores.products,
		Orders:          stores.orders,
		Instrumentation: inst,
		Pages:           pages,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              config.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Storefront server starting", "addr", config.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// backendStores are the stores a server runs on, plus how to release them.
type backendStores struct {
	counters storage.CounterStore
	sessions storage.SessionStore
	products storage.ProductStore
	orders   storage.OrderStore
	closers  []func()
}

// Close releases the stores in reverse order of opening.
func (b *backendStores) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openStores opens the counter and session backend selected by
// config.Storage and the catalog store selected by config.Database.
func openStores(ctx context.Context, config *storefront.Config, inst *instrumentation.Instrumentation, logger *slog.Logger) (*backendStores, error) {
	b := &backendStores{}

	switch config.Storage.Backend {
	case storefront.BackendValkey:
		store, err := valkey.New(valkey.Config{
			Address:   config.Storage.ValkeyAddr,
			Password:  config.Storage.Password,
			KeyPrefix: config.Storage.KeyPrefix,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		b.counters, b.sessions = store, store
		b.closers = append(b.closers, store.Close)

	case storefront.BackendRedis:
		store, err := redis.New(redis.Config{
			Addr:      config.Storage.RedisAddr,
			Password:  config.Storage.Password,
			KeyPrefix: config.Storage.KeyPrefix,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		b.counters, b.sessions = store, store
		b.closers = append(b.closers, func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close redis client", "error", err)
			}
		})

	default:
		counters := memory.NewCounterStore(memory.CounterStoreConfig{
			MaxEntries:    config.RateLimit.MaxEntries,
			SweepInterval: config.RateLimit.SweepInterval,
			Logger:        logger,
		})
		if err := inst.RegisterCounterEntriesCallback(func() int64 {
			return int64(counters.Len())
		}); err != nil {
			logger.Warn("Failed to register rate limit gauge", "error", err)
		}
		sessions := memory.New()
		sessions.SetLogger(logger)
		b.counters, b.sessions = counters, sessions
		b.closers = append(b.closers, counters.Stop, sessions.Stop)
	}

	if config.Database.Driver == "" {
		catalog := memory.New()
		catalog.SetLogger(logger)
		b.products, b.orders = catalog, catalog
		b.closers = append(b.closers, catalog.Stop)
		logger.Warn("No database configured, catalog and orders are kept in memory")
		return b, nil
	}

	db, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: config.Database.Driver,
		DSN:    config.Database.DSN,
		Logger: logger,
	})
	if err != nil {
		b.Close()
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		b.Close()
		return nil, err
	}
	b.products, b.orders = db, db
	b.closers = append(b.closers, func() {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close database", "error", err)
		}
	})

	return b, nil
}
