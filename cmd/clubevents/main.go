package main

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

	"github.com/google/uuid"

	"github.com/example/club-registration/internal/application"
	"github.com/example/club-registration/internal/config"
	httptransport "github.com/example/club-registration/internal/http"
	"github.com/example/club-registration/internal/logging"
	"github.com/example/club-registration/internal/persistence"
	"github.com/example/club-registration/internal/persistence/memory"
	"github.com/example/club-registration/internal/persistence/postgres"
	"github.com/example/club-registration/internal/persistence/sqlite"
	"github.com/example/club-registration/internal/persistence/sqlite/migration"
)

func main() {
	os.Exit(run())
}

// run serves until SIGINT or SIGTERM and returns the process exit code.
// Deferred cleanup always runs before main exits.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, slog.LevelInfo).Error("failed to load configuration", "error", err)
		return 1
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "driver", cfg.StorageDriver, "error", err)
		return 1
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	handler, err := buildHandler(ctx, cfg, store, application.DefaultPasswordHasher(), logger)
	if err != nil {
		logger.Error("failed to build HTTP handler", "error", err)
		return 1
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return serve(ctx, server, server.ListenAndServe, logger)
}

// serve runs listen until it fails or ctx is cancelled, then shuts server down
// within 10 seconds.
func serve(ctx context.Context, server *http.Server, listen func() error, logger *slog.Logger) int {
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("club events API listening", "addr", server.Addr)
	if err := listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return 1
	}
	<-shutdownDone
	return 0
}

// openStorage opens and migrates the store selected by cfg.StorageDriver.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Storage, error) {
	var (
		store persistence.Storage
		err   error
	)
	switch cfg.StorageDriver {
	case config.DriverMemory:
		store = memory.New()
	case config.DriverPostgres:
		store, err = postgres.Open(ctx, cfg.PostgresDSN, logger)
	case config.DriverSQLite, "":
		store, err = sqlite.OpenWithConfig(migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, nil
}

// buildHandler wires services and handlers over store and bootstraps the
// configured administrator account.
func buildHandler(ctx context.Context, cfg config.Config, store persistence.Storage, hasher application.PasswordHasher, logger *slog.Logger) (http.Handler, error) {
	now := time.Now
	idGenerator := uuid.NewString

	catalog, err := application.NewEventCatalog(store, cfg.EventCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create event catalog: %w", err)
	}

	userService := application.NewUserServiceWithLogger(store, hasher, idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(store, []byte(cfg.TokenSecret), nil, now, cfg.TokenTTL, logger)
	eventService := application.NewEventServiceWithLogger(catalog, store, idGenerator, now, logger)
	registrationService := application.NewRegistrationServiceWithLogger(catalog, store, idGenerator, now, logger)

	if cfg.AdminEmail != "" {
		admin, err := userService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("bootstrap administrator: %w", err)
		}
		logger.Info("administrator account ready", "user_id", admin.ID)
	}

	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(authService, userService, logger),
		Users:          httptransport.NewUserHandler(userService, logger),
		Events:         httptransport.NewEventHandler(eventService, logger),
		Registrations:  httptransport.NewRegistrationHandler(registrationService, logger),
		Tokens:         authService,
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
		StaticDir:      cfg.StaticDir,
	}), nil
}
