package bootstrap

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

	cacheadapter "github.com/opswork/platform/services/auth-service/internal/adapters/cache"
	eventadapter "github.com/opswork/platform/services/auth-service/internal/adapters/events"
	httpadapter "github.com/opswork/platform/services/auth-service/internal/adapters/http"
	"github.com/opswork/platform/services/auth-service/internal/adapters/memory"
	"github.com/opswork/platform/services/auth-service/internal/adapters/postgres"
	"github.com/opswork/platform/services/auth-service/internal/adapters/security"
	"github.com/opswork/platform/services/auth-service/internal/application"
	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("bootstrapping auth service",
		"http_port", cfg.HTTPPort,
		"storage_driver", cfg.StorageDriver,
	)

	defaultRole := domain.Role(cfg.DefaultRole)
	if !domain.ValidRole(defaultRole) {
		return nil, fmt.Errorf("invalid default role %q", cfg.DefaultRole)
	}

	var (
		repos       Repositories
		revocations ports.SessionRevocationStore
		cleanup     = func(context.Context) {}
	)
	switch cfg.StorageDriver {
	case StorageMemory:
		mem := memory.NewRepositories()
		repos = Repositories{
			Users:         mem.Users,
			Credentials:   mem.Credentials,
			Tokens:        mem.Tokens,
			Sessions:      mem.Sessions,
			LoginAttempts: mem.LoginAttempts,
			Outbox:        mem.Outbox,
			Idempotency:   mem.Idempotency,
		}
		revocations = memory.NewRevocationStore()
		logger.Warn("using in-memory storage, state will not survive a restart")
	default:
		db, connectErr := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if connectErr != nil {
			return nil, fmt.Errorf("connect postgres: %w", connectErr)
		}
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return nil, fmt.Errorf("gorm sql db: %w", dbErr)
		}
		if migrateErr := postgres.RunMigrations(ctx, db); migrateErr != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", migrateErr)
		}

		redisClient, redisErr := cacheadapter.Connect(ctx, cfg.RedisURL)
		if redisErr != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("connect redis: %w", redisErr)
		}
		if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("ping redis: %w", pingErr)
		}

		pg := postgres.NewRepositories(db)
		repos = Repositories{
			Users:         pg.Users,
			Credentials:   pg.Credentials,
			Tokens:        pg.Tokens,
			Sessions:      pg.Sessions,
			LoginAttempts: pg.LoginAttempts,
			Outbox:        pg.Outbox,
			Idempotency:   pg.Idempotency,
		}
		revocations = cacheadapter.NewRedisSessionRevocationStore(redisClient)
		cleanup = func(context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		}
	}

	var codec *security.HS256Codec
	if cfg.TokenSecret != "" {
		codec, err = security.NewHS256Codec(cfg.TokenSecret)
		if err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("init token codec: %w", err)
		}
	} else {
		logger.Warn("using an ephemeral signing secret, tokens will not survive a restart")
		codec, err = security.NewEphemeralHS256Codec()
		if err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("init ephemeral token codec: %w", err)
		}
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			DefaultRole:          defaultRole,
			AccessTokenTTL:       cfg.AccessTokenTTL,
			RefreshTokenTTL:      cfg.RefreshTokenTTL,
			EmailVerificationTTL: cfg.EmailVerificationTTL,
			PasswordResetTTL:     cfg.PasswordResetTTL,
			MagicLinkTTL:         cfg.MagicLinkTTL,
			FailedLoginThreshold: cfg.FailedThreshold,
			LockoutWindow:        cfg.LockoutWindow,
		},
		Users:         repos.Users,
		Credentials:   repos.Credentials,
		Tokens:        repos.Tokens,
		Sessions:      repos.Sessions,
		LoginAttempts: repos.LoginAttempts,
		Outbox:        repos.Outbox,
		Idempotency:   repos.Idempotency,
		Revocations:   revocations,
		Hasher:        security.NewBcryptHasher(cfg.BcryptCost),
		TokenCodec:    codec,
	})

	handler := httpadapter.NewHandler(svc)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	outbox := eventadapter.NewOutboxWorker(
		logger,
		repos.Outbox,
		eventadapter.NewLoggingPublisher(logger),
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxClaimTTL,
		cfg.OutboxMaxRetries,
	)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		outbox:     outbox,
		cleanupFn:  cleanup,
	}, nil
}

// Repositories is the storage-neutral repository set the composition root
// hands to the application layer.
type Repositories struct {
	Users         ports.UserRepository
	Credentials   ports.CredentialRepository
	Tokens        ports.VerificationTokenRepository
	Sessions      ports.SessionRepository
	LoginAttempts ports.LoginAttemptRepository
	Outbox        ports.OutboxRepository
	Idempotency   ports.IdempotencyRepository
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
