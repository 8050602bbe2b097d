// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/VarshithSidhoju/sign-loginfull/internal/auth"
	"github.com/VarshithSidhoju/sign-loginfull/internal/auth/memory"
	"github.com/VarshithSidhoju/sign-loginfull/internal/auth/postgres"
	"github.com/VarshithSidhoju/sign-loginfull/internal/config"
	"github.com/VarshithSidhoju/sign-loginfull/internal/httpapi"
	"github.com/VarshithSidhoju/sign-loginfull/internal/observability"
	"github.com/VarshithSidhoju/sign-loginfull/internal/store"
)

const readinessTimeout = 2 * time.Second

// serveConfig holds flags that are not config keys.
type serveConfig struct {
	autoMigrate bool
	inMemory    bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API server. Metrics and health probes are served on a
separate address unless --metrics-addr is empty.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, cfg, nil)
		},
	}

	cmd.Flags().String("addr", ":5000", "API listen address")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("mode", "release", "server mode (debug, release or test)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	cmd.Flags().Duration("shutdown-timeout", 10*time.Second, "how long to drain in-flight requests")
	cmd.Flags().BoolVar(&cfg.autoMigrate, "auto-migrate", false, "apply pending migrations before serving")
	cmd.Flags().BoolVar(&cfg.inMemory, "in-memory", false, "keep users in memory instead of PostgreSQL (development only)")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, scfg *serveConfig, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.UserStoreFactory == nil {
		deps.UserStoreFactory = openPostgresStore
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(url string) (AutoMigrator, error) {
			return store.NewMigrator(url)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readiness observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, readiness, logger)
		}
	}

	cfg, err := config.Load(config.Options{File: configFile, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	if scfg.inMemory {
		err = prepareInMemory(cfg, logger)
	} else {
		err = cfg.ValidateServer()
	}
	if err != nil {
		return err
	}

	gin.SetMode(cfg.Server.Mode)
	logger.Info("starting signlogin server",
		"version", version,
		"addr", cfg.Server.Addr,
		"mode", cfg.Server.Mode,
		"in_memory", scfg.inMemory)

	users, err := openUserStore(ctx, cfg, scfg, deps, logger)
	if err != nil {
		return err
	}
	defer users.Close()

	tokens, err := auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	logger.Info("session tokens configured", "issuer", cfg.Auth.Issuer, "token_ttl", tokens.TTL())

	tp := newTracerProvider()
	defer shutdownTracing(tp, cfg.Server.ShutdownTimeout, logger)
	svc, err := auth.NewServiceWithLogger(users, auth.NewArgon2idHasher(), tokens, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, users.Ready, logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
		metrics = obsServer.Metrics()
	}

	router, err := httpapi.NewRouter(httpapi.Deps{
		Service:        svc,
		Verifier:       tokens,
		Metrics:        metrics,
		Logger:         logger,
		CORSOrigins:    cfg.Server.CORSOrigins,
		TracerProvider: tp,
	})
	if err != nil {
		stopObservability(obsServer, cfg.Server.ShutdownTimeout, logger)
		return err
	}

	api := httpapi.NewServer(cfg.Server.Addr, router, logger)
	apiErrCh, err := api.Start()
	if err != nil {
		stopObservability(obsServer, cfg.Server.ShutdownTimeout, logger)
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api", logger)

	cmd.Printf("signlogin listening on %s\n", api.Addr())
	if deps.OnReady != nil {
		deps.OnReady(api.Addr())
	}

	<-ctx.Done()
	logger.Info("shutting down", "drain_timeout", cfg.Server.ShutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
		shutdownErr = err
	}
	stopObservability(obsServer, cfg.Server.ShutdownTimeout, logger)

	logger.Info("shutdown complete")
	return shutdownErr
}

// prepareInMemory validates cfg for --in-memory, generating a throwaway
// JWT secret when none is configured.
func prepareInMemory(cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return oops.Code("SERVE_SECRET_FAILED").Wrap(err)
		}
		cfg.Auth.JWTSecret = hex.EncodeToString(buf)
		logger.Warn("no auth.jwt_secret configured; tokens will not survive a restart")
	}
	if len(cfg.Auth.JWTSecret) < config.MinSecretLength {
		return oops.Code("CONFIG_INVALID").With("key", "auth.jwt_secret").
			Errorf("auth.jwt_secret must be at least %d bytes", config.MinSecretLength)
	}
	return nil
}

func openUserStore(ctx context.Context, cfg *config.Config, scfg *serveConfig, deps *ServeDeps, logger *slog.Logger) (UserStore, error) {
	if scfg.inMemory {
		logger.Warn("using in-memory user store; accounts are lost on exit")
		return &memoryStore{UserRepository: memory.NewUserRepository()}, nil
	}

	if scfg.autoMigrate {
		if err := autoMigrate(cfg.Database.URL, deps.MigratorFactory, logger); err != nil {
			return nil, err
		}
	}

	return deps.UserStoreFactory(ctx, store.PoolConfig{
		URL:            cfg.Database.URL,
		MaxConns:       cfg.Database.MaxConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}, logger)
}

func autoMigrate(url string, factory func(string) (AutoMigrator, error), logger *slog.Logger) error {
	migrator, err := factory(url)
	if err != nil {
		return oops.With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	logger.Info("applying database migrations")
	if err := migrator.Up(); err != nil {
		return oops.With("operation", "auto-migrate").Wrap(err)
	}
	return nil
}

// postgresStore adapts a pgx pool to UserStore.
type postgresStore struct {
	*postgres.UserRepository
	pool  *pgxpool.Pool
	ready func() bool
}

func (s *postgresStore) Ready() bool { return s.ready() }
func (s *postgresStore) Close()      { s.pool.Close() }

func openPostgresStore(ctx context.Context, cfg store.PoolConfig, logger *slog.Logger) (UserStore, error) {
	pool, err := store.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &postgresStore{
		UserRepository: postgres.NewUserRepository(pool),
		pool:           pool,
		ready:          store.Readiness(pool, readinessTimeout),
	}, nil
}

type memoryStore struct {
	*memory.UserRepository
}

func (s *memoryStore) Ready() bool { return true }
func (s *memoryStore) Close()      {}

func stopObservability(srv ObservabilityServer, timeout time.Duration, logger *slog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server fails. It exits when the
// channel is closed or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

// newTracerProvider installs an SDK tracer provider and the W3C trace
// context propagator globally. No exporter is attached; spans exist so log
// lines carry trace_id and span_id for correlation.
func newTracerProvider() *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp
}

func shutdownTracing(tp *sdktrace.TracerProvider, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		logger.Warn("error stopping tracer provider", "error", err)
	}
}
