// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/VarshithSidhoju/sign-loginfull/internal/auth"
	"github.com/VarshithSidhoju/sign-loginfull/internal/observability"
	"github.com/VarshithSidhoju/sign-loginfull/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// UserStoreFactory opens the credential store.
	// Default: a pgx pool from store.Connect wrapped in postgres.NewUserRepository.
	UserStoreFactory func(ctx context.Context, cfg store.PoolConfig, logger *slog.Logger) (UserStore, error)

	// MigratorFactory creates a migrator for --auto-migrate.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (AutoMigrator, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readiness observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// OnReady is called with the bound API address once serving.
	OnReady func(apiAddr string)
}

// UserStore is a credential store with a health check and a lifetime.
type UserStore interface {
	auth.UserRepository
	// Ready reports whether the store can serve requests.
	Ready() bool
	Close()
}

// AutoMigrator is the part of store.Migrator used at startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ObservabilityServer is the part of observability.Server used by serve.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

var (
	_ AutoMigrator        = (*store.Migrator)(nil)
	_ ObservabilityServer = (*observability.Server)(nil)
)
