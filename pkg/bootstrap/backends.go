package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-verification/pkg/cleanup"
	"github.com/tendant/simple-verification/pkg/config"
	"github.com/tendant/simple-verification/pkg/emailverification"
	"github.com/tendant/simple-verification/pkg/identity"
	"github.com/tendant/simple-verification/pkg/identityverification"
	"github.com/tendant/simple-verification/pkg/inmem"
)

// Repositories bundles the storage the services need, backed by one store
type Repositories struct {
	Type                  config.PersistenceType
	Identities            identity.Repository
	EmailVerifications    emailverification.Repository
	IdentityVerifications identityverification.Repository
	Cleanup               cleanup.Store

	pool *pgxpool.Pool
}

// Close releases the connection pool, if any
func (r *Repositories) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// Ping checks the backing store is reachable
func (r *Repositories) Ping(ctx context.Context) error {
	if r.pool == nil {
		return nil
	}
	return r.pool.Ping(ctx)
}

// OpenRepositories connects to the configured persistence backend
func OpenRepositories(ctx context.Context, cfg config.PersistenceConfig, db config.DatabaseConfig) (*Repositories, error) {
	switch cfg.Type {
	case config.PersistencePostgres:
		pool, err := pgxpool.New(ctx, db.ToDatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to connect to database %s:%d/%s: %w", db.Host, db.Port, db.Database, err)
		}
		slog.Info("Connected to PostgreSQL", "host", db.Host, "database", db.Database)
		return NewPostgresRepositories(pool), nil

	case config.PersistenceMemory:
		var store *inmem.DB
		if cfg.DataDir == "" {
			store = inmem.New()
		} else {
			var err error
			if store, err = inmem.Open(cfg.DataDir); err != nil {
				return nil, fmt.Errorf("failed to open in-memory store: %w", err)
			}
		}
		slog.Info("Using in-memory persistence", "data_dir", cfg.DataDir)
		return NewMemoryRepositories(store), nil
	}
	return nil, fmt.Errorf("unsupported persistence type %q", cfg.Type)
}

// NewPostgresRepositories wraps an existing pool. Close closes the pool.
func NewPostgresRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Type:                  config.PersistencePostgres,
		Identities:            identity.NewPostgresRepository(pool),
		EmailVerifications:    emailverification.NewPostgresRepository(pool),
		IdentityVerifications: identityverification.NewPostgresRepository(pool),
		Cleanup:               cleanup.NewPostgresStore(pool),
		pool:                  pool,
	}
}

// NewMemoryRepositories exposes the views of one in-memory store
func NewMemoryRepositories(store *inmem.DB) *Repositories {
	return &Repositories{
		Type:                  config.PersistenceMemory,
		Identities:            store.Identities(),
		EmailVerifications:    store.EmailVerifications(),
		IdentityVerifications: store.IdentityVerifications(),
		Cleanup:               store.Cleanup(),
	}
}
