package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/streameval/internal/config"
	"github.com/foxseedlab/streameval/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
)

const databaseInitTimeout = 15 * time.Second

// pool wraps pgxpool so the injector closes it on shutdown.
type pool struct {
	*pgxpool.Pool
}

func (p *pool) Shutdown() {
	p.Close()
}

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*pool, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()

		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := RunMigration(ctx, p); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to run migration: %w", err)
		}
		slog.Debug("database ready", "statements", len(migrationStatements))
		return &pool{Pool: p}, nil
	})
	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		p := do.MustInvoke[*pool](i)
		return NewPostgresRepository(p.Pool), nil
	})
}
