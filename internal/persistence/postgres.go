package persistence

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/config"
)

// Postgres wraps the primary pool and an optional read replica pool.
type Postgres struct {
	Pool    *pgxpool.Pool
	Replica *pgxpool.Pool
}

// NewPostgres establishes connection pools when a DSN is provided. A nil Pool
// means the caller should fall back to the in-memory store.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; using in-memory store")
		return &Postgres{}, nil
	}

	primary, err := openPool(ctx, cfg.DSN, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to postgres")

	pg := &Postgres{Pool: primary}
	if cfg.ReplicaDSN != "" {
		replica, err := openPool(ctx, cfg.ReplicaDSN, cfg)
		if err != nil {
			logger.Warn("unable to reach postgres replica; reads use primary", zap.Error(err))
		} else {
			logger.Info("connected to postgres replica")
			pg.Replica = replica
		}
	}
	return pg, nil
}

func openPool(ctx context.Context, dsn string, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p == nil {
		return
	}
	if p.Replica != nil {
		p.Replica.Close()
	}
	if p.Pool != nil {
		p.Pool.Close()
	}
}

// Ping verifies the primary is reachable. A store without a pool is always ready.
func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return nil
	}
	return p.Pool.Ping(ctx)
}
