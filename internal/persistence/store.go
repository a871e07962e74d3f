package persistence

import (
	"github.com/spec-kit/dispatch-service/internal/config"
	"github.com/spec-kit/dispatch-service/internal/repository"
	"github.com/spec-kit/dispatch-service/internal/repository/memory"
)

// OpenStore returns the Postgres-backed store when a primary pool is
// connected and the in-memory store otherwise.
func OpenStore(pg *Postgres, cfg config.PostgresConfig) repository.Store {
	if pg == nil || pg.Pool == nil {
		return memory.NewStore(memory.Options{LockTimeout: cfg.LockTimeout()})
	}
	return repository.NewPostgresStore(pg.Pool, repository.PostgresOptions{
		Replica:     pg.Replica,
		LockTimeout: cfg.LockTimeout(),
	})
}
