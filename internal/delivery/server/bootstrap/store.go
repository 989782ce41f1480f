package bootstrap

import (
	"context"
	"fmt"

	serverApp "github.com/Amit95688/TDS/internal/delivery/server/app"
	"github.com/Amit95688/TDS/internal/delivery/server/ports"
	"github.com/Amit95688/TDS/internal/shared/config"
	"github.com/Amit95688/TDS/internal/shared/logging"
)

// StoreKind names the selected task store backend.
type StoreKind string

const (
	StorePostgres StoreKind = "postgres"
	StoreFile     StoreKind = "file"
	StoreMemory   StoreKind = "memory"
)

// SelectStoreKind picks postgres when a DATABASE_URL is set, then a snapshot
// file, then pure memory.
func SelectStoreKind(cfg config.StoreConfig) StoreKind {
	switch {
	case cfg.DatabaseURL != "":
		return StorePostgres
	case cfg.PersistencePath != "":
		return StoreFile
	default:
		return StoreMemory
	}
}

// OpenStore opens the configured task store. Postgres schemas are created on
// open so a fresh database is usable immediately.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger logging.Logger) (ports.TaskStore, StoreKind, error) {
	logger = logging.OrNop(logger)
	kind := SelectStoreKind(cfg)
	switch kind {
	case StorePostgres:
		store, err := serverApp.OpenPostgresTaskStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, kind, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, kind, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("[Bootstrap] Task store: postgres")
		return store, kind, nil
	case StoreFile:
		logger.Info("[Bootstrap] Task store: memory with snapshot file %s", cfg.PersistencePath)
		return serverApp.NewInMemoryTaskStore(serverApp.WithTaskPersistenceFile(cfg.PersistencePath)), kind, nil
	default:
		logger.Warn("[Bootstrap] Task store: memory only, tasks are lost on restart")
		return serverApp.NewInMemoryTaskStore(), kind, nil
	}
}
