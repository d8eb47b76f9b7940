package engine

import (
	"context"
	"fmt"

	"github.com/celerix-dev/repairdesk/internal/db"
	"github.com/celerix-dev/repairdesk/internal/log"
)

// Open selects the storage backend: SQL when databaseURL is set, otherwise
// the embedded store persisted under dataDir. The returned close function
// flushes pending writes and releases the backend.
func Open(ctx context.Context, databaseURL, dataDir string, logger *log.Logger) (Store, func() error, error) {
	if logger == nil {
		logger = log.Nop()
	}

	if databaseURL != "" {
		d, err := db.Connect(ctx, databaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, d); err != nil {
			d.Close()
			return nil, nil, fmt.Errorf("migrate schema: %w", err)
		}
		logger.Info("using SQL storage", "driver", d.Driver)
		return NewSQLStore(d), d.Close, nil
	}

	persister, err := NewPersistence(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize persistence: %w", err)
	}
	snap, err := persister.LoadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("load data: %w", err)
	}
	store := NewMemStore(snap, persister, WithLogger(logger))
	logger.Info("using embedded storage", "data_dir", dataDir,
		"categories", len(snap.Categories), "admins", len(snap.Admins))
	return store, func() error { store.Wait(); return nil }, nil
}
