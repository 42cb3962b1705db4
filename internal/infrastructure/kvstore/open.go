package kvstore

import (
	"context"
	"fmt"

	"github.com/nerrad567/alice-bridge/internal/infrastructure/config"
	"github.com/nerrad567/alice-bridge/internal/infrastructure/database"
)

// Open builds the backend named in cfg.Backend.
//
// Parameters:
//   - ctx: Context for the initial Redis ping
//   - cfg: Store configuration
//   - db: Migrated database, required for the sqlite backend and ignored otherwise
//
// Returns:
//   - Store: The selected backend
//   - error: If the backend is unknown or cannot be reached
func Open(ctx context.Context, cfg config.StoreConfig, db *database.DB) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("%w: sqlite backend needs a database", ErrUnknownBackend)
		}
		return NewSQLite(db), nil
	case "redis":
		return NewRedis(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
