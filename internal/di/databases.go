package di

import (
	"fmt"

	"github.com/aristath/sectorwatch/internal/config"
	"github.com/aristath/sectorwatch/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens cache.db and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// cache.db - upstream data that can always be refetched
	cacheDB, err := database.New(database.Config{
		Path:    cfg.CachePath(),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	if err := cacheDB.Migrate(); err != nil {
		cacheDB.Close()
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}

	log.Info().Str("path", cacheDB.Path()).Msg("Cache database ready")

	return container, nil
}
