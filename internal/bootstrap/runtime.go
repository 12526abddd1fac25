// Package bootstrap initializes shared runtime dependencies.
package bootstrap

import (
	"fmt"

	"huddle/internal/cache"
	"huddle/internal/config"
	"huddle/internal/database"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitRuntime connects to the database and Redis. The Redis client is nil
// when the server is unreachable; callers degrade to single-instance mode.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return db, cache.GetClient(), nil
}
