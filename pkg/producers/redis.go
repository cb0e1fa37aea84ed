package producers

import (
	"github.com/redis/go-redis/v9"

	"github.com/netbox-metrics/pkg/config"
)

// NewRedisClient RQ 所在的 Redis
func NewRedisClient(cfg *config.RedisConfig) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
