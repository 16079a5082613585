package ratelimit

import (
	"net"
	"strconv"

	"github.com/gofiber/storage/redis"

	"github.com/pulseboard/pulseboard/internal/pkg/cache"
	"github.com/pulseboard/pulseboard/internal/pkg/env"
)

var storage *redis.Storage

// NewStorage builds the Redis-backed storage the API rate limiter counts
// against, so limits hold across instances. Connection details come from
// the existing cache client where available.
func NewStorage() *redis.Storage {
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	// Limiter counters live in database 1, away from the cache in DB 0.
	storage = redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})

	return storage
}

func GetStorage() *redis.Storage {
	return storage
}
