package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the shared redis client and owns the key namespace so every
// queue and cache key this service touches lives under one prefix.
type Redis struct {
	Client    *redis.Client
	namespace string
}

// NewRedis connects to redis with short timeouts, namespacing keys under
// "schoolhub".
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client, namespace: "schoolhub"}
}

// QueueKey returns the namespaced list key for a queue.
func (r *Redis) QueueKey(name string) string {
	return r.namespace + ":" + name
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}
