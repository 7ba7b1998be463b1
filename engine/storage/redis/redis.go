// Package redis implements a task engine storage backend on Redis.
package redis

import (
	"github.com/piecework/piecework/engine/storage/kv"
	"github.com/piecework/piecework/utils/kv/kvredis"
	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed task engine storage backend.
type Redis struct {
	*kv.KV
}

func New(client redis.UniversalClient) *Redis {
	return &Redis{KV: kv.New(
		kvredis.NewBucket(client, "piecework:engine:instance"),
		kvredis.NewBucket(client, "piecework:engine:task"),
	)}
}
