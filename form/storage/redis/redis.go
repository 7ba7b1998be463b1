// Package redis implements a form storage backend on Redis.
package redis

import (
	"time"

	"github.com/piecework/piecework/form/storage/kv"
	"github.com/piecework/piecework/utils/kv/kvredis"
	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed form storage backend.
type Redis struct {
	*kv.KV
}

// New creates a new form store in client.
// Form requests expire after requestTTL if it is greater than zero.
// Submissions and validations never expire.
func New(client redis.UniversalClient, requestTTL time.Duration) *Redis {
	var opts []kvredis.Option
	if requestTTL > 0 {
		opts = append(opts, kvredis.WithTTL(requestTTL))
	}
	return &Redis{KV: kv.New(
		kvredis.NewBucket(client, "piecework:form:request", opts...),
		kvredis.NewBucket(client, "piecework:form:submission"),
		kvredis.NewBucket(client, "piecework:form:validation"),
	)}
}
