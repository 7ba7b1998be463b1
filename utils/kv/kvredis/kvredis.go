// Package kvredis implements a key-value store backed by Redis.
package kvredis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/piecework/piecework/utils/kv"
	"github.com/redis/go-redis/v9"
)

// KVRedis is a key-value bucket stored in Redis under a key namespace.
type KVRedis struct {
	client redis.UniversalClient
	ns     string
	ttl    time.Duration
}

// Option configures a KVRedis bucket.
type Option func(*KVRedis)

// WithTTL expires every key written to the bucket after ttl.
func WithTTL(ttl time.Duration) Option {
	return func(s *KVRedis) {
		s.ttl = ttl
	}
}

// NewBucket creates a bucket whose keys are prefixed with namespace and a colon.
func NewBucket(client redis.UniversalClient, namespace string, opts ...Option) *KVRedis {
	s := &KVRedis{client: client, ns: namespace + ":"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient connects to the Redis server described by a redis:// URL.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

func (s *KVRedis) Get(ctx context.Context, k string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.ns+k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", kv.ErrKeyNotFound, k)
	}
	return v, err
}

func (s *KVRedis) Set(ctx context.Context, k string, v []byte) error {
	return s.client.Set(ctx, s.ns+k, v, s.ttl).Err()
}

func (s *KVRedis) Has(ctx context.Context, k string) (bool, error) {
	n, err := s.client.Exists(ctx, s.ns+k).Result()
	return n > 0, err
}

func (s *KVRedis) Delete(ctx context.Context, k string) error {
	return s.client.Del(ctx, s.ns+k).Err()
}

// Keys scans the namespace and sends the keys with the namespace removed.
// Scan errors end the traversal early.
func (s *KVRedis) Keys(cancel <-chan struct{}) <-chan string {
	r := make(chan string)
	go func() {
		defer close(r)
		ctx, stop := context.WithCancel(context.Background())
		defer stop()
		iter := s.client.Scan(ctx, 0, s.ns+"*", 100).Iterator()
		for iter.Next(ctx) {
			select {
			case <-cancel:
				return
			case r <- iter.Val()[len(s.ns):]:
			}
		}
	}()
	return r
}
