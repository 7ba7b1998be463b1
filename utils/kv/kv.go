// Package kv defines an interface for key-value stores and helpers for JSON records.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrKeyNotFound is returned by buckets when a key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// Bucket defines basic CRUD operations for key-value pairs in a single "namespace."
type Bucket interface {
	Get(ctx context.Context, k string) (v []byte, err error)
	Set(ctx context.Context, k string, v []byte) error
	Has(ctx context.Context, k string) (found bool, err error)
	Delete(ctx context.Context, k string) error
}

// TraversingBucket allows us to get a list of the keys in the bucket as well.
type TraversingBucket interface {
	Bucket
	// Keys returns the unordered keys in the bucket
	Keys(cancel <-chan struct{}) <-chan string
}

// SetMap iterates over m to set the keys in b and returns any error.
func SetMap(ctx context.Context, b Bucket, m map[string][]byte) error {
	var err error
	for k, v := range m {
		if err = b.Set(ctx, k, v); err != nil {
			return fmt.Errorf("setting %s: %w", k, err)
		}
	}
	return nil
}

// GetMap iterates over keys to get the values in b and returns any error.
func GetMap(ctx context.Context, b Bucket, keys []string) (map[string][]byte, error) {
	var err error
	ret := make(map[string][]byte)
	for _, k := range keys {
		if ret[k], err = b.Get(ctx, k); err != nil {
			return ret, fmt.Errorf("getting %s: %w", k, err)
		}
	}
	return ret, nil
}

// DeleteSlice deletes s keys from b.
func DeleteSlice(ctx context.Context, b Bucket, s []string) error {
	var err error
	for _, i := range s {
		if err = b.Delete(ctx, i); err != nil {
			return fmt.Errorf("deleting %s: %w", i, err)
		}
	}
	return nil
}

// SetJSON marshals v to JSON and stores it at k.
func SetJSON(ctx context.Context, b Bucket, k string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", k, err)
	}
	return b.Set(ctx, k, raw)
}

// GetJSON retrieves k and unmarshals the JSON into v.
// ErrKeyNotFound is returned (wrapped) when k does not exist.
func GetJSON(ctx context.Context, b Bucket, k string, v interface{}) error {
	ok, err := b.Has(ctx, k)
	if err != nil {
		return fmt.Errorf("checking %s: %w", k, err)
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, k)
	}
	raw, err := b.Get(ctx, k)
	if err != nil {
		return fmt.Errorf("getting %s: %w", k, err)
	}
	if err = json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", k, err)
	}
	return nil
}

// KeysPrefix collects the keys in b having prefix.
// The prefix is stripped from the returned keys.
func KeysPrefix(ctx context.Context, b TraversingBucket, prefix string) []string {
	cancel := make(chan struct{})
	defer close(cancel)
	var keys []string
	for k := range b.Keys(cancel) {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k[len(prefix):])
		}
	}
	return keys
}
