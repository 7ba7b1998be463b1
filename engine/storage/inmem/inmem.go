// Package inmem implements a task engine storage backend using a map-based key-value store.
package inmem

import (
	"github.com/piecework/piecework/engine/storage/kv"
	"github.com/piecework/piecework/utils/kv/kvmap"
)

// InMem is an in-memory task engine storage backend.
type InMem struct {
	*kv.KV
}

func New() *InMem {
	return &InMem{KV: kv.New(kvmap.NewBucket(), kvmap.NewBucket())}
}
