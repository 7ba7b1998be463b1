// Package inmem implements an in-memory process storage backend.
package inmem

import (
	"github.com/piecework/piecework/process/storage/kv"
	"github.com/piecework/piecework/utils/kv/kvmap"
)

// InMem is a process storage backend using an in-memory key-value store.
type InMem struct {
	*kv.KV
}

func New() *InMem {
	return &InMem{KV: kv.New(kvmap.NewBucket())}
}
