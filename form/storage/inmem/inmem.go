// Package inmem implements an in-memory form storage backend.
package inmem

import (
	"github.com/piecework/piecework/form/storage/kv"
	"github.com/piecework/piecework/utils/kv/kvmap"
)

// InMem is a form storage backend using an in-memory key-value store.
type InMem struct {
	*kv.KV
}

func New() *InMem {
	return &InMem{KV: kv.New(
		kvmap.NewBucket(),
		kvmap.NewBucket(),
		kvmap.NewBucket(),
	)}
}
