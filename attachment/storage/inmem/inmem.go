// Package inmem implements in-memory attachment storage.
package inmem

import (
	"github.com/piecework/piecework/attachment/storage/kv"
	"github.com/piecework/piecework/utils/kv/kvmap"
)

// InMem stores attachment metadata and content in memory.
type InMem struct {
	*kv.KV
	*kv.Content
}

func New() *InMem {
	return &InMem{
		KV:      kv.New(kvmap.NewBucket()),
		Content: kv.NewContent(kvmap.NewBucket()),
	}
}
