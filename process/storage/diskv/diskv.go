// Package diskv implements a process storage backend using the diskv key-value store.
package diskv

import (
	"github.com/piecework/piecework/process/storage/kv"
	"github.com/piecework/piecework/utils/kv/kvdiskv"
)

// Diskv is a diskv-backed process storage backend.
type Diskv struct {
	*kv.KV
}

// New creates a new process store on disk at path.
func New(path string) *Diskv {
	return &Diskv{KV: kv.New(kvdiskv.NewFlatBucket(path, "process"))}
}
