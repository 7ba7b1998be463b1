// Package diskv implements a task engine storage backend using the diskv key-value store.
package diskv

import (
	"path/filepath"

	"github.com/piecework/piecework/engine/storage/kv"
	"github.com/piecework/piecework/utils/kv/kvdiskv"
)

// Diskv is a diskv-backed task engine storage backend.
type Diskv struct {
	*kv.KV
}

func New(path string) *Diskv {
	return &Diskv{KV: kv.New(
		kvdiskv.NewFlatBucket(filepath.Join(path, "engine"), "instance"),
		kvdiskv.NewFlatBucket(filepath.Join(path, "engine"), "task"),
	)}
}
