// Package diskv implements a form storage backend using the diskv key-value store.
package diskv

import (
	"github.com/piecework/piecework/form/storage/kv"
	"github.com/piecework/piecework/utils/kv/kvdiskv"
)

// Diskv is a diskv-backed form storage backend.
type Diskv struct {
	*kv.KV
}

// New creates a new form store on disk at path.
func New(path string) *Diskv {
	return &Diskv{KV: kv.New(
		kvdiskv.NewFlatBucket(path, "form", "request"),
		kvdiskv.NewFlatBucket(path, "form", "submission"),
		kvdiskv.NewFlatBucket(path, "form", "validation"),
	)}
}
