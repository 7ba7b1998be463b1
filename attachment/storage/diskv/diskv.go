// Package diskv implements attachment storage using the diskv key-value store.
package diskv

import (
	"path/filepath"

	"github.com/piecework/piecework/attachment/storage/kv"
	"github.com/piecework/piecework/utils/kv/kvdiskv"
)

// Diskv stores attachment metadata and content on disk.
type Diskv struct {
	*kv.KV
	*kv.Content
}

// New creates attachment storage under path.
func New(path string) *Diskv {
	return &Diskv{
		KV:      kv.New(kvdiskv.NewFlatBucket(filepath.Join(path, "attachment"), "meta")),
		Content: kv.NewContent(kvdiskv.NewFlatBucket(filepath.Join(path, "attachment"), "content")),
	}
}
