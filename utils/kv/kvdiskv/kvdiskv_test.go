package kvdiskv

import (
	"testing"

	"github.com/piecework/piecework/utils/kv/test"
)

func TestKVDiskv(t *testing.T) {
	test.TestBucket(t, NewFlatBucket(t.TempDir(), "bucket"))
}
