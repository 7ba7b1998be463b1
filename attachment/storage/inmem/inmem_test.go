package inmem

import (
	"testing"

	"github.com/piecework/piecework/attachment/storage/test"
)

func TestInMem(t *testing.T) {
	s := New()
	test.TestMetadataStorage(t, s)
	test.TestContentStorage(t, s)
}
