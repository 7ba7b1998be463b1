package inmem

import (
	"testing"

	"github.com/piecework/piecework/form/storage"
	"github.com/piecework/piecework/form/storage/test"
)

func TestInMem(t *testing.T) {
	test.TestFormStorage(t, func() (storage.Storage, error) { return New(), nil })
}
