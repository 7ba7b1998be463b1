package inmem

import (
	"testing"

	"github.com/piecework/piecework/engine/storage"
	"github.com/piecework/piecework/engine/storage/test"
)

func TestInMemStorage(t *testing.T) {
	test.TestEngineStorage(t, func() storage.Storage { return New() })
}
