package redis

import (
	"context"
	"os"
	"testing"

	"github.com/piecework/piecework/engine/storage"
	"github.com/piecework/piecework/engine/storage/test"
	"github.com/piecework/piecework/utils/kv/kvredis"
)

func TestRedis(t *testing.T) {
	url := os.Getenv("PIECEWORK_REDIS_TEST_URL")
	if url == "" {
		t.Skip("PIECEWORK_REDIS_TEST_URL not set")
	}
	client, err := kvredis.NewClient(context.Background(), url)
	if err != nil {
		t.Fatal(err)
	}
	if err = client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatal(err)
	}
	test.TestEngineStorage(t, func() storage.Storage { return New(client) })
}
