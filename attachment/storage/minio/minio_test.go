package minio

import (
	"context"
	"os"
	"testing"

	"github.com/piecework/piecework/attachment/storage/test"
)

func TestMinIO(t *testing.T) {
	endpoint := os.Getenv("PIECEWORK_MINIO_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("PIECEWORK_MINIO_TEST_ENDPOINT not set")
	}
	m, err := New(context.Background(), Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("PIECEWORK_MINIO_TEST_ACCESS_KEY"),
		SecretKey: os.Getenv("PIECEWORK_MINIO_TEST_SECRET_KEY"),
		Bucket:    "piecework-test",
	})
	if err != nil {
		t.Fatal(err)
	}
	test.TestContentStorage(t, m)
}
