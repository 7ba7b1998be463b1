package mysql

import (
	"context"
	"os"
	"testing"

	"github.com/piecework/piecework/form/storage"
	"github.com/piecework/piecework/form/storage/test"
)

func TestMySQLStorage(t *testing.T) {
	testDSN := os.Getenv("PIECEWORK_MYSQL_STORAGE_TEST_DSN")
	if testDSN == "" {
		t.Skip("PIECEWORK_MYSQL_STORAGE_TEST_DSN not set")
	}

	test.TestFormStorage(t, func() (storage.Storage, error) {
		s, err := New(WithDSN(testDSN))
		if err != nil {
			return nil, err
		}
		for _, table := range []string{"form_requests", "form_submissions", "form_validations"} {
			if _, err = s.db.ExecContext(context.Background(), "DELETE FROM "+table+";"); err != nil {
				return nil, err
			}
		}
		return s, nil
	})
}
