package store

import (
	"context"
	"os"
	"testing"

	"github.com/strand-protocol/binn/pkg/config"
	"github.com/strand-protocol/binn/pkg/logging"
)

// TestPostgresStore is an integration test. It requires a reachable database:
//
//	BINN_TEST_POSTGRES=postgres://binn@localhost/binn?sslmode=disable go test ./pkg/store/...
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("BINN_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("set BINN_TEST_POSTGRES to a postgres DSN to run postgres integration tests")
	}

	s, err := NewPostgresStore(context.Background(), config.PostgresConfig{
		DSN:   dsn,
		Table: "binn_documents_test",
	}, logging.Nop())
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer s.Close()

	testStore(t, s)
}
