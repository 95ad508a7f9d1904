package store

import (
	"os"
	"strings"
	"testing"

	"github.com/strand-protocol/binn/pkg/config"
	"github.com/strand-protocol/binn/pkg/logging"
)

// TestEtcdStore is an integration test. It requires a running etcd cluster:
//
//	BINN_TEST_ETCD=http://localhost:2379 go test ./pkg/store/...
func TestEtcdStore(t *testing.T) {
	addr := os.Getenv("BINN_TEST_ETCD")
	if addr == "" {
		t.Skip("set BINN_TEST_ETCD=http://localhost:2379 to run etcd integration tests")
	}

	s, err := NewEtcdStore(config.EtcdConfig{
		Endpoints: strings.Split(addr, ","),
		Prefix:    "/binn-test/docs",
	}, logging.Nop())
	if err != nil {
		t.Fatalf("NewEtcdStore: %v", err)
	}
	defer s.Close()

	if s.prefix != "/binn-test/docs/" {
		t.Errorf("prefix = %q, want trailing slash", s.prefix)
	}
	testStore(t, s)
}
