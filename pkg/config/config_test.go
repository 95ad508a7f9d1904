package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strand-protocol/binn/pkg/binn"
)

func writeFile(t *testing.T, name, body string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  addr: 0.0.0.0:9000
  network: udp
  shutdown_timeout: 3s
store:
  type: etcd
  etcd:
    endpoints: [http://a:2379, http://b:2379]
log:
  level: debug
codec:
  strict_size: true
  pass_through_tags: [5, 16]
output_format: yaml
`, 0o600)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "udp", cfg.Server.Network)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, StoreEtcd, cfg.Store.Type)
	assert.Equal(t, []string{"http://a:2379", "http://b:2379"}, cfg.Store.Etcd.Endpoints)
	assert.Equal(t, "/binn/v1/docs/", cfg.Store.Etcd.Prefix, "unset fields keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Codec.StrictSize)
	assert.Equal(t, []int{5, 16}, cfg.Codec.PassThroughTags)
	assert.Equal(t, "yaml", cfg.OutputFormat)
	assert.NoError(t, cfg.Validate())
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
output_format = "json"

[server]
addr = "127.0.0.1:7000"
max_conns = 8

[store]
type = "postgres"

[store.postgres]
dsn = "postgres://binn@localhost/binn?sslmode=disable"
table = "docs"

[codec]
max_depth = 64
`, 0o600)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Server.MaxConns)
	assert.Equal(t, "tcp", cfg.Server.Network)
	assert.Equal(t, StorePostgres, cfg.Store.Type)
	assert.Equal(t, "docs", cfg.Store.Postgres.Table)
	assert.Equal(t, 64, cfg.Codec.MaxDepth)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.NoError(t, cfg.Validate())
}

func TestLoadParseError(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "server: [unterminated", 0o600))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.toml", "server = = 1", 0o600))
	assert.Error(t, err)
}

func TestLoadWarnsOnOpenPermissions(t *testing.T) {
	var buf bytes.Buffer
	prev := warnOut
	warnOut = &buf
	t.Cleanup(func() { warnOut = prev })

	_, err := Load(writeFile(t, "private.yaml", "log:\n  level: warn\n", 0o600))
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	_, err = Load(writeFile(t, "open.yaml", "log:\n  level: warn\n", 0o644))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "0644")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvServerAddr, "10.0.0.1:7420")
	t.Setenv(EnvStoreType, StoreEtcd)
	t.Setenv(EnvEtcdEndpoints, "http://e1:2379,http://e2:2379")
	t.Setenv(EnvPostgresDSN, "postgres://x")
	t.Setenv(EnvLogLevel, "error")

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "10.0.0.1:7420", cfg.Server.Addr)
	assert.Equal(t, StoreEtcd, cfg.Store.Type)
	assert.Equal(t, []string{"http://e1:2379", "http://e2:2379"}, cfg.Store.Etcd.Endpoints)
	assert.Equal(t, "postgres://x", cfg.Store.Postgres.DSN)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"network", func(c *Config) { c.Server.Network = "sctp" }},
		{"store type", func(c *Config) { c.Store.Type = "redis" }},
		{"etcd endpoints", func(c *Config) { c.Store.Type = StoreEtcd; c.Store.Etcd.Endpoints = nil }},
		{"postgres dsn", func(c *Config) { c.Store.Type = StorePostgres }},
		{"output", func(c *Config) { c.OutputFormat = "xml" }},
		{"tag range", func(c *Config) { c.Codec.PassThroughTags = []int{256} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRegistry(t *testing.T) {
	cfg := Default()
	cfg.Codec.PassThroughTags = []int{0x05, 0x10}
	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x10}, reg.Tags())

	v, err := binn.Decode([]byte{0x10, 0x01, 0xAB}, cfg.CodecOptions(reg)...)
	require.NoError(t, err)
	assert.Equal(t, binn.Custom{Tag: 0x10, Data: []byte{0xAB}}, v)

	cfg.Codec.PassThroughTags = []int{int(binn.TagList)}
	_, err = cfg.Registry()
	assert.ErrorIs(t, err, binn.ErrConfiguration)
}

func TestCodecOptionsStrictSize(t *testing.T) {
	// A list of one null declaring a size of 3 instead of 4.
	legacy := []byte{0xE0, 0x03, 0x01, 0x00}

	cfg := Default()
	_, err := binn.Decode(legacy, cfg.CodecOptions(nil)...)
	require.NoError(t, err)

	cfg.Codec.StrictSize = true
	_, err = binn.Decode(legacy, cfg.CodecOptions(nil)...)
	var fe *binn.FormatError
	assert.ErrorAs(t, err, &fe)
}
