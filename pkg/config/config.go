// Package config loads the configuration shared by binnd and binnctl.
//
// A config file may be YAML (.yaml, .yml) or TOML (.toml). A missing file is
// not an error: Load returns the defaults. Selected fields can be overridden
// from the environment after the file is read.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/strand-protocol/binn/pkg/binn"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvServerAddr    = "BINN_SERVER_ADDR"
	EnvStoreType     = "BINN_STORE_TYPE"
	EnvEtcdEndpoints = "BINN_ETCD_ENDPOINTS"
	EnvPostgresDSN   = "BINN_POSTGRES_DSN"
	EnvLogLevel      = "BINN_LOG_LEVEL"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreEtcd     = "etcd"
	StorePostgres = "postgres"
)

// Config holds the binnd and binnctl configuration.
type Config struct {
	Server       ServerConfig `yaml:"server" toml:"server" json:"server"`
	Store        StoreConfig  `yaml:"store" toml:"store" json:"store"`
	Log          LogConfig    `yaml:"log" toml:"log" json:"log"`
	Codec        CodecConfig  `yaml:"codec" toml:"codec" json:"codec"`
	OutputFormat string       `yaml:"output_format" toml:"output_format" json:"output_format"`
}

// ServerConfig describes where the document server listens, and where
// binnctl finds it.
type ServerConfig struct {
	Addr            string        `yaml:"addr" toml:"addr" json:"addr"`
	Network         string        `yaml:"network" toml:"network" json:"network"`
	MetricsAddr     string        `yaml:"metrics_addr" toml:"metrics_addr" json:"metrics_addr"`
	MaxConns        int           `yaml:"max_conns" toml:"max_conns" json:"max_conns"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" json:"shutdown_timeout"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Type     string         `yaml:"type" toml:"type" json:"type"`
	Etcd     EtcdConfig     `yaml:"etcd" toml:"etcd" json:"etcd"`
	Postgres PostgresConfig `yaml:"postgres" toml:"postgres" json:"postgres"`
}

type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints" toml:"endpoints" json:"endpoints"`
	Prefix      string        `yaml:"prefix" toml:"prefix" json:"prefix"`
	DialTimeout time.Duration `yaml:"dial_timeout" toml:"dial_timeout" json:"dial_timeout"`
}

type PostgresConfig struct {
	DSN   string `yaml:"dsn" toml:"dsn" json:"dsn"`
	Table string `yaml:"table" toml:"table" json:"table"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"`
}

// CodecConfig tunes decoding. PassThroughTags lists custom tags whose
// payloads are accepted and kept as opaque values.
type CodecConfig struct {
	StrictSize      bool  `yaml:"strict_size" toml:"strict_size" json:"strict_size"`
	MaxDepth        int   `yaml:"max_depth" toml:"max_depth" json:"max_depth"`
	PassThroughTags []int `yaml:"pass_through_tags" toml:"pass_through_tags" json:"pass_through_tags"`
}

// warnOut receives the permission warning.
var warnOut io.Writer = os.Stderr

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:7420",
			Network:         "tcp",
			MaxConns:        256,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Type: StoreMemory,
			Etcd: EtcdConfig{
				Endpoints:   []string{"http://localhost:2379"},
				Prefix:      "/binn/v1/docs/",
				DialTimeout: 5 * time.Second,
			},
			Postgres: PostgresConfig{Table: "binn_documents"},
		},
		Log:          LogConfig{Level: "info", Format: "json"},
		OutputFormat: "table",
	}
}

// DefaultPath returns the default config file path: ~/.binn/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".binn", "config.yaml")
	}
	return filepath.Join(home, ".binn", "config.yaml")
}

// Load reads the configuration at path over the defaults. The file format
// follows the extension; anything other than .toml is read as YAML.
// If the file does not exist, Load returns the defaults with no error.
func Load(path string) (*Config, error) {
	cfg := Default()

	// The file may carry a postgres DSN with a password in it.
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		fmt.Fprintf(warnOut,
			"warning: config file %s has permissions %04o, expected 0600. "+
				"Store credentials may be exposed to other users.\n",
			path, perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the BINN_* environment variables that are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvServerAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvStoreType); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv(EnvEtcdEndpoints); v != "" {
		c.Store.Etcd.Endpoints = strings.Split(v, ",")
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Store.Postgres.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the fields that have a closed set of values.
func (c *Config) Validate() error {
	switch c.Server.Network {
	case "tcp", "udp":
	default:
		return fmt.Errorf("config: server.network %q (want tcp or udp)", c.Server.Network)
	}
	switch c.Store.Type {
	case StoreMemory:
	case StoreEtcd:
		if len(c.Store.Etcd.Endpoints) == 0 {
			return fmt.Errorf("config: store.etcd.endpoints is empty")
		}
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("config: store.postgres.dsn is empty")
		}
	default:
		return fmt.Errorf("config: store.type %q (want memory, etcd or postgres)", c.Store.Type)
	}
	switch c.OutputFormat {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("config: output_format %q (want table, json or yaml)", c.OutputFormat)
	}
	for _, tag := range c.Codec.PassThroughTags {
		if tag < 0 || tag > 0xFF {
			return fmt.Errorf("config: pass-through tag %d is not a byte", tag)
		}
	}
	return nil
}

// Registry builds a registry accepting each pass-through tag.
func (c *Config) Registry() (*binn.Registry, error) {
	reg := binn.NewRegistry()
	for _, tag := range c.Codec.PassThroughTags {
		if tag < 0 || tag > 0xFF {
			return nil, fmt.Errorf("config: pass-through tag %d is not a byte", tag)
		}
		if err := reg.RegisterTag(byte(tag)); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return reg, nil
}

// CodecOptions returns the decode options the configuration asks for.
func (c *Config) CodecOptions(reg *binn.Registry) []binn.Option {
	opts := []binn.Option{binn.WithRegistry(reg)}
	if c.Codec.StrictSize {
		opts = append(opts, binn.WithStrictSize())
	}
	if c.Codec.MaxDepth > 0 {
		opts = append(opts, binn.WithMaxDepth(c.Codec.MaxDepth))
	}
	return opts
}
