package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/strand-protocol/binn/pkg/config"
)

// DefaultPostgresTable holds documents when the configuration names none.
const DefaultPostgresTable = "binn_documents"

// PostgresStore keeps documents in a bytea column keyed by text.
type PostgresStore struct {
	pool  *sql.DB
	table string
	log   *zap.Logger
}

// NewPostgresStore opens a connection pool for cfg.DSN and creates the
// document table if it does not exist.
func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: postgres open: %w", err)
	}
	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(5)
	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: postgres ping: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = DefaultPostgresTable
	}
	s := &PostgresStore{pool: pool, table: pq.QuoteIdentifier(table), log: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("postgres store ready", zap.String("table", table))
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		key        TEXT PRIMARY KEY,
		doc        BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("store: postgres migrate %s: %w", s.table, err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, doc []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := s.pool.ExecContext(ctx,
		`INSERT INTO `+s.table+` (key, doc, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		key, doc)
	if err != nil {
		return fmt.Errorf("store: postgres put %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, key string, doc []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	res, err := s.pool.ExecContext(ctx,
		`INSERT INTO `+s.table+` (key, doc) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		key, doc)
	if err != nil {
		return fmt.Errorf("store: postgres create %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: postgres create %q: %w", key, err)
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var doc []byte
	err := s.pool.QueryRowContext(ctx, `SELECT doc FROM `+s.table+` WHERE key = $1`, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: postgres get %q: %w", key, err)
	}
	return doc, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	res, err := s.pool.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("store: postgres delete %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: postgres delete %q: %w", key, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List matches the prefix with LIKE; a NULL limit means LIMIT ALL.
func (s *PostgresStore) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	rows, err := s.pool.QueryContext(ctx,
		`SELECT key FROM `+s.table+` WHERE key LIKE $1 ESCAPE '\' ORDER BY key COLLATE "C" LIMIT $2`,
		likePrefix(prefix), lim)
	if err != nil {
		return nil, fmt.Errorf("store: postgres list %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("store: postgres list %q: %w", prefix, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: postgres list %q: %w", prefix, err)
	}
	return keys, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.pool.Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix turns prefix into a LIKE pattern matching keys that start with it.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
