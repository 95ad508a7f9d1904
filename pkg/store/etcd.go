package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/strand-protocol/binn/pkg/config"
)

// DefaultEtcdPrefix is the key space documents live under, keeping them apart
// from other etcd tenants.
const DefaultEtcdPrefix = "/binn/v1/docs/"

// EtcdStore is an etcd-backed Store suitable for multi-node deployments.
// All operations go through etcd's linearisable reads and writes, so several
// servers may share one cluster.
type EtcdStore struct {
	client *clientv3.Client
	prefix string
	log    *zap.Logger
}

// NewEtcdStore dials the cluster described by cfg. The caller must call Close
// when finished.
func NewEtcdStore(cfg config.EtcdConfig, logger *zap.Logger) (*EtcdStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: timeout,
		Logger:      logger.Named("etcd-client"),
	})
	if err != nil {
		return nil, fmt.Errorf("store: etcd dial %v: %w", cfg.Endpoints, err)
	}
	return newEtcdStore(client, cfg.Prefix, logger), nil
}

func newEtcdStore(client *clientv3.Client, prefix string, logger *zap.Logger) *EtcdStore {
	if prefix == "" {
		prefix = DefaultEtcdPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	logger.Info("etcd store ready", zap.Strings("endpoints", client.Endpoints()), zap.String("prefix", prefix))
	return &EtcdStore{client: client, prefix: prefix, log: logger}
}

func (s *EtcdStore) key(k string) string { return s.prefix + k }

func (s *EtcdStore) Put(ctx context.Context, key string, doc []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if _, err := s.client.Put(ctx, s.key(key), string(doc)); err != nil {
		return fmt.Errorf("store: etcd put %q: %w", key, err)
	}
	return nil
}

// Create writes doc only if no revision of key exists.
func (s *EtcdStore) Create(ctx context.Context, key string, doc []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	k := s.key(key)
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.Version(k), "=", 0)).
		Then(clientv3.OpPut(k, string(doc))).
		Commit()
	if err != nil {
		return fmt.Errorf("store: etcd txn create %q: %w", key, err)
	}
	if !resp.Succeeded {
		s.log.Debug("create lost to existing key", zap.String("key", key))
		return ErrAlreadyExists
	}
	return nil
}

func (s *EtcdStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.Get(ctx, s.key(key))
	if err != nil {
		return nil, fmt.Errorf("store: etcd get %q: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrNotFound
	}
	return resp.Kvs[0].Value, nil
}

func (s *EtcdStore) Delete(ctx context.Context, key string) error {
	resp, err := s.client.Delete(ctx, s.key(key))
	if err != nil {
		return fmt.Errorf("store: etcd delete %q: %w", key, err)
	}
	if resp.Deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *EtcdStore) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	opts := []clientv3.OpOption{
		clientv3.WithPrefix(),
		clientv3.WithKeysOnly(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend),
	}
	if limit > 0 {
		opts = append(opts, clientv3.WithLimit(int64(limit)))
	}
	resp, err := s.client.Get(ctx, s.key(prefix), opts...)
	if err != nil {
		return nil, fmt.Errorf("store: etcd list %q: %w", prefix, err)
	}
	keys := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		keys = append(keys, strings.TrimPrefix(string(kv.Key), s.prefix))
	}
	return keys, nil
}

// Close releases the underlying etcd client connection.
func (s *EtcdStore) Close() error {
	return s.client.Close()
}
