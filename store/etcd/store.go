package etcd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/xraph/jobhost/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "/jobhost/leases/"

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithPrefix sets the key prefix. It is normalised to end in "/".
func WithPrefix(p string) Option {
	return func(s *Store) {
		if !strings.HasSuffix(p, "/") {
			p += "/"
		}
		s.prefix = p
	}
}

// Store implements store.Store backed by etcd.
type Store struct {
	client *clientv3.Client
	owned  bool
	prefix string
	logger *slog.Logger
}

// New creates a store on an existing client. The caller owns the client.
func New(client *clientv3.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dial connects to endpoints and returns a store that closes the client on
// Close.
func Dial(endpoints []string, dialTimeout time.Duration, opts ...Option) (*Store, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("jobhost/etcd: connect: %w", err)
	}
	s := New(cli, opts...)
	s.owned = true
	return s, nil
}

// Client returns the underlying etcd client.
func (s *Store) Client() *clientv3.Client { return s.client }

// Migrate is a no-op for etcd.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks that the cluster answers a read.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.Get(ctx, s.prefix, clientv3.WithCountOnly()); err != nil {
		return fmt.Errorf("jobhost/etcd: ping: %w", err)
	}
	return nil
}

// Close closes the client when the store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func (s *Store) objectKey(name string) string { return s.prefix + name }

func (s *Store) lockKey(name string) string { return s.prefix + name + "/lock" }
