package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobhost/config"
	"github.com/xraph/jobhost/feature"
	"github.com/xraph/jobhost/store"
	"github.com/xraph/jobhost/store/etcd"
	"github.com/xraph/jobhost/store/k8s"
	"github.com/xraph/jobhost/store/memory"
	"github.com/xraph/jobhost/store/mongo"
	"github.com/xraph/jobhost/store/postgres"
	redisstore "github.com/xraph/jobhost/store/redis"
)

// backends holds the connections a host opened, closed together.
type backends struct {
	store store.Store
	flags feature.Flags
	redis *goredis.Client
}

// openBackends connects the configured lease store and flag source, then
// migrates and pings the store.
func openBackends(ctx context.Context, cfg config.Host, logger *slog.Logger) (*backends, error) {
	b := &backends{}
	if cfg.LeaseBackend == config.BackendRedis || cfg.FlagSource == config.FlagsRedis {
		b.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	s, err := openStore(ctx, cfg, b.redis, logger)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.store = s

	if err := s.Migrate(ctx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.LeaseBackend, err)
	}
	if err := s.Ping(ctx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("ping %s store: %w", cfg.LeaseBackend, err)
	}

	switch cfg.FlagSource {
	case config.FlagsRedis:
		b.flags = feature.NewRedis(b.redis, cfg.FlagRedisKey)
	case config.FlagsAll:
		b.flags = feature.All
	default:
		b.flags = feature.Static(cfg.Flags)
	}
	return b, nil
}

func openStore(ctx context.Context, cfg config.Host, rdb *goredis.Client, logger *slog.Logger) (store.Store, error) {
	switch cfg.LeaseBackend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendRedis:
		return redisstore.New(rdb, redisstore.WithLogger(logger)), nil
	case config.BackendPostgres:
		return postgres.New(ctx, cfg.Postgres.DSN, postgres.WithLogger(logger))
	case config.BackendMongo:
		return mongo.Open(cfg.Mongo.URI, cfg.Mongo.Database, mongo.WithLogger(logger))
	case config.BackendEtcd:
		opts := []etcd.Option{etcd.WithLogger(logger)}
		if cfg.Etcd.Prefix != "" {
			opts = append(opts, etcd.WithPrefix(cfg.Etcd.Prefix))
		}
		return etcd.Dial(cfg.Etcd.Endpoints, cfg.Etcd.DialTimeout, opts...)
	case config.BackendK8s:
		return k8s.Connect(cfg.K8s.Kubeconfig, cfg.K8s.Namespace, k8s.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown lease backend %q", cfg.LeaseBackend)
	}
}

// Close closes the store and the shared Redis client.
func (b *backends) Close() error {
	var errs []error
	if b.store != nil {
		errs = append(errs, b.store.Close())
	}
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	return errors.Join(errs...)
}
