// Package config loads process settings from the environment and domain
// definitions from YAML files.
package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Lease backends selectable with JOBHOST_LEASE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendEtcd     = "etcd"
	BackendK8s      = "k8s"
)

// Feature flag sources selectable with JOBHOST_FLAG_SOURCE.
const (
	FlagsStatic = "static"
	FlagsRedis  = "redis"
	FlagsAll    = "all"
)

// Host is the process configuration of a jobhost instance.
type Host struct {
	Env       string `env:"JOBHOST_ENV" envDefault:"development"`
	LogLevel  string `env:"JOBHOST_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"JOBHOST_LOG_FORMAT" envDefault:"text"`

	// APIAddr is the HTTP listen address. Empty disables the API.
	APIAddr     string `env:"JOBHOST_API_ADDR" envDefault:":8080"`
	DomainsFile string `env:"JOBHOST_DOMAINS_FILE" envDefault:"domains.yaml"`

	LeaseBackend  string        `env:"JOBHOST_LEASE_BACKEND" envDefault:"memory"`
	LeaseDuration time.Duration `env:"JOBHOST_LEASE_DURATION" envDefault:"60s"`

	// FlagSource selects where feature flags are read from.
	FlagSource string `env:"JOBHOST_FLAG_SOURCE" envDefault:"static"`
	// Flags is the static flag set, e.g. "billing:true,reports:false".
	Flags        map[string]bool `env:"JOBHOST_FLAGS"`
	FlagRedisKey string          `env:"JOBHOST_FLAG_REDIS_KEY"`

	ShutdownTimeout time.Duration `env:"JOBHOST_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// AuditLog writes tick, job and lease lifecycle events to the log.
	AuditLog bool `env:"JOBHOST_AUDIT_LOG"`

	Redis    Redis    `envPrefix:"JOBHOST_REDIS_"`
	Postgres Postgres `envPrefix:"JOBHOST_POSTGRES_"`
	Mongo    Mongo    `envPrefix:"JOBHOST_MONGO_"`
	Etcd     Etcd     `envPrefix:"JOBHOST_ETCD_"`
	K8s      K8s      `envPrefix:"JOBHOST_K8S_"`
}

// Redis holds the Redis connection used by the redis lease backend and the
// redis flag source.
type Redis struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"`
}

// Postgres holds the PostgreSQL connection string.
type Postgres struct {
	DSN string `env:"DSN"`
}

// Mongo holds the MongoDB connection.
type Mongo struct {
	URI      string `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE" envDefault:"jobhost"`
}

// Etcd holds the etcd cluster connection.
type Etcd struct {
	Endpoints   []string      `env:"ENDPOINTS" envSeparator:"," envDefault:"localhost:2379"`
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	Prefix      string        `env:"PREFIX"`
}

// K8s selects the cluster and namespace holding Lease objects.
type K8s struct {
	// Kubeconfig is a kubeconfig path. Empty uses the in-cluster config.
	Kubeconfig string `env:"KUBECONFIG"`
	Namespace  string `env:"NAMESPACE" envDefault:"default"`
}

// Load reads Host from the process environment and validates it.
func Load() (Host, error) {
	return load(env.Options{})
}

// LoadFrom reads Host from the given variables instead of the process
// environment.
func LoadFrom(vars map[string]string) (Host, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (Host, error) {
	h, err := env.ParseAsWithOptions[Host](opts)
	if err != nil {
		return Host{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := h.Validate(); err != nil {
		return Host{}, err
	}
	return h, nil
}

// Validate checks enumerated fields and backend-specific requirements.
func (h Host) Validate() error {
	if _, err := h.SlogLevel(); err != nil {
		return err
	}
	if !slices.Contains([]string{"text", "json"}, h.LogFormat) {
		return fmt.Errorf("config: unknown log format %q", h.LogFormat)
	}
	backends := []string{BackendMemory, BackendRedis, BackendPostgres, BackendMongo, BackendEtcd, BackendK8s}
	if !slices.Contains(backends, h.LeaseBackend) {
		return fmt.Errorf("config: unknown lease backend %q (want one of %s)", h.LeaseBackend, strings.Join(backends, ", "))
	}
	if h.LeaseDuration <= 0 {
		return fmt.Errorf("config: lease duration must be positive, got %s", h.LeaseDuration)
	}
	if !slices.Contains([]string{FlagsStatic, FlagsRedis, FlagsAll}, h.FlagSource) {
		return fmt.Errorf("config: unknown flag source %q", h.FlagSource)
	}
	if h.LeaseBackend == BackendPostgres && h.Postgres.DSN == "" {
		return fmt.Errorf("config: JOBHOST_POSTGRES_DSN is required for the postgres backend")
	}
	if h.LeaseBackend == BackendEtcd && len(h.Etcd.Endpoints) == 0 {
		return fmt.Errorf("config: JOBHOST_ETCD_ENDPOINTS is required for the etcd backend")
	}
	return nil
}

// SlogLevel parses LogLevel.
func (h Host) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(h.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return l, nil
}
