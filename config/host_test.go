package config_test

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/jobhost/config"
	"github.com/xraph/jobhost/lease"
)

func TestLoadDefaults(t *testing.T) {
	h, err := config.LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if h.LeaseBackend != config.BackendMemory {
		t.Errorf("LeaseBackend = %q", h.LeaseBackend)
	}
	if h.LeaseDuration != lease.DefaultDuration {
		t.Errorf("LeaseDuration = %s, want %s", h.LeaseDuration, lease.DefaultDuration)
	}
	if h.APIAddr != ":8080" || h.DomainsFile != "domains.yaml" {
		t.Errorf("APIAddr = %q, DomainsFile = %q", h.APIAddr, h.DomainsFile)
	}
	if got := h.Etcd.Endpoints; len(got) != 1 || got[0] != "localhost:2379" {
		t.Errorf("Etcd.Endpoints = %v", got)
	}
	if l, _ := h.SlogLevel(); l != slog.LevelInfo {
		t.Errorf("level = %v", l)
	}
}

func TestLoadOverrides(t *testing.T) {
	h, err := config.LoadFrom(map[string]string{
		"JOBHOST_LOG_LEVEL":        "debug",
		"JOBHOST_LOG_FORMAT":       "json",
		"JOBHOST_LEASE_BACKEND":    "etcd",
		"JOBHOST_LEASE_DURATION":   "10s",
		"JOBHOST_FLAGS":            "billing:true,reports:false",
		"JOBHOST_ETCD_ENDPOINTS":   "etcd-0:2379,etcd-1:2379",
		"JOBHOST_REDIS_DB":         "3",
		"JOBHOST_K8S_NAMESPACE":    "jobs",
		"JOBHOST_MONGO_DATABASE":   "leases",
		"JOBHOST_SHUTDOWN_TIMEOUT": "5s",
	})
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if l, _ := h.SlogLevel(); l != slog.LevelDebug {
		t.Errorf("level = %v", l)
	}
	if h.LeaseDuration != 10*time.Second || h.ShutdownTimeout != 5*time.Second {
		t.Errorf("durations = %s, %s", h.LeaseDuration, h.ShutdownTimeout)
	}
	if !h.Flags["billing"] || h.Flags["reports"] {
		t.Errorf("Flags = %v", h.Flags)
	}
	if len(h.Etcd.Endpoints) != 2 || h.Etcd.Endpoints[1] != "etcd-1:2379" {
		t.Errorf("Etcd.Endpoints = %v", h.Etcd.Endpoints)
	}
	if h.Redis.DB != 3 || h.K8s.Namespace != "jobs" || h.Mongo.Database != "leases" {
		t.Errorf("backend settings = %+v %+v %+v", h.Redis, h.K8s, h.Mongo)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"unknown backend", map[string]string{"JOBHOST_LEASE_BACKEND": "zookeeper"}, "unknown lease backend"},
		{"bad log level", map[string]string{"JOBHOST_LOG_LEVEL": "loud"}, "log level"},
		{"bad log format", map[string]string{"JOBHOST_LOG_FORMAT": "xml"}, "log format"},
		{"zero lease duration", map[string]string{"JOBHOST_LEASE_DURATION": "0s"}, "lease duration"},
		{"postgres without dsn", map[string]string{"JOBHOST_LEASE_BACKEND": "postgres"}, "JOBHOST_POSTGRES_DSN"},
		{"unknown flag source", map[string]string{"JOBHOST_FLAG_SOURCE": "launchdarkly"}, "flag source"},
		{"malformed duration", map[string]string{"JOBHOST_LEASE_DURATION": "soon"}, "parse environment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFrom(tt.vars)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}
