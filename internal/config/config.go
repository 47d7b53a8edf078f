// Package config loads the cluster gateway's configuration (spec §6) from
// environment variables, an optional .env file, and a static nodes file.
// Grounded on the teacher's internal/config/config.go Load()/Validate()
// pattern, generalized from single-tenant provider credentials to cluster
// topology and routing/health/cache tunables, and with the teacher's
// multi-tenant auth fields (AdminSecret, DatabaseURL) dropped per the
// no-multi-tenant-auth Non-goal.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/rpay/cluster-gateway/internal/cluster"
	"github.com/rpay/cluster-gateway/internal/router"
)

// Config holds every tunable the gateway needs at startup.
type Config struct {
	Port string

	NodesConfigPath string

	HealthCheckInterval time.Duration
	ProbeTimeout        time.Duration

	MaxConsecutiveFailures int
	UnhealthyThreshold     float64
	RecoveryThreshold      float64

	MaxCacheAge       time.Duration
	CacheSyncInterval time.Duration
	WarmupConcurrency int
	WarmupTimeout     time.Duration

	RoutingStrategy router.Strategy
	MaxRetries      int
	RetryDelay      time.Duration
}

// Load reads configuration from the environment, trying a .env file first
// the way the teacher's Load does, then validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnv("PORT", "8081"),
		NodesConfigPath:        getEnv("NODES_CONFIG_PATH", "nodes.json"),
		HealthCheckInterval:    getDurationMs("HEALTH_CHECK_INTERVAL_MS", 10_000),
		ProbeTimeout:           getDurationMs("PROBE_TIMEOUT_MS", 5_000),
		MaxConsecutiveFailures: getInt("MAX_CONSECUTIVE_FAILURES", 3),
		UnhealthyThreshold:     getFloat("UNHEALTHY_THRESHOLD", 0.5),
		RecoveryThreshold:      getFloat("RECOVERY_THRESHOLD", 0.8),
		MaxCacheAge:            time.Duration(getInt("MAX_CACHE_AGE_SEC", 300)) * time.Second,
		CacheSyncInterval:      getDurationMs("CACHE_SYNC_INTERVAL_MS", 30_000),
		WarmupConcurrency:      getInt("WARMUP_CONCURRENCY", 3),
		WarmupTimeout:          getDurationMs("WARMUP_TIMEOUT_MS", 10_000),
		RoutingStrategy:        router.Strategy(getEnv("ROUTING_STRATEGY", string(router.StrategyCacheAware))),
		MaxRetries:             getInt("MAX_RETRIES", 2),
		RetryDelay:             getDurationMs("RETRY_DELAY_MS", 200),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and sane.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required but not set")
	}
	if c.NodesConfigPath == "" {
		return fmt.Errorf("NODES_CONFIG_PATH is required but not set")
	}
	if c.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("MAX_CONSECUTIVE_FAILURES must be positive")
	}
	if c.UnhealthyThreshold <= 0 || c.UnhealthyThreshold >= 1 {
		return fmt.Errorf("UNHEALTHY_THRESHOLD must be in (0, 1)")
	}
	if c.RecoveryThreshold <= 0 || c.RecoveryThreshold >= 1 {
		return fmt.Errorf("RECOVERY_THRESHOLD must be in (0, 1)")
	}
	switch c.RoutingStrategy {
	case router.StrategyCacheAware, router.StrategyLeastLoaded, router.StrategyRoundRobin:
	default:
		return fmt.Errorf("ROUTING_STRATEGY %q is not one of cache-aware, least-loaded, round-robin", c.RoutingStrategy)
	}
	return nil
}

// nodesFile is the static discovery format (spec §6 discovery mode "static").
type nodesFile struct {
	Nodes []cluster.Node `json:"nodes"`
}

// LoadNodes reads and validates the static node list from c.NodesConfigPath.
func (c *Config) LoadNodes() ([]cluster.Node, error) {
	data, err := os.ReadFile(c.NodesConfigPath)
	if err != nil {
		return nil, fmt.Errorf("read nodes config: %w", err)
	}

	var file nodesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse nodes config: %w", err)
	}
	if len(file.Nodes) == 0 {
		return nil, fmt.Errorf("nodes config %s declares no nodes", c.NodesConfigPath)
	}
	for i, n := range file.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node at index %d has an empty id", i)
		}
		if n.BaseURL == "" {
			return nil, fmt.Errorf("node %q has an empty base_url", n.ID)
		}
	}
	return file.Nodes, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationMs(key string, defaultMs int) time.Duration {
	ms := getInt(key, defaultMs)
	return time.Duration(ms) * time.Millisecond
}
