package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rpay/cluster-gateway/internal/router"
)

func TestValidateRejectsBadRoutingStrategy(t *testing.T) {
	cfg := &Config{
		Port:                   "8081",
		NodesConfigPath:        "nodes.json",
		MaxConsecutiveFailures: 3,
		UnhealthyThreshold:     0.5,
		RecoveryThreshold:      0.8,
		RoutingStrategy:        "not-a-strategy",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for an unknown routing strategy")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := &Config{
		Port:                   "8081",
		NodesConfigPath:        "nodes.json",
		MaxConsecutiveFailures: 3,
		UnhealthyThreshold:     0.5,
		RecoveryThreshold:      0.8,
		RoutingStrategy:        router.StrategyCacheAware,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadNodesValidatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.json")
	if err := os.WriteFile(path, []byte(`{"nodes":[{"id":"n1","base_url":"http://localhost:9001"}]}`), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := &Config{NodesConfigPath: path}
	nodes, err := cfg.LoadNodes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != "n1" || nodes[0].BaseURL != "http://localhost:9001" {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}
}

func TestLoadNodesRejectsEmptyList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.json")
	if err := os.WriteFile(path, []byte(`{"nodes":[]}`), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := &Config{NodesConfigPath: path}
	if _, err := cfg.LoadNodes(); err == nil {
		t.Fatalf("expected an error for an empty node list")
	}
}

func TestLoadNodesRejectsMissingBaseURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.json")
	if err := os.WriteFile(path, []byte(`{"nodes":[{"id":"n1"}]}`), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := &Config{NodesConfigPath: path}
	if _, err := cfg.LoadNodes(); err == nil {
		t.Fatalf("expected an error for a node missing base_url")
	}
}
