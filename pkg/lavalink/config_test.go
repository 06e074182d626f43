package lavalink

import (
	"strings"
	"testing"
)

func TestDefaultConfigNeedsUserID(t *testing.T) {
	cfg := DefaultClusterConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure without user id")
	}
	if !strings.Contains(err.Error(), "user id") {
		t.Errorf("error should name the user id: %v", err)
	}

	cfg.UserID = "100000000000000000"
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults with a user id should validate: %v", err)
	}
}

func TestConfigRejectsDuplicateNodes(t *testing.T) {
	cfg := DefaultClusterConfig()
	cfg.UserID = "100000000000000000"
	cfg.Nodes = []NodeConfig{
		{Name: "a", Host: "h1", Port: 2333, Password: "pw"},
		{Name: "a", Host: "h2", Port: 2333, Password: "pw"},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate node error, got %v", err)
	}
}

func TestNodeConfigValidate(t *testing.T) {
	bad := NodeConfig{Name: "", Host: "", Port: 0}
	err := bad.Validate()
	if err == nil {
		t.Fatal("expected errors for empty node config")
	}
	for _, want := range []string{"name", "host", "port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}

	good := NodeConfig{Name: "a", Host: "localhost", Port: 2333, Password: "pw"}
	if err := good.Validate(); err != nil {
		t.Errorf("valid node rejected: %v", err)
	}
}

func TestNodeURLs(t *testing.T) {
	plain := NodeConfig{Host: "localhost", Port: 2333}
	if got := plain.socketURL(); got != "ws://localhost:2333/v4/websocket" {
		t.Errorf("wrong socket url: %s", got)
	}
	if got := plain.restURL(); got != "http://localhost:2333" {
		t.Errorf("wrong rest url: %s", got)
	}

	secure := NodeConfig{Host: "node.example", Port: 443, Secure: true}
	if got := secure.socketURL(); got != "wss://node.example:443/v4/websocket" {
		t.Errorf("wrong secure socket url: %s", got)
	}
	if got := secure.restURL(); got != "https://node.example:443" {
		t.Errorf("wrong secure rest url: %s", got)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LAVALINK_HOST", "10.0.0.5")
	t.Setenv("LAVALINK_PORT", "2444")
	t.Setenv("LAVALINK_PASSWORD", "hunter2")
	t.Setenv("LAVALINK_SECURE", "true")
	t.Setenv("LAVAGO_COMMAND_TIMEOUT", "3s")
	t.Setenv("LAVAGO_AUTO_FAILOVER", "false")

	cfg := DefaultClusterConfig()
	cfg.LoadFromEnvironment()

	if len(cfg.Nodes) != 1 {
		t.Fatalf("expected one node from env, got %d", len(cfg.Nodes))
	}
	node := cfg.Nodes[0]
	if node.Host != "10.0.0.5" || node.Port != 2444 || node.Password != "hunter2" || !node.Secure {
		t.Errorf("node not loaded from env: %+v", node)
	}
	if node.Name != "10.0.0.5" {
		t.Errorf("node name should default to host, got %q", node.Name)
	}
	if cfg.CommandTimeout.Seconds() != 3 {
		t.Errorf("command timeout not loaded: %v", cfg.CommandTimeout)
	}
	if cfg.AutoFailover {
		t.Error("auto failover override not applied")
	}
}
