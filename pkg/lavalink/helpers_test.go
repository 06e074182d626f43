package lavalink

import (
	"testing"
	"time"
)

func testClusterConfig() *ClusterConfig {
	cfg := DefaultClusterConfig()
	cfg.UserID = "100000000000000000"
	cfg.CommandTimeout = 200 * time.Millisecond
	cfg.ConnectTimeout = 500 * time.Millisecond
	cfg.ConnectAttempts = 1
	cfg.DegradedThreshold = 3
	cfg.ReconnectCeiling = 2
	cfg.BackoffInitial = 10 * time.Millisecond
	cfg.BackoffMax = 40 * time.Millisecond
	cfg.ShutdownGrace = time.Second
	cfg.EventEnqueueWait = 100 * time.Millisecond
	return cfg
}

func newTestCluster(t *testing.T, cfg *ClusterConfig) *Cluster {
	t.Helper()
	cluster, err := newCluster(cfg, NullLogger(), NewMetricsCollector(), NewLowestLoadSelector(), nil)
	if err != nil {
		t.Fatalf("newCluster: %v", err)
	}
	t.Cleanup(func() { cluster.dispatcher.close() })
	return cluster
}

// stubNode builds a node in the given state without any network. Its run
// loop never starts, so finished is pre-closed to keep stop from hanging.
func stubNode(cfg *ClusterConfig, name string, state HealthState, stats Stats) *Node {
	node := newNode(
		NodeConfig{Name: name, Host: "127.0.0.1", Port: 2333, Password: "pw"},
		cfg, NullLogger(), NewMetricsCollector(), nil, nil,
	)
	node.state = state
	if state.usable() {
		node.sessionID = "session-" + name
	}
	node.stats = stats
	close(node.finished)
	return node
}

func addStubNode(c *Cluster, name string, state HealthState, stats Stats) *Node {
	node := stubNode(c.cfg, name, state, stats)
	node.onFrame = c.handleFrame
	node.onState = c.handleNodeState
	node.metrics = c.metrics
	c.mu.Lock()
	c.nodes[name] = node
	c.mu.Unlock()
	return node
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
