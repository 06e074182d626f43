package lavalink

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestCorrelatorResolvesSuccess(t *testing.T) {
	cfg := testClusterConfig()
	node := stubNode(cfg, "a", HealthReady, Stats{})
	correlator := newCorrelator(cfg.CommandTimeout, NullLogger(), NewMetricsCollector())

	err := correlator.execute(context.Background(), node, "play", "g1", func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := correlator.pendingCount(); got != 0 {
		t.Errorf("expected no pending commands, got %d", got)
	}
}

func TestCorrelatorTimeout(t *testing.T) {
	cfg := testClusterConfig()
	node := stubNode(cfg, "a", HealthReady, Stats{})
	correlator := newCorrelator(cfg.CommandTimeout, NullLogger(), NewMetricsCollector())

	err := correlator.execute(context.Background(), node, "play", "g1", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrCommandTimeout) {
		t.Fatalf("expected ErrCommandTimeout, got %v", err)
	}

	node.mu.RLock()
	streak := node.timeoutStreak
	node.mu.RUnlock()
	if streak != 1 {
		t.Errorf("expected degrade counter 1 after one timeout, got %d", streak)
	}

	// Resolution happened exactly once; nothing is left pending even
	// though the command goroutine also reports in.
	waitFor(t, time.Second, "pending map to drain", func() bool {
		return correlator.pendingCount() == 0
	})
}

func TestCorrelatorTimeoutsDegradeNode(t *testing.T) {
	cfg := testClusterConfig()
	node := stubNode(cfg, "a", HealthReady, Stats{})
	correlator := newCorrelator(cfg.CommandTimeout, NullLogger(), NewMetricsCollector())

	hang := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	for i := 0; i < cfg.DegradedThreshold; i++ {
		if err := correlator.execute(context.Background(), node, "play", "g1", hang); !errors.Is(err, ErrCommandTimeout) {
			t.Fatalf("attempt %d: expected timeout, got %v", i, err)
		}
	}
	if got := node.State(); got != HealthDegraded {
		t.Fatalf("expected node degraded after %d timeouts, got %s", cfg.DegradedThreshold, got)
	}

	// One good round-trip restores the node.
	if err := correlator.execute(context.Background(), node, "play", "g1", func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := node.State(); got != HealthReady {
		t.Errorf("expected node ready after success, got %s", got)
	}
}

func TestCorrelatorNodeRejectionResetsCounter(t *testing.T) {
	cfg := testClusterConfig()
	node := stubNode(cfg, "a", HealthReady, Stats{})
	correlator := newCorrelator(cfg.CommandTimeout, NullLogger(), NewMetricsCollector())

	node.recordTimeout()
	node.recordTimeout()

	// A rejected command is still a completed round-trip.
	rejection := &CommandError{Status: 400, Message: "bad body"}
	err := correlator.execute(context.Background(), node, "play", "g1", func(ctx context.Context) error {
		return rejection
	})

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Status != 400 {
		t.Fatalf("expected the command error back, got %v", err)
	}

	node.mu.RLock()
	streak := node.timeoutStreak
	node.mu.RUnlock()
	if streak != 0 {
		t.Errorf("expected degrade counter reset, got %d", streak)
	}
}

func TestCorrelatorLateResultDiscarded(t *testing.T) {
	cfg := testClusterConfig()
	node := stubNode(cfg, "a", HealthReady, Stats{})
	correlator := newCorrelator(50*time.Millisecond, NullLogger(), NewMetricsCollector())

	release := make(chan struct{})
	err := correlator.execute(context.Background(), node, "play", "g1", func(ctx context.Context) error {
		// Ignores its context and outlives the timeout.
		<-release
		return nil
	})
	if !errors.Is(err, ErrCommandTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}

	close(release)
	waitFor(t, time.Second, "late result to be discarded", func() bool {
		return correlator.pendingCount() == 0
	})

	node.mu.RLock()
	streak := node.timeoutStreak
	node.mu.RUnlock()
	if streak != 1 {
		t.Errorf("late success must not rewrite the timeout, streak=%d", streak)
	}
}
