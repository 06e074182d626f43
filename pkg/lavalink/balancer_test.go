package lavalink

import "testing"

func readySnapshot(name string, playing int, guilds int) NodeSnapshot {
	return NodeSnapshot{
		Name:           name,
		State:          HealthReady,
		Stats:          Stats{PlayingPlayers: playing},
		AssignedGuilds: guilds,
	}
}

func TestLowestLoadPicksLeastLoaded(t *testing.T) {
	selector := NewLowestLoadSelector()
	candidates := []NodeSnapshot{
		readySnapshot("a", 5, 5),
		readySnapshot("b", 2, 2),
		readySnapshot("c", 8, 8),
	}

	if got := selector.Select(candidates); got != "b" {
		t.Errorf("expected node b, got %s", got)
	}
}

func TestLowestLoadTieBreaksOnAssignedGuilds(t *testing.T) {
	selector := NewLowestLoadSelector()
	candidates := []NodeSnapshot{
		readySnapshot("a", 3, 7),
		readySnapshot("b", 3, 2),
	}

	if got := selector.Select(candidates); got != "b" {
		t.Errorf("expected node b with fewer guilds, got %s", got)
	}
}

func TestLowestLoadTieBreaksOnName(t *testing.T) {
	selector := NewLowestLoadSelector()
	candidates := []NodeSnapshot{
		readySnapshot("beta", 3, 4),
		readySnapshot("alpha", 3, 4),
	}

	if got := selector.Select(candidates); got != "alpha" {
		t.Errorf("expected lexicographic winner alpha, got %s", got)
	}

	// Same inputs must give the same answer every time.
	for i := 0; i < 10; i++ {
		if got := selector.Select(candidates); got != "alpha" {
			t.Fatalf("selection not deterministic, got %s on run %d", got, i)
		}
	}
}

func TestLowestLoadPenalizesDegraded(t *testing.T) {
	selector := NewLowestLoadSelector()

	degraded := readySnapshot("degraded", 0, 0)
	degraded.State = HealthDegraded
	healthy := readySnapshot("healthy", 0, 0)

	if got := selector.Select([]NodeSnapshot{degraded, healthy}); got != "healthy" {
		t.Errorf("idle healthy node should beat idle degraded node, got %s", got)
	}

	// A busy enough healthy node loses to an idle degraded one.
	busy := readySnapshot("busy", 20, 20)
	if got := selector.Select([]NodeSnapshot{degraded, busy}); got != "degraded" {
		t.Errorf("expected degraded node over heavily loaded one, got %s", got)
	}
}

func TestLowestLoadCPUWeight(t *testing.T) {
	selector := NewLowestLoadSelector()

	hotCPU := readySnapshot("hot", 0, 0)
	hotCPU.Stats.CPU.SystemLoad = 0.9
	coolCPU := readySnapshot("cool", 2, 2)

	// 0.9 load * weight 10 = 9 > 2 players.
	if got := selector.Select([]NodeSnapshot{hotCPU, coolCPU}); got != "cool" {
		t.Errorf("expected cpu-hot node to lose, got %s", got)
	}
}

func TestRoundRobinCycles(t *testing.T) {
	selector := NewRoundRobinSelector()
	candidates := []NodeSnapshot{
		readySnapshot("b", 0, 0),
		readySnapshot("a", 0, 0),
		readySnapshot("c", 0, 0),
	}

	want := []string{"a", "b", "c", "a", "b", "c"}
	for i, expected := range want {
		if got := selector.Select(candidates); got != expected {
			t.Errorf("pick %d: expected %s, got %s", i, expected, got)
		}
	}
}
