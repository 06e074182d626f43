package lavalink

import (
	"sort"
	"sync"
)

// NodeSnapshot is the point-in-time view of a node the selector sees.
type NodeSnapshot struct {
	Name           string
	State          HealthState
	Stats          Stats
	AssignedGuilds int
}

// Selector picks the node for a new guild assignment. Candidates are
// already filtered to usable nodes; an empty slice never reaches Select.
// Implementations must be safe for concurrent use.
type Selector interface {
	Name() string
	Select(candidates []NodeSnapshot) string
}

// LowestLoadSelector scores candidates by reported load and picks the
// cheapest one. Degraded nodes carry a penalty so they only win when
// every healthy node is busier.
type LowestLoadSelector struct {
	// CPUWeight converts the node's systemLoad fraction into player
	// equivalents for scoring.
	CPUWeight float64
	// DegradedPenalty multiplies the score of degraded candidates.
	DegradedPenalty float64
}

// NewLowestLoadSelector returns the default selector configuration.
func NewLowestLoadSelector() *LowestLoadSelector {
	return &LowestLoadSelector{
		CPUWeight:       10,
		DegradedPenalty: 1.5,
	}
}

func (s *LowestLoadSelector) Name() string {
	return "lowest-load"
}

// Select picks the candidate with the lowest score. Ties break on fewest
// assigned guilds, then lexicographic name, so equal inputs always give
// the same answer.
func (s *LowestLoadSelector) Select(candidates []NodeSnapshot) string {
	best := candidates[0]
	bestScore := s.score(best)

	for _, candidate := range candidates[1:] {
		score := s.score(candidate)
		switch {
		case score < bestScore:
			best, bestScore = candidate, score
		case score == bestScore && candidate.AssignedGuilds < best.AssignedGuilds:
			best, bestScore = candidate, score
		case score == bestScore && candidate.AssignedGuilds == best.AssignedGuilds && candidate.Name < best.Name:
			best, bestScore = candidate, score
		}
	}
	return best.Name
}

func (s *LowestLoadSelector) score(candidate NodeSnapshot) float64 {
	score := float64(candidate.Stats.PlayingPlayers) + candidate.Stats.CPU.SystemLoad*s.CPUWeight
	if candidate.State == HealthDegraded {
		// +1 keeps an idle degraded node behind an idle healthy one.
		score = (score + 1) * s.DegradedPenalty
	}
	return score
}

// RoundRobinSelector cycles through candidates in name order, ignoring
// load entirely.
type RoundRobinSelector struct {
	mu   sync.Mutex
	next int
}

// NewRoundRobinSelector returns a selector that rotates assignments.
func NewRoundRobinSelector() *RoundRobinSelector {
	return &RoundRobinSelector{}
}

func (s *RoundRobinSelector) Name() string {
	return "round-robin"
}

func (s *RoundRobinSelector) Select(candidates []NodeSnapshot) string {
	names := make([]string, len(candidates))
	for i, candidate := range candidates {
		names[i] = candidate.Name
	}
	sort.Strings(names)

	s.mu.Lock()
	defer s.mu.Unlock()
	name := names[s.next%len(names)]
	s.next++
	return name
}
