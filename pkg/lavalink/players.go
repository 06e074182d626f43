package lavalink

import (
	"sort"
	"sync"
	"time"
)

// GuildPlayer is the per-guild playback state the client maintains
// alongside the node. Node is the assigned node's name, never a handle,
// so a stale snapshot can't pin a dead connection.
type GuildPlayer struct {
	GuildID   string
	Node      string
	Track     *Track
	Position  time.Duration
	Paused    bool
	Volume    int
	Filters   *Filters
	Voice     VoiceState
	Connected bool
	// Version increments on every update and orders snapshots of the
	// same guild.
	Version    uint64
	LastUpdate time.Time
}

type playerEntry struct {
	mu     sync.Mutex
	player GuildPlayer
}

// playerStore holds all guild players. Updates to one guild are
// linearized by that guild's lock; different guilds never contend.
type playerStore struct {
	mu      sync.RWMutex
	players map[string]*playerEntry
}

func newPlayerStore() *playerStore {
	return &playerStore{players: make(map[string]*playerEntry)}
}

// entry returns the guild's entry, creating it when create is set.
func (s *playerStore) entry(guildID string, create bool) *playerEntry {
	s.mu.RLock()
	entry := s.players[guildID]
	s.mu.RUnlock()
	if entry != nil || !create {
		return entry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry = s.players[guildID]; entry == nil {
		entry = &playerEntry{player: GuildPlayer{GuildID: guildID, Volume: 100}}
		s.players[guildID] = entry
	}
	return entry
}

// ensure creates the guild's record if it does not exist yet.
func (s *playerStore) ensure(guildID string) {
	s.entry(guildID, true)
}

// assign binds the guild to a node, creating the record if needed.
func (s *playerStore) assign(guildID, node string) {
	entry := s.entry(guildID, true)
	entry.mu.Lock()
	entry.player.Node = node
	entry.player.Version++
	entry.player.LastUpdate = time.Now()
	entry.mu.Unlock()
}

// update applies a mutator under the guild's lock and returns the state
// as it was before the mutation. The second return is false when the
// guild has no player.
func (s *playerStore) update(guildID string, mutate func(*GuildPlayer)) (GuildPlayer, bool) {
	entry := s.entry(guildID, false)
	if entry == nil {
		return GuildPlayer{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	prior := entry.player
	mutate(&entry.player)
	entry.player.Version = prior.Version + 1
	entry.player.LastUpdate = time.Now()
	return prior, true
}

// upsert is update that creates the record first when missing.
func (s *playerStore) upsert(guildID string, mutate func(*GuildPlayer)) GuildPlayer {
	s.ensure(guildID)
	prior, _ := s.update(guildID, mutate)
	return prior
}

// get returns a snapshot of the guild's player.
func (s *playerStore) get(guildID string) (GuildPlayer, bool) {
	entry := s.entry(guildID, false)
	if entry == nil {
		return GuildPlayer{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.player, true
}

// clear removes the guild's player entirely.
func (s *playerStore) clear(guildID string) {
	s.mu.Lock()
	delete(s.players, guildID)
	s.mu.Unlock()
}

// unassignNode strips the node from every guild assigned to it and
// returns those guild ids sorted for deterministic processing.
func (s *playerStore) unassignNode(node string) []string {
	s.mu.RLock()
	entries := make(map[string]*playerEntry, len(s.players))
	for id, entry := range s.players {
		entries[id] = entry
	}
	s.mu.RUnlock()

	var guilds []string
	for id, entry := range entries {
		entry.mu.Lock()
		if entry.player.Node == node {
			entry.player.Node = ""
			entry.player.Connected = false
			entry.player.Version++
			entry.player.LastUpdate = time.Now()
			guilds = append(guilds, id)
		}
		entry.mu.Unlock()
	}
	sort.Strings(guilds)
	return guilds
}

// countByNode returns how many guilds each node currently hosts.
func (s *playerStore) countByNode() map[string]int {
	s.mu.RLock()
	entries := make([]*playerEntry, 0, len(s.players))
	for _, entry := range s.players {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	counts := make(map[string]int)
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.player.Node != "" {
			counts[entry.player.Node]++
		}
		entry.mu.Unlock()
	}
	return counts
}
