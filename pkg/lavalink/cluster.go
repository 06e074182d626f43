package lavalink

import (
	"context"
	"sort"
	"sync"
	"time"
)

// VoiceReadyFunc is invoked when a guild's player reports a live voice
// connection, once per connection.
type VoiceReadyFunc func(guildID string)

// Cluster owns the node set and the guild-to-node assignment map. All
// assignment changes go through it; nothing else mutates the map.
type Cluster struct {
	cfg        *ClusterConfig
	logger     Logger
	metrics    *MetricsCollector
	selector   Selector
	dispatcher *dispatcher
	store      *playerStore
	correlator *correlator
	voiceReady VoiceReadyFunc

	mu          sync.RWMutex
	nodes       map[string]*Node
	assignments map[string]string
	closed      bool

	guildLocksMu sync.Mutex
	guildLocks   map[string]*sync.Mutex
}

func newCluster(cfg *ClusterConfig, logger Logger, metrics *MetricsCollector, selector Selector, voiceReady VoiceReadyFunc) (*Cluster, error) {
	c := &Cluster{
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		selector:    selector,
		store:       newPlayerStore(),
		voiceReady:  voiceReady,
		nodes:       make(map[string]*Node),
		assignments: make(map[string]string),
		guildLocks:  make(map[string]*sync.Mutex),
	}
	c.dispatcher = newDispatcher(cfg.EventQueueSize, cfg.EventEnqueueWait, logger, metrics)
	c.correlator = newCorrelator(cfg.CommandTimeout, logger, metrics)

	for _, nodeCfg := range cfg.Nodes {
		if err := c.AddNode(nodeCfg); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddNode registers a node and starts its connection loop.
func (c *Cluster) AddNode(nodeCfg NodeConfig) error {
	if err := nodeCfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClusterClosed
	}
	if _, exists := c.nodes[nodeCfg.Name]; exists {
		c.mu.Unlock()
		return ErrNodeExists
	}
	node := newNode(nodeCfg, c.cfg, c.logger, c.metrics, c.handleFrame, c.handleNodeState)
	c.nodes[nodeCfg.Name] = node
	c.mu.Unlock()

	c.logger.Info("node registered", String("node", nodeCfg.Name))
	node.start()
	return nil
}

// RemoveNode stops a node and re-homes its guilds like a failover.
func (c *Cluster) RemoveNode(ctx context.Context, name string) error {
	c.mu.Lock()
	node, ok := c.nodes[name]
	if ok {
		delete(c.nodes, name)
	}
	c.mu.Unlock()
	if !ok {
		return ErrNodeNotFound
	}

	err := node.stop(ctx)
	c.rehomeGuilds(name)
	return err
}

// Node looks up a node handle by name.
func (c *Cluster) Node(name string) (*Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	node, ok := c.nodes[name]
	return node, ok
}

// Snapshots captures every node's balancing view, sorted by name.
func (c *Cluster) Snapshots() []NodeSnapshot {
	c.mu.RLock()
	nodes := make([]*Node, 0, len(c.nodes))
	for _, node := range c.nodes {
		nodes = append(nodes, node)
	}
	c.mu.RUnlock()

	counts := c.store.countByNode()
	snapshots := make([]NodeSnapshot, 0, len(nodes))
	for _, node := range nodes {
		snapshots = append(snapshots, node.snapshot(counts[node.Name()]))
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Name < snapshots[j].Name })
	return snapshots
}

// selectNode runs the selector over the usable nodes.
func (c *Cluster) selectNode() (*Node, error) {
	snapshots := c.Snapshots()
	candidates := snapshots[:0]
	for _, snapshot := range snapshots {
		if snapshot.State.usable() {
			candidates = append(candidates, snapshot)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoAvailableNode
	}

	name := c.selector.Select(candidates)
	c.mu.RLock()
	node, ok := c.nodes[name]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrNoAvailableNode
	}
	return node, nil
}

// guildLock returns the mutex serializing assignment changes for a guild.
func (c *Cluster) guildLock(guildID string) *sync.Mutex {
	c.guildLocksMu.Lock()
	defer c.guildLocksMu.Unlock()
	lock, ok := c.guildLocks[guildID]
	if !ok {
		lock = &sync.Mutex{}
		c.guildLocks[guildID] = lock
	}
	return lock
}

// nodeForGuild returns the guild's assigned node, selecting and binding
// one when the guild is unassigned or its node is unusable.
func (c *Cluster) nodeForGuild(guildID string) (*Node, error) {
	lock := c.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ErrClusterClosed
	}
	name, assigned := c.assignments[guildID]
	node := c.nodes[name]
	c.mu.RUnlock()

	if assigned && node != nil && node.Available() {
		return node, nil
	}

	node, err := c.selectNode()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.assignments[guildID] = node.Name()
	c.mu.Unlock()
	c.store.assign(guildID, node.Name())

	c.logger.Info("guild assigned to node",
		String("guild_id", guildID),
		String("node", node.Name()),
		String("selector", c.selector.Name()),
	)
	return node, nil
}

// assignedNode returns the guild's current node only if it is usable.
// Unlike nodeForGuild it never creates a new assignment, so mutations of
// a non-existent player fail instead of spawning one.
func (c *Cluster) assignedNode(guildID string) (*Node, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClusterClosed
	}
	name, ok := c.assignments[guildID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	node := c.nodes[name]
	if node == nil || !node.Available() {
		return nil, ErrNotConnected
	}
	return node, nil
}

// unassign drops the guild from the assignment map and the store.
func (c *Cluster) unassign(guildID string) {
	c.mu.Lock()
	delete(c.assignments, guildID)
	c.mu.Unlock()
	c.store.clear(guildID)
}

// handleNodeState reacts to node health transitions.
func (c *Cluster) handleNodeState(node *Node, from, to HealthState) {
	c.dispatcher.enqueue(queuedEvent{
		kind: "nodeHealth",
		deliver: func(l EventListener) {
			if l.OnNodeHealth != nil {
				l.OnNodeHealth(NodeHealthEvent{Node: node.Name(), From: from, To: to})
			}
		},
	}, true)

	if to == HealthDisconnected || to == HealthFailed {
		c.rehomeGuilds(node.Name())
	}
}

// rehomeGuilds handles a node loss: every guild on the node is marked
// unassigned first, then each one independently fails over when enabled.
// Guilds that cannot be re-homed stay unassigned rather than pinned to
// the dead node.
func (c *Cluster) rehomeGuilds(nodeName string) {
	guilds := c.store.unassignNode(nodeName)

	c.mu.Lock()
	for _, guildID := range guilds {
		if c.assignments[guildID] == nodeName {
			delete(c.assignments, guildID)
		}
	}
	closed := c.closed
	c.mu.Unlock()

	if len(guilds) == 0 {
		return
	}

	c.logger.Warn("node lost, guilds unassigned",
		String("node", nodeName),
		Int("guilds", len(guilds)),
		Bool("auto_failover", c.cfg.AutoFailover),
	)
	c.metrics.RecordFailover(nodeName, len(guilds))

	if !c.cfg.AutoFailover || closed {
		return
	}
	for _, guildID := range guilds {
		go c.failoverGuild(guildID)
	}
}

// failoverGuild moves one guild to a fresh node and resumes playback
// where it left off. Failures are logged; other guilds are unaffected.
func (c *Cluster) failoverGuild(guildID string) {
	prior, ok := c.store.get(guildID)
	if !ok {
		return
	}

	node, err := c.nodeForGuild(guildID)
	if err != nil {
		c.logger.Warn("failover found no node for guild",
			String("guild_id", guildID),
			Error(err),
		)
		return
	}

	if prior.Track == nil || !prior.Voice.complete() {
		return
	}

	encoded := prior.Track.Encoded
	position := prior.Position.Milliseconds()
	volume := prior.Volume
	paused := prior.Paused
	update := playerUpdateRequest{
		Track:    &trackUpdate{Encoded: &encoded},
		Position: &position,
		Volume:   &volume,
		Paused:   &paused,
		Filters:  prior.Filters,
		Voice: &voiceUpdate{
			Token:     prior.Voice.Token,
			Endpoint:  prior.Voice.Endpoint,
			SessionID: prior.Voice.SessionID,
		},
	}

	err = c.correlator.execute(context.Background(), node, "failover-play", guildID, func(ctx context.Context) error {
		return node.updatePlayer(ctx, guildID, update, false)
	})
	if err != nil {
		c.logger.Error("failover resume failed",
			String("guild_id", guildID),
			String("node", node.Name()),
			Error(err),
		)
		return
	}

	c.logger.Info("guild failed over",
		String("guild_id", guildID),
		String("node", node.Name()),
		Int64("position_ms", position),
	)
}

// handleFrame routes a node's inbound frames into the store and the
// dispatcher. Runs on the node's receive goroutine, so it only does
// bounded work.
func (c *Cluster) handleFrame(node *Node, frame Frame) {
	switch frame.Kind {
	case FrameStats:
		stats := *frame.Stats
		c.dispatcher.enqueue(queuedEvent{
			kind: "stats",
			deliver: func(l EventListener) {
				if l.OnStats != nil {
					l.OnStats(StatsEvent{Node: node.Name(), Stats: stats})
				}
			},
		}, false)

	case FramePlayerUpdate:
		update := *frame.PlayerUpdate
		prior, ok := c.store.update(update.GuildID, func(p *GuildPlayer) {
			p.Position = time.Duration(update.State.Position) * time.Millisecond
			p.Connected = update.State.Connected
		})
		if ok && !prior.Connected && update.State.Connected && c.voiceReady != nil {
			c.voiceReady(update.GuildID)
		}
		c.dispatcher.enqueue(queuedEvent{
			guildID: update.GuildID,
			kind:    "playerUpdate",
			deliver: func(l EventListener) {
				if l.OnPlayerUpdate != nil {
					l.OnPlayerUpdate(PlayerUpdateEvent{Node: node.Name(), GuildID: update.GuildID, State: update.State})
				}
			},
		}, false)

	case FrameEvent:
		c.handleEventFrame(node, *frame.Event)
	}
}

// handleEventFrame applies a lifecycle event to the store and dispatches
// it. Stale track-end events, reporting a track the store has already
// moved past, are dropped here and never reach listeners.
func (c *Cluster) handleEventFrame(node *Node, event EventFrame) {
	nodeName := node.Name()

	switch event.Type {
	case eventTrackStart:
		if event.Track != nil {
			c.store.update(event.GuildID, func(p *GuildPlayer) {
				p.Track = event.Track
			})
		}
		track := event.Track
		c.dispatcher.enqueue(queuedEvent{
			guildID: event.GuildID,
			kind:    "trackStart",
			deliver: func(l EventListener) {
				if l.OnTrackStart != nil && track != nil {
					l.OnTrackStart(TrackStartEvent{Node: nodeName, GuildID: event.GuildID, Track: *track})
				}
			},
		}, true)

	case eventTrackEnd:
		prior, ok := c.store.update(event.GuildID, func(p *GuildPlayer) {
			if sameTrack(p.Track, event.Track) {
				p.Track = nil
				p.Position = 0
			}
		})
		if !ok || !sameTrack(prior.Track, event.Track) {
			c.logger.Debug("discarding stale track end",
				String("guild_id", event.GuildID),
				String("node", nodeName),
			)
			c.metrics.RecordStaleEvent(nodeName)
			return
		}
		c.dispatcher.enqueue(queuedEvent{
			guildID: event.GuildID,
			kind:    "trackEnd",
			deliver: func(l EventListener) {
				if l.OnTrackEnd != nil {
					l.OnTrackEnd(TrackEndEvent{
						Node:    nodeName,
						GuildID: event.GuildID,
						Track:   event.Track,
						Reason:  TrackEndReason(event.Reason),
					})
				}
			},
		}, true)

	case eventTrackException:
		exception := TrackException{}
		if event.Exception != nil {
			exception = *event.Exception
		}
		c.dispatcher.enqueue(queuedEvent{
			guildID: event.GuildID,
			kind:    "trackException",
			deliver: func(l EventListener) {
				if l.OnTrackException != nil {
					l.OnTrackException(TrackExceptionEvent{
						Node:      nodeName,
						GuildID:   event.GuildID,
						Track:     event.Track,
						Exception: exception,
					})
				}
			},
		}, true)

	case eventTrackStuck:
		c.dispatcher.enqueue(queuedEvent{
			guildID: event.GuildID,
			kind:    "trackStuck",
			deliver: func(l EventListener) {
				if l.OnTrackStuck != nil {
					l.OnTrackStuck(TrackStuckEvent{
						Node:      nodeName,
						GuildID:   event.GuildID,
						Track:     event.Track,
						Threshold: time.Duration(event.ThresholdMillis) * time.Millisecond,
					})
				}
			},
		}, true)

	case eventWebSocketClosed:
		c.store.update(event.GuildID, func(p *GuildPlayer) {
			p.Connected = false
		})
		c.dispatcher.enqueue(queuedEvent{
			guildID: event.GuildID,
			kind:    "webSocketClosed",
			deliver: func(l EventListener) {
				if l.OnWebSocketClosed != nil {
					l.OnWebSocketClosed(WebSocketClosedEvent{
						Node:     nodeName,
						GuildID:  event.GuildID,
						Code:     event.Code,
						Reason:   event.Reason,
						ByRemote: event.ByRemote,
					})
				}
			},
		}, true)

	default:
		c.logger.Debug("ignoring unknown event type", String("type", event.Type))
	}
}

// Shutdown stops every node concurrently and waits up to the grace
// period, then stops event delivery.
func (c *Cluster) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClusterClosed
	}
	c.closed = true
	nodes := make([]*Node, 0, len(c.nodes))
	for _, node := range c.nodes {
		nodes = append(nodes, node)
	}
	c.mu.Unlock()

	graceCtx, cancel := context.WithTimeout(ctx, c.cfg.ShutdownGrace)
	defer cancel()

	var wg sync.WaitGroup
	for _, node := range nodes {
		wg.Add(1)
		go func(node *Node) {
			defer wg.Done()
			if err := node.stop(graceCtx); err != nil {
				c.logger.Warn("node did not stop within grace period",
					String("node", node.Name()),
					Error(err),
				)
			}
		}(node)
	}

	stopped := make(chan struct{})
	go func() {
		wg.Wait()
		close(stopped)
	}()

	var err error
	select {
	case <-stopped:
	case <-graceCtx.Done():
		err = graceCtx.Err()
	}

	c.dispatcher.close()
	c.logger.Info("cluster shut down", Int("nodes", len(nodes)))
	return err
}

func sameTrack(a, b *Track) bool {
	return a != nil && b != nil && a.Encoded == b.Encoded
}
