package lavalink

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Node is the handle for a single backend node: its transport session,
// health state and the session id its REST calls are scoped to.
type Node struct {
	cfg        NodeConfig
	clusterCfg *ClusterConfig
	logger     Logger
	metrics    *MetricsCollector
	rest       *restClient

	// onFrame and onState are invoked from the node's run goroutine,
	// never under the node mutex.
	onFrame func(*Node, Frame)
	onState func(*Node, HealthState, HealthState)

	mu            sync.RWMutex
	state         HealthState
	sessionID     string
	stats         Stats
	statsAt       time.Time
	timeoutStreak int

	transport *transportSession

	done     chan struct{}
	stopOnce sync.Once
	finished chan struct{}
}

func newNode(cfg NodeConfig, clusterCfg *ClusterConfig, logger Logger, metrics *MetricsCollector,
	onFrame func(*Node, Frame), onState func(*Node, HealthState, HealthState)) *Node {
	return &Node{
		cfg:        cfg,
		clusterCfg: clusterCfg,
		logger:     logger.With(String("node", cfg.Name)),
		metrics:    metrics,
		rest:       newRestClient(cfg, logger),
		onFrame:    onFrame,
		onState:    onState,
		state:      HealthConnecting,
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
	}
}

// Name returns the node's configured label.
func (n *Node) Name() string {
	return n.cfg.Name
}

// State returns the node's current health state.
func (n *Node) State() HealthState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// SessionID returns the node-assigned session id, empty when disconnected.
func (n *Node) SessionID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sessionID
}

// Stats returns the last stats frame received from the node.
func (n *Node) Stats() Stats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stats
}

// Available reports whether the node can take commands and assignments.
func (n *Node) Available() bool {
	return n.State().usable()
}

// start launches the node's connection loop.
func (n *Node) start() {
	go n.run()
}

// run drives the node through its whole lifecycle: bounded initial
// connect attempts, frame consumption, and reconnection after drops.
func (n *Node) run() {
	defer close(n.finished)

	if !n.initialConnect() {
		return
	}

	for {
		n.consumeFrames()

		select {
		case <-n.done:
			return
		default:
		}

		clean, closeErr := n.transport.closeInfo()
		reason := "connection closed by node"
		if !clean {
			reason = "connection lost"
			if closeErr != nil {
				reason = closeErr.Error()
			}
		}
		n.setState(HealthDisconnected, reason)

		if !n.reconnect(clean) {
			return
		}
	}
}

// initialConnect makes the bounded startup attempts. Credential
// rejection fails the node immediately since retrying cannot help.
func (n *Node) initialConnect() bool {
	attempts := n.clusterCfg.ConnectAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		err := n.connectOnce()
		if err == nil {
			return true
		}
		if errors.Is(err, ErrUnauthorized) {
			n.setState(HealthFailed, "credentials rejected")
			return false
		}
		n.logger.Warn("connect attempt failed",
			Int("attempt", attempt),
			Int("max_attempts", attempts),
			Error(err),
		)
		if attempt < attempts && !n.wait(time.Duration(attempt)*time.Second) {
			return false
		}
	}
	n.setState(HealthFailed, "initial connect attempts exhausted")
	return false
}

// connectOnce dials a fresh transport session and waits for the ready
// frame. On success the node becomes Ready with a new session id.
func (n *Node) connectOnce() error {
	transport := newTransportSession(n.cfg, n.clusterCfg.UserID, n.clusterCfg.ClientName, n.logger)

	ctx, cancel := context.WithTimeout(context.Background(), n.clusterCfg.ConnectTimeout)
	defer cancel()

	ready, err := transport.connect(ctx)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.transport = transport
	n.sessionID = ready.SessionID
	n.timeoutStreak = 0
	n.mu.Unlock()

	n.logger.Info("node session established",
		String("session_id", ready.SessionID),
		Bool("resumed", ready.Resumed),
	)
	n.setState(HealthReady, "session established")
	return nil
}

// consumeFrames drains the transport until it closes, recording stats
// locally and forwarding everything to the cluster.
func (n *Node) consumeFrames() {
	n.mu.RLock()
	transport := n.transport
	n.mu.RUnlock()
	if transport == nil {
		return
	}

	for frame := range transport.frames {
		if frame.Kind == FrameStats && frame.Stats != nil {
			n.mu.Lock()
			n.stats = *frame.Stats
			n.statsAt = time.Now()
			n.mu.Unlock()
		}
		if n.onFrame != nil {
			n.onFrame(n, frame)
		}
	}

	n.mu.Lock()
	n.sessionID = ""
	n.mu.Unlock()
}

// reconnect retries the connection with capped exponential backoff and
// jitter. After a clean close the first attempt goes out immediately;
// backoff starts once that attempt fails. Returns false when the node is
// stopped or the ceiling is hit.
func (n *Node) reconnect(cleanClose bool) bool {
	for attempt := 1; attempt <= n.clusterCfg.ReconnectCeiling; attempt++ {
		delay := n.backoffDelay(attempt)
		if cleanClose && attempt == 1 {
			delay = 0
		}
		n.setState(HealthReconnecting, "awaiting reconnect backoff")
		n.logger.Info("reconnecting",
			Int("attempt", attempt),
			Int("ceiling", n.clusterCfg.ReconnectCeiling),
			Duration("delay", delay),
		)
		n.metrics.RecordReconnectAttempt(n.cfg.Name, attempt)

		if !n.wait(delay) {
			return false
		}

		err := n.connectOnce()
		if err == nil {
			return true
		}
		if errors.Is(err, ErrUnauthorized) {
			n.setState(HealthFailed, "credentials rejected")
			return false
		}
		n.logger.Warn("reconnect attempt failed", Int("attempt", attempt), Error(err))
	}

	n.setState(HealthFailed, "reconnect ceiling reached")
	return false
}

// backoffDelay computes the delay before the given reconnect attempt:
// exponential growth from BackoffInitial, capped at BackoffMax, with
// 25% jitter either way.
func (n *Node) backoffDelay(attempt int) time.Duration {
	delay := n.clusterCfg.BackoffInitial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= n.clusterCfg.BackoffMax {
			delay = n.clusterCfg.BackoffMax
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2+1)) - delay/4
	delay += jitter
	if delay < 0 {
		delay = 0
	}
	return delay
}

// wait sleeps for d unless the node is stopped first.
func (n *Node) wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-n.done:
		return false
	}
}

// setState funnels every health transition through one place so logging,
// metrics and the cluster callback stay consistent.
func (n *Node) setState(to HealthState, reason string) {
	n.mu.Lock()
	from := n.state
	if from == to || from == HealthFailed {
		n.mu.Unlock()
		return
	}
	n.state = to
	if to == HealthDisconnected || to == HealthFailed {
		n.sessionID = ""
	}
	n.mu.Unlock()

	n.logger.Info("node state changed",
		String("from", from.String()),
		String("to", to.String()),
		String("reason", reason),
	)
	n.metrics.RecordStateChange(n.cfg.Name, from, to)

	if n.onState != nil {
		n.onState(n, from, to)
	}
}

// recordTimeout counts a command timeout toward the degrade threshold.
func (n *Node) recordTimeout() {
	n.mu.Lock()
	n.timeoutStreak++
	trip := n.timeoutStreak >= n.clusterCfg.DegradedThreshold && n.state == HealthReady
	n.mu.Unlock()

	n.metrics.RecordTimeout(n.cfg.Name)
	if trip {
		n.setState(HealthDegraded, "consecutive command timeouts")
	}
}

// recordSuccess resets the degrade counter after a completed round-trip.
func (n *Node) recordSuccess() {
	n.mu.Lock()
	n.timeoutStreak = 0
	recovered := n.state == HealthDegraded
	n.mu.Unlock()

	if recovered {
		n.setState(HealthReady, "command round-trip succeeded")
	}
}

// updatePlayer mutates a guild's player through the node's current session.
func (n *Node) updatePlayer(ctx context.Context, guildID string, update playerUpdateRequest, noReplace bool) error {
	sessionID := n.SessionID()
	if sessionID == "" {
		return ErrNotConnected
	}
	return n.rest.updatePlayer(ctx, sessionID, guildID, update, noReplace)
}

// destroyPlayer removes a guild's player from the node's current session.
func (n *Node) destroyPlayer(ctx context.Context, guildID string) error {
	sessionID := n.SessionID()
	if sessionID == "" {
		return ErrNotConnected
	}
	return n.rest.destroyPlayer(ctx, sessionID, guildID)
}

// loadTracks resolves an identifier on this node. Loading does not need
// a socket session, only REST credentials.
func (n *Node) loadTracks(ctx context.Context, identifier string) (*LoadResult, error) {
	return n.rest.loadTracks(ctx, identifier)
}

// decodeTrack expands an encoded track on this node.
func (n *Node) decodeTrack(ctx context.Context, encoded string) (*Track, error) {
	return n.rest.decodeTrack(ctx, encoded)
}

// info fetches the node's version and source manager inventory.
func (n *Node) info(ctx context.Context) (*NodeInfo, error) {
	return n.rest.info(ctx)
}

// fetchStats pulls statistics on demand instead of waiting for the next
// pushed frame.
func (n *Node) fetchStats(ctx context.Context) (*Stats, error) {
	return n.rest.stats(ctx)
}

// stop halts the node: aborts any backoff wait, closes the transport and
// waits for the run loop to exit or the context to expire.
func (n *Node) stop(ctx context.Context) error {
	n.stopOnce.Do(func() {
		close(n.done)
		n.mu.RLock()
		transport := n.transport
		n.mu.RUnlock()
		if transport != nil {
			transport.close()
		}
	})

	select {
	case <-n.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// snapshot captures the node's balancing inputs at a point in time.
func (n *Node) snapshot(assignedGuilds int) NodeSnapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return NodeSnapshot{
		Name:           n.cfg.Name,
		State:          n.state,
		Stats:          n.stats,
		AssignedGuilds: assignedGuilds,
	}
}
