package lavalink

import (
	"sync"
	"time"
)

// Event payloads delivered to listeners. Node is always the reporting
// node's name.

// TrackStartEvent fires when a node starts playing a track.
type TrackStartEvent struct {
	Node    string
	GuildID string
	Track   Track
}

// TrackEndEvent fires when a track stops for any reason.
type TrackEndEvent struct {
	Node    string
	GuildID string
	Track   *Track
	Reason  TrackEndReason
}

// TrackExceptionEvent fires when playback fails on the node.
type TrackExceptionEvent struct {
	Node      string
	GuildID   string
	Track     *Track
	Exception TrackException
}

// TrackStuckEvent fires when a track makes no progress past the node's
// threshold.
type TrackStuckEvent struct {
	Node      string
	GuildID   string
	Track     *Track
	Threshold time.Duration
}

// WebSocketClosedEvent fires when the node's voice connection to Discord
// closes for a guild.
type WebSocketClosedEvent struct {
	Node     string
	GuildID  string
	Code     int
	Reason   string
	ByRemote bool
}

// PlayerUpdateEvent carries a periodic position snapshot.
type PlayerUpdateEvent struct {
	Node    string
	GuildID string
	State   PlayerState
}

// StatsEvent carries a node's periodic statistics frame.
type StatsEvent struct {
	Node  string
	Stats Stats
}

// NodeHealthEvent fires on every node health transition.
type NodeHealthEvent struct {
	Node string
	From HealthState
	To   HealthState
}

// EventListener receives client events. Only the non-nil callbacks are
// invoked. Callbacks run on the single dispatch goroutine, so one slow
// listener delays the others but ordering per guild is preserved.
type EventListener struct {
	OnTrackStart      func(TrackStartEvent)
	OnTrackEnd        func(TrackEndEvent)
	OnTrackException  func(TrackExceptionEvent)
	OnTrackStuck      func(TrackStuckEvent)
	OnWebSocketClosed func(WebSocketClosedEvent)
	OnPlayerUpdate    func(PlayerUpdateEvent)
	OnStats           func(StatsEvent)
	OnNodeHealth      func(NodeHealthEvent)
}

type scopedListener struct {
	guildID  string
	listener EventListener
}

// queuedEvent pairs a delivery closure with its routing data. kind is
// only for drop accounting.
type queuedEvent struct {
	guildID string
	kind    string
	deliver func(EventListener)
}

// dispatcher fans events out to listeners through a bounded queue so a
// slow consumer can never stall a node's receive loop. Low-importance
// events are dropped when the queue is full; lifecycle events wait a
// bounded time for space first.
type dispatcher struct {
	queue       chan queuedEvent
	enqueueWait time.Duration
	logger      Logger
	metrics     *MetricsCollector

	mu        sync.RWMutex
	listeners []scopedListener

	done      chan struct{}
	closeOnce sync.Once
	finished  chan struct{}
}

func newDispatcher(queueSize int, enqueueWait time.Duration, logger Logger, metrics *MetricsCollector) *dispatcher {
	d := &dispatcher{
		queue:       make(chan queuedEvent, queueSize),
		enqueueWait: enqueueWait,
		logger:      logger,
		metrics:     metrics,
		done:        make(chan struct{}),
		finished:    make(chan struct{}),
	}
	go d.run()
	return d
}

// addListener registers a listener. An empty guildID receives events for
// all guilds plus node-level events; a guild scope receives only that
// guild's events. Listeners run in registration order.
func (d *dispatcher) addListener(guildID string, listener EventListener) {
	d.mu.Lock()
	d.listeners = append(d.listeners, scopedListener{guildID: guildID, listener: listener})
	d.mu.Unlock()
}

// enqueue queues an event for delivery. Important events wait up to
// enqueueWait for queue space; the rest are dropped immediately when the
// queue is full.
func (d *dispatcher) enqueue(event queuedEvent, important bool) {
	if !important {
		select {
		case d.queue <- event:
		default:
			d.metrics.RecordDroppedEvent(event.kind)
			d.logger.Debug("event queue full, dropping event", String("kind", event.kind))
		}
		return
	}

	timer := time.NewTimer(d.enqueueWait)
	defer timer.Stop()
	select {
	case d.queue <- event:
	case <-timer.C:
		d.metrics.RecordDroppedEvent(event.kind)
		d.logger.Warn("event queue full past deadline, dropping lifecycle event",
			String("kind", event.kind),
			String("guild_id", event.guildID),
		)
	case <-d.done:
	}
}

// run delivers queued events one at a time. A single goroutine keeps
// per-guild ordering intact.
func (d *dispatcher) run() {
	defer close(d.finished)
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.done:
			return
		}
	}
}

func (d *dispatcher) deliver(event queuedEvent) {
	d.mu.RLock()
	listeners := make([]scopedListener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	for _, scoped := range listeners {
		if scoped.guildID != "" && scoped.guildID != event.guildID {
			continue
		}
		d.invoke(scoped.listener, event)
	}
}

// invoke runs one listener, containing panics so a broken listener
// cannot take down delivery to the rest.
func (d *dispatcher) invoke(listener EventListener, event queuedEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event listener panicked",
				String("kind", event.kind),
				String("guild_id", event.guildID),
				Any("panic", r),
			)
		}
	}()
	event.deliver(listener)
}

// close stops delivery. Events still queued are discarded.
func (d *dispatcher) close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	<-d.finished
}
