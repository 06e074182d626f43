package lavalink

import (
	"context"
	"sync"
	"time"
)

// QueuedTrack is one queue entry with its request metadata.
type QueuedTrack struct {
	Track       Track
	RequestedBy string
	AddedAt     time.Time
}

// Queue holds the pending tracks for one guild.
type Queue struct {
	mu    sync.RWMutex
	items []QueuedTrack
}

// Add appends a track to the queue.
func (q *Queue) Add(item QueuedTrack) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// Next pops the first queued track.
func (q *Queue) Next() (QueuedTrack, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return QueuedTrack{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// List returns a copy of the queued tracks in order.
func (q *Queue) List() []QueuedTrack {
	q.mu.RLock()
	defer q.mu.RUnlock()
	items := make([]QueuedTrack, len(q.items))
	copy(items, q.items)
	return items
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Clear drops all queued tracks.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// QueueManager layers per-guild queues on top of a Client and advances
// them from track end events instead of polling the player.
type QueueManager struct {
	client *Client
	logger Logger

	mu     sync.RWMutex
	queues map[string]*Queue
}

// NewQueueManager builds a manager bound to the client and registers the
// auto-advance listener.
func NewQueueManager(client *Client, logger Logger) *QueueManager {
	qm := &QueueManager{
		client: client,
		logger: logger,
		queues: make(map[string]*Queue),
	}
	client.AddListener("", EventListener{
		OnTrackEnd: qm.onTrackEnd,
	})
	return qm
}

// Get returns the guild's queue, creating it on first use.
func (qm *QueueManager) Get(guildID string) *Queue {
	qm.mu.RLock()
	queue := qm.queues[guildID]
	qm.mu.RUnlock()
	if queue != nil {
		return queue
	}

	qm.mu.Lock()
	defer qm.mu.Unlock()
	if queue = qm.queues[guildID]; queue == nil {
		queue = &Queue{}
		qm.queues[guildID] = queue
	}
	return queue
}

// Enqueue plays the track immediately when the guild is idle, otherwise
// appends it to the queue. Returns true when playback started now.
func (qm *QueueManager) Enqueue(ctx context.Context, guildID string, item QueuedTrack) (bool, error) {
	player, ok := qm.client.Player(guildID)
	if ok && player.Track != nil {
		qm.Get(guildID).Add(item)
		return false, nil
	}

	if err := qm.client.Play(ctx, guildID, item.Track, nil); err != nil {
		return false, err
	}
	return true, nil
}

// Skip stops the current track and starts the next queued one, if any.
func (qm *QueueManager) Skip(ctx context.Context, guildID string) (QueuedTrack, bool, error) {
	next, ok := qm.Get(guildID).Next()
	if !ok {
		return QueuedTrack{}, false, qm.client.Stop(ctx, guildID)
	}
	if err := qm.client.Play(ctx, guildID, next.Track, nil); err != nil {
		return QueuedTrack{}, false, err
	}
	return next, true, nil
}

// Clear drops the guild's pending tracks without touching playback.
func (qm *QueueManager) Clear(guildID string) {
	qm.Get(guildID).Clear()
}

// Drop removes the guild's queue entirely, for use on disconnect.
func (qm *QueueManager) Drop(guildID string) {
	qm.mu.Lock()
	delete(qm.queues, guildID)
	qm.mu.Unlock()
}

// onTrackEnd advances the queue when a track ran to completion. Stops,
// replacements and cleanups leave the queue alone since something else
// is already driving the player.
func (qm *QueueManager) onTrackEnd(event TrackEndEvent) {
	if !event.Reason.MayStartNext() {
		return
	}

	next, ok := qm.Get(event.GuildID).Next()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := qm.client.Play(ctx, event.GuildID, next.Track, nil); err != nil {
		qm.logger.Error("queue auto-advance failed",
			String("guild_id", event.GuildID),
			String("title", next.Track.Info.Title),
			Error(err),
		)
	}
}
