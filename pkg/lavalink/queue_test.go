package lavalink

import (
	"context"
	"testing"
	"time"
)

func TestQueueOrder(t *testing.T) {
	queue := &Queue{}
	queue.Add(QueuedTrack{Track: Track{Encoded: "one"}})
	queue.Add(QueuedTrack{Track: Track{Encoded: "two"}})
	queue.Add(QueuedTrack{Track: Track{Encoded: "three"}})

	if queue.Len() != 3 {
		t.Fatalf("expected 3 queued, got %d", queue.Len())
	}

	for _, want := range []string{"one", "two", "three"} {
		item, ok := queue.Next()
		if !ok {
			t.Fatalf("queue ran dry before %s", want)
		}
		if item.Track.Encoded != want {
			t.Errorf("expected %s, got %s", want, item.Track.Encoded)
		}
	}
	if _, ok := queue.Next(); ok {
		t.Error("empty queue should report no next track")
	}
}

func TestQueueListIsCopy(t *testing.T) {
	queue := &Queue{}
	queue.Add(QueuedTrack{Track: Track{Encoded: "one"}})

	listed := queue.List()
	listed[0].Track.Encoded = "mutated"

	item, _ := queue.Next()
	if item.Track.Encoded != "one" {
		t.Error("List must return a copy")
	}
}

func TestQueueManagerQueuesWhilePlaying(t *testing.T) {
	client := newTestClient(t, testClusterConfig())
	qm := NewQueueManager(client, NullLogger())

	// Guild already has a playing track.
	client.cluster.store.upsert("g1", func(p *GuildPlayer) {
		p.Track = &Track{Encoded: "playing"}
	})

	started, err := qm.Enqueue(context.Background(), "g1", QueuedTrack{
		Track:       Track{Encoded: "queued", Info: TrackInfo{Title: "Queued"}},
		RequestedBy: "user-1",
		AddedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if started {
		t.Error("track must queue behind current playback, not start")
	}
	if qm.Get("g1").Len() != 1 {
		t.Errorf("expected 1 queued track, got %d", qm.Get("g1").Len())
	}
}

func TestQueueManagerClearAndDrop(t *testing.T) {
	client := newTestClient(t, testClusterConfig())
	qm := NewQueueManager(client, NullLogger())

	qm.Get("g1").Add(QueuedTrack{Track: Track{Encoded: "one"}})
	qm.Clear("g1")
	if qm.Get("g1").Len() != 0 {
		t.Error("Clear left tracks behind")
	}

	qm.Get("g1").Add(QueuedTrack{Track: Track{Encoded: "two"}})
	qm.Drop("g1")
	if qm.Get("g1").Len() != 0 {
		t.Error("Drop left the old queue in place")
	}
}

func TestTrackEndReasonAdvancement(t *testing.T) {
	advancing := []TrackEndReason{TrackEndFinished, TrackEndLoadFailed}
	for _, reason := range advancing {
		if !reason.MayStartNext() {
			t.Errorf("%s should advance the queue", reason)
		}
	}
	holding := []TrackEndReason{TrackEndStopped, TrackEndReplaced, TrackEndCleanup}
	for _, reason := range holding {
		if reason.MayStartNext() {
			t.Errorf("%s must not advance the queue", reason)
		}
	}
}
