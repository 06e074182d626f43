package lavalink

import (
	"sync"
	"testing"
	"time"
)

func statsEvent(node string) queuedEvent {
	return queuedEvent{
		kind: "stats",
		deliver: func(l EventListener) {
			if l.OnStats != nil {
				l.OnStats(StatsEvent{Node: node})
			}
		},
	}
}

func trackStartEvent(guildID, title string) queuedEvent {
	return queuedEvent{
		guildID: guildID,
		kind:    "trackStart",
		deliver: func(l EventListener) {
			if l.OnTrackStart != nil {
				l.OnTrackStart(TrackStartEvent{GuildID: guildID, Track: Track{Info: TrackInfo{Title: title}}})
			}
		},
	}
}

func TestDispatcherRegistrationOrder(t *testing.T) {
	d := newDispatcher(16, 100*time.Millisecond, NullLogger(), NewMetricsCollector())
	defer d.close()

	var mu sync.Mutex
	var order []string
	listener := func(name string) EventListener {
		return EventListener{
			OnTrackStart: func(e TrackStartEvent) {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
			},
		}
	}
	d.addListener("", listener("first"))
	d.addListener("", listener("second"))
	d.addListener("", listener("third"))

	d.enqueue(trackStartEvent("g1", "song"), true)

	waitFor(t, time.Second, "all listeners to run", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "second", "third"}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestDispatcherPanicIsolation(t *testing.T) {
	d := newDispatcher(16, 100*time.Millisecond, NullLogger(), NewMetricsCollector())
	defer d.close()

	received := make(chan string, 2)
	d.addListener("", EventListener{
		OnTrackStart: func(e TrackStartEvent) {
			panic("listener bug")
		},
	})
	d.addListener("", EventListener{
		OnTrackStart: func(e TrackStartEvent) {
			received <- e.Track.Info.Title
		},
	})

	d.enqueue(trackStartEvent("g1", "survivor"), true)

	select {
	case title := <-received:
		if title != "survivor" {
			t.Errorf("expected survivor, got %s", title)
		}
	case <-time.After(time.Second):
		t.Fatal("second listener never ran after first panicked")
	}

	// Delivery keeps working for later events too.
	d.enqueue(trackStartEvent("g1", "next"), true)
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("dispatcher stopped delivering after a panic")
	}
}

func TestDispatcherGuildScope(t *testing.T) {
	d := newDispatcher(16, 100*time.Millisecond, NullLogger(), NewMetricsCollector())
	defer d.close()

	var mu sync.Mutex
	var scoped, global []string
	d.addListener("g1", EventListener{
		OnTrackStart: func(e TrackStartEvent) {
			mu.Lock()
			scoped = append(scoped, e.GuildID)
			mu.Unlock()
		},
	})
	d.addListener("", EventListener{
		OnTrackStart: func(e TrackStartEvent) {
			mu.Lock()
			global = append(global, e.GuildID)
			mu.Unlock()
		},
	})

	d.enqueue(trackStartEvent("g1", "a"), true)
	d.enqueue(trackStartEvent("g2", "b"), true)

	waitFor(t, time.Second, "global listener to see both guilds", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(global) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if len(scoped) != 1 || scoped[0] != "g1" {
		t.Errorf("scoped listener saw %v, expected only g1", scoped)
	}
}

func TestDispatcherDropsLowImportanceWhenFull(t *testing.T) {
	metrics := NewMetricsCollector()
	d := newDispatcher(1, 50*time.Millisecond, NullLogger(), metrics)
	defer d.close()

	block := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	d.addListener("", EventListener{
		OnStats: func(e StatsEvent) {
			once.Do(func() { close(started) })
			<-block
		},
	})

	// First event occupies the dispatch goroutine.
	d.enqueue(statsEvent("a"), false)
	<-started
	// Second fills the queue, third must be dropped immediately.
	d.enqueue(statsEvent("b"), false)
	d.enqueue(statsEvent("c"), false)

	metric, ok := metrics.GetMetric("lavalink.events.dropped", map[string]string{"kind": "stats"})
	if !ok || metric.Value < 1 {
		t.Error("expected a dropped stats event to be counted")
	}

	// A lifecycle event waits, then drops too once the deadline passes.
	d.enqueue(trackStartEvent("g1", "stuck"), true)
	metric, ok = metrics.GetMetric("lavalink.events.dropped", map[string]string{"kind": "trackStart"})
	if !ok || metric.Value < 1 {
		t.Error("expected the lifecycle event to drop after the bounded wait")
	}

	close(block)
}
