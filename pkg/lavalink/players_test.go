package lavalink

import (
	"reflect"
	"testing"
	"time"
)

func TestPlayerStoreUpdateReturnsPrior(t *testing.T) {
	store := newPlayerStore()
	store.assign("g1", "node-a")

	track := &Track{Encoded: "first", Info: TrackInfo{Title: "First"}}
	prior, ok := store.update("g1", func(p *GuildPlayer) {
		p.Track = track
		p.Position = 30 * time.Second
	})
	if !ok {
		t.Fatal("expected player to exist")
	}
	if prior.Track != nil {
		t.Errorf("prior snapshot should have no track, got %v", prior.Track)
	}

	current, _ := store.get("g1")
	if current.Track == nil || current.Track.Encoded != "first" {
		t.Errorf("update not applied: %+v", current.Track)
	}
	if current.Position != 30*time.Second {
		t.Errorf("expected position 30s, got %v", current.Position)
	}
}

func TestPlayerStoreVersionAdvances(t *testing.T) {
	store := newPlayerStore()
	store.assign("g1", "node-a")

	before, _ := store.get("g1")
	store.update("g1", func(p *GuildPlayer) { p.Paused = true })
	after, _ := store.get("g1")

	if after.Version <= before.Version {
		t.Errorf("version did not advance: before=%d after=%d", before.Version, after.Version)
	}
}

func TestPlayerStoreUpdateMissingGuild(t *testing.T) {
	store := newPlayerStore()
	if _, ok := store.update("nope", func(p *GuildPlayer) {}); ok {
		t.Error("update of unknown guild should report missing")
	}
}

func TestPlayerStoreDefaultVolume(t *testing.T) {
	store := newPlayerStore()
	store.ensure("g1")
	player, _ := store.get("g1")
	if player.Volume != 100 {
		t.Errorf("expected default volume 100, got %d", player.Volume)
	}
}

func TestPlayerStoreUnassignNode(t *testing.T) {
	store := newPlayerStore()
	store.assign("g2", "node-a")
	store.assign("g1", "node-a")
	store.assign("g3", "node-b")

	guilds := store.unassignNode("node-a")
	if !reflect.DeepEqual(guilds, []string{"g1", "g2"}) {
		t.Errorf("expected sorted [g1 g2], got %v", guilds)
	}

	for _, guildID := range guilds {
		player, _ := store.get(guildID)
		if player.Node != "" {
			t.Errorf("guild %s still assigned to %s", guildID, player.Node)
		}
	}

	other, _ := store.get("g3")
	if other.Node != "node-b" {
		t.Errorf("unrelated guild lost its node: %q", other.Node)
	}
}

func TestPlayerStoreCountByNode(t *testing.T) {
	store := newPlayerStore()
	store.assign("g1", "node-a")
	store.assign("g2", "node-a")
	store.assign("g3", "node-b")
	store.ensure("g4")

	counts := store.countByNode()
	if counts["node-a"] != 2 || counts["node-b"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
	if _, ok := counts[""]; ok {
		t.Error("unassigned guilds must not be counted")
	}
}

func TestPlayerStoreClear(t *testing.T) {
	store := newPlayerStore()
	store.assign("g1", "node-a")
	store.clear("g1")
	if _, ok := store.get("g1"); ok {
		t.Error("cleared guild still present")
	}
}
