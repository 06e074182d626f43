// Package lavalink is a cluster-aware client for Lavalink-style audio
// streaming nodes. It keeps the node protocol state machine, the guild
// player state and the cluster load balancing in one place so a Discord
// bot only has to forward voice credentials and issue playback commands.
//
// # Core Components
//
//   - Client: the public facade tying everything together
//   - Cluster: node registry, guild assignment map and failover
//   - Node: per-node health state machine and reconnect loop
//   - transport session: websocket handshake, frame decoding, keepalive
//   - player store: per-guild playback state with linearized updates
//   - dispatcher: bounded event fan-out to registered listeners
//   - correlator: exactly-once command resolution with timeouts
//
// # Usage Example
//
//	cfg := lavalink.DefaultClusterConfig()
//	cfg.UserID = "1234567890"
//	cfg.Nodes = []lavalink.NodeConfig{
//		{Name: "main", Host: "localhost", Port: 2333, Password: "youshallnotpass"},
//	}
//
//	client, err := lavalink.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Shutdown(context.Background())
//
//	client.AddListener("", lavalink.EventListener{
//		OnTrackStart: func(e lavalink.TrackStartEvent) {
//			log.Printf("now playing %s in %s", e.Track.Info.Title, e.GuildID)
//		},
//	})
//
//	// Voice credentials come from the Discord gateway.
//	client.VoiceStateUpdate(guildID, sessionID)
//	client.VoiceServerUpdate(guildID, endpoint, token)
//
//	result, err := client.LoadTracks(ctx, "ytsearch:never gonna give you up")
//	tracks, _ := result.Tracks()
//	err = client.Play(ctx, guildID, tracks[0], nil)
//
// # Node Health
//
// Every node moves through a fixed set of states: connecting, ready,
// degraded, disconnected, reconnecting and failed. Consecutive command
// timeouts degrade a node so the balancer avoids it; a completed
// round-trip restores it. A dropped connection triggers capped
// exponential backoff with jitter, and a node that exhausts its
// reconnect budget is declared failed for good. Guilds on a lost node
// are unassigned immediately and, with AutoFailover on, re-homed to the
// cheapest usable node with playback resumed in place.
//
// # Events
//
// Node frames are fanned out through a bounded queue. Position and
// statistics updates are dropped under pressure; lifecycle events such
// as track starts and ends wait a bounded time for space. Listeners run
// in registration order on a single goroutine and panics in one listener
// never reach another.
//
// # Configuration
//
// ClusterConfig carries every tunable with defaults from
// DefaultClusterConfig. LoadFromEnvironment overrides from LAVALINK_*
// and LAVAGO_* variables, and Validate must pass before New accepts the
// configuration.
package lavalink
