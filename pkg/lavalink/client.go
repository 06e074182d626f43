package lavalink

import (
	"context"
	"strings"
	"time"
)

// Client is the public entry point: one Client drives one node cluster
// and every guild player on it.
type Client struct {
	cfg        *ClusterConfig
	logger     Logger
	metrics    *MetricsCollector
	selector   Selector
	voiceReady VoiceReadyFunc
	cluster    *Cluster
}

// Option customizes a Client at construction time.
type Option func(*Client)

// WithLogger replaces the logger built from the logging configuration.
func WithLogger(logger Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithSelector replaces the default lowest-load node selector.
func WithSelector(selector Selector) Option {
	return func(c *Client) { c.selector = selector }
}

// WithVoiceReadyFunc registers a callback fired when a guild's voice
// connection comes up, once per connection.
func WithVoiceReadyFunc(fn VoiceReadyFunc) Option {
	return func(c *Client) { c.voiceReady = fn }
}

// WithMetrics replaces the metrics collector.
func WithMetrics(metrics *MetricsCollector) Option {
	return func(c *Client) { c.metrics = metrics }
}

// New validates the configuration, builds the cluster and starts
// connecting to the configured nodes.
func New(cfg *ClusterConfig, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = DefaultClusterConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      cfg,
		selector: NewLowestLoadSelector(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = NewStructuredLogger(cfg.Logging).With(String("component", "lavalink_client"))
	}
	if c.metrics == nil {
		c.metrics = NewMetricsCollector()
	}

	cluster, err := newCluster(cfg, c.logger, c.metrics, c.selector, c.voiceReady)
	if err != nil {
		return nil, err
	}
	c.cluster = cluster

	c.logger.Info("client started",
		Int("nodes", len(cfg.Nodes)),
		String("selector", c.selector.Name()),
		Bool("auto_failover", cfg.AutoFailover),
	)
	return c, nil
}

// PlayOptions tune a Play call. The zero value plays from the start at
// the player's current volume.
type PlayOptions struct {
	// StartTime seeks into the track before playback begins.
	StartTime time.Duration
	// EndTime stops playback early when positive.
	EndTime time.Duration
	// Volume sets the player volume when positive, clamped to 0..1000.
	Volume int
	// Paused starts the track paused.
	Paused bool
	// NoReplace keeps the current track if one is already playing.
	NoReplace bool
}

// Play starts a track in a guild. The guild must have voice credentials
// (fed through VoiceServerUpdate/VoiceStateUpdate) before the first play.
func (c *Client) Play(ctx context.Context, guildID string, track Track, opts *PlayOptions) error {
	if opts == nil {
		opts = &PlayOptions{}
	}

	player, ok := c.cluster.store.get(guildID)
	if !ok || !player.Voice.complete() {
		return ErrNoVoiceState
	}

	node, err := c.cluster.nodeForGuild(guildID)
	if err != nil {
		return err
	}

	volume := player.Volume
	if opts.Volume > 0 {
		volume = clampVolume(opts.Volume)
	}

	// Optimistic update; node events reconcile if the command fails.
	c.cluster.store.update(guildID, func(p *GuildPlayer) {
		p.Track = &track
		p.Position = opts.StartTime
		p.Paused = opts.Paused
		p.Volume = volume
	})

	encoded := track.Encoded
	position := opts.StartTime.Milliseconds()
	paused := opts.Paused
	update := playerUpdateRequest{
		Track:    &trackUpdate{Encoded: &encoded},
		Position: &position,
		Volume:   &volume,
		Paused:   &paused,
		Voice: &voiceUpdate{
			Token:     player.Voice.Token,
			Endpoint:  player.Voice.Endpoint,
			SessionID: player.Voice.SessionID,
		},
	}
	if opts.EndTime > 0 {
		endTime := opts.EndTime.Milliseconds()
		update.EndTime = &endTime
	}

	return c.cluster.correlator.execute(ctx, node, "play", guildID, func(ctx context.Context) error {
		return node.updatePlayer(ctx, guildID, update, opts.NoReplace)
	})
}

// Pause suspends playback in a guild.
func (c *Client) Pause(ctx context.Context, guildID string) error {
	return c.setPaused(ctx, guildID, true)
}

// Resume continues paused playback in a guild.
func (c *Client) Resume(ctx context.Context, guildID string) error {
	return c.setPaused(ctx, guildID, false)
}

func (c *Client) setPaused(ctx context.Context, guildID string, paused bool) error {
	node, err := c.cluster.assignedNode(guildID)
	if err != nil {
		return err
	}
	c.cluster.store.update(guildID, func(p *GuildPlayer) {
		p.Paused = paused
	})
	update := playerUpdateRequest{Paused: &paused}
	return c.cluster.correlator.execute(ctx, node, "pause", guildID, func(ctx context.Context) error {
		return node.updatePlayer(ctx, guildID, update, false)
	})
}

// Stop ends playback in a guild without destroying the player.
func (c *Client) Stop(ctx context.Context, guildID string) error {
	node, err := c.cluster.assignedNode(guildID)
	if err != nil {
		return err
	}
	c.cluster.store.update(guildID, func(p *GuildPlayer) {
		p.Track = nil
		p.Position = 0
	})
	update := playerUpdateRequest{Track: &trackUpdate{Encoded: nil}}
	return c.cluster.correlator.execute(ctx, node, "stop", guildID, func(ctx context.Context) error {
		return node.updatePlayer(ctx, guildID, update, false)
	})
}

// Seek jumps to a position in the playing track.
func (c *Client) Seek(ctx context.Context, guildID string, position time.Duration) error {
	node, err := c.cluster.assignedNode(guildID)
	if err != nil {
		return err
	}
	c.cluster.store.update(guildID, func(p *GuildPlayer) {
		p.Position = position
	})
	millis := position.Milliseconds()
	update := playerUpdateRequest{Position: &millis}
	return c.cluster.correlator.execute(ctx, node, "seek", guildID, func(ctx context.Context) error {
		return node.updatePlayer(ctx, guildID, update, false)
	})
}

// SetVolume changes the guild's player volume, clamped to 0..1000.
func (c *Client) SetVolume(ctx context.Context, guildID string, volume int) error {
	node, err := c.cluster.assignedNode(guildID)
	if err != nil {
		return err
	}
	volume = clampVolume(volume)
	c.cluster.store.update(guildID, func(p *GuildPlayer) {
		p.Volume = volume
	})
	update := playerUpdateRequest{Volume: &volume}
	return c.cluster.correlator.execute(ctx, node, "volume", guildID, func(ctx context.Context) error {
		return node.updatePlayer(ctx, guildID, update, false)
	})
}

// SetFilters replaces the guild player's filter chain.
func (c *Client) SetFilters(ctx context.Context, guildID string, filters Filters) error {
	node, err := c.cluster.assignedNode(guildID)
	if err != nil {
		return err
	}
	c.cluster.store.update(guildID, func(p *GuildPlayer) {
		p.Filters = &filters
	})
	update := playerUpdateRequest{Filters: &filters}
	return c.cluster.correlator.execute(ctx, node, "filters", guildID, func(ctx context.Context) error {
		return node.updatePlayer(ctx, guildID, update, false)
	})
}

// Disconnect destroys the guild's player on its node and forgets all of
// the guild's state, voice credentials included.
func (c *Client) Disconnect(ctx context.Context, guildID string) error {
	node, err := c.cluster.assignedNode(guildID)
	if err == nil {
		destroyErr := c.cluster.correlator.execute(ctx, node, "destroy", guildID, func(ctx context.Context) error {
			return node.destroyPlayer(ctx, guildID)
		})
		if destroyErr != nil {
			c.logger.Warn("player destroy failed",
				String("guild_id", guildID),
				String("node", node.Name()),
				Error(destroyErr),
			)
		}
	}
	c.cluster.unassign(guildID)
	return nil
}

// VoiceServerUpdate feeds a Discord voice server update into the guild's
// credentials. Endpoints arriving with a wss:// prefix are normalized.
func (c *Client) VoiceServerUpdate(guildID, endpoint, token string) {
	endpoint = strings.TrimPrefix(endpoint, "wss://")

	c.cluster.store.upsert(guildID, func(p *GuildPlayer) {
		p.Voice.Endpoint = endpoint
		p.Voice.Token = token
	})
	c.pushVoiceUpdate(guildID)
}

// VoiceStateUpdate feeds the bot's own voice session id for a guild.
func (c *Client) VoiceStateUpdate(guildID, sessionID string) {
	c.cluster.store.upsert(guildID, func(p *GuildPlayer) {
		p.Voice.SessionID = sessionID
	})
	c.pushVoiceUpdate(guildID)
}

// pushVoiceUpdate forwards completed credentials to the guild's node so
// a mid-session voice server migration takes effect immediately.
func (c *Client) pushVoiceUpdate(guildID string) {
	player, ok := c.cluster.store.get(guildID)
	if !ok || !player.Voice.complete() {
		return
	}
	node, err := c.cluster.assignedNode(guildID)
	if err != nil {
		return
	}

	update := playerUpdateRequest{
		Voice: &voiceUpdate{
			Token:     player.Voice.Token,
			Endpoint:  player.Voice.Endpoint,
			SessionID: player.Voice.SessionID,
		},
	}
	go func() {
		err := c.cluster.correlator.execute(context.Background(), node, "voice-update", guildID, func(ctx context.Context) error {
			return node.updatePlayer(ctx, guildID, update, false)
		})
		if err != nil {
			c.logger.Warn("voice update push failed",
				String("guild_id", guildID),
				String("node", node.Name()),
				Error(err),
			)
		}
	}()
}

// LoadTracks resolves a track identifier (URL or search query) on the
// least loaded node. Loading never binds a guild.
func (c *Client) LoadTracks(ctx context.Context, identifier string) (*LoadResult, error) {
	node, err := c.cluster.selectNode()
	if err != nil {
		return nil, err
	}

	var result *LoadResult
	err = c.cluster.correlator.execute(ctx, node, "loadtracks", "", func(ctx context.Context) error {
		loaded, loadErr := node.loadTracks(ctx, identifier)
		if loadErr != nil {
			return loadErr
		}
		result = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DecodeTrack expands an encoded track string into its metadata.
func (c *Client) DecodeTrack(ctx context.Context, encoded string) (*Track, error) {
	node, err := c.cluster.selectNode()
	if err != nil {
		return nil, err
	}

	var track *Track
	err = c.cluster.correlator.execute(ctx, node, "decodetrack", "", func(ctx context.Context) error {
		decoded, decodeErr := node.decodeTrack(ctx, encoded)
		if decodeErr != nil {
			return decodeErr
		}
		track = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return track, nil
}

// AddListener registers an event listener. guildID scopes it to one
// guild; pass "" for everything including node-level events.
func (c *Client) AddListener(guildID string, listener EventListener) {
	c.cluster.dispatcher.addListener(guildID, listener)
}

// Player returns a snapshot of a guild's player state.
func (c *Client) Player(guildID string) (GuildPlayer, bool) {
	return c.cluster.store.get(guildID)
}

// Nodes returns the current view of every registered node.
func (c *Client) Nodes() []NodeSnapshot {
	return c.cluster.Snapshots()
}

// NodeStatus returns the health state of a node by name.
func (c *Client) NodeStatus(name string) (HealthState, error) {
	node, ok := c.cluster.Node(name)
	if !ok {
		return HealthFailed, ErrNodeNotFound
	}
	return node.State(), nil
}

// NodeInfo fetches a node's version and source manager inventory.
func (c *Client) NodeInfo(ctx context.Context, name string) (*NodeInfo, error) {
	node, ok := c.cluster.Node(name)
	if !ok {
		return nil, ErrNodeNotFound
	}
	return node.info(ctx)
}

// NodeStats fetches a node's statistics on demand, bypassing the cached
// frame from the socket.
func (c *Client) NodeStats(ctx context.Context, name string) (*Stats, error) {
	node, ok := c.cluster.Node(name)
	if !ok {
		return nil, ErrNodeNotFound
	}
	return node.fetchStats(ctx)
}

// AddNode registers and connects a node at runtime.
func (c *Client) AddNode(cfg NodeConfig) error {
	return c.cluster.AddNode(cfg)
}

// RemoveNode disconnects a node and fails its guilds over.
func (c *Client) RemoveNode(ctx context.Context, name string) error {
	return c.cluster.RemoveNode(ctx, name)
}

// Metrics exposes the client's metrics collector.
func (c *Client) Metrics() *MetricsCollector {
	return c.metrics
}

// Shutdown closes every node session and stops event delivery.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.cluster.Shutdown(ctx)
}

func clampVolume(volume int) int {
	if volume < 0 {
		return 0
	}
	if volume > 1000 {
		return 1000
	}
	return volume
}
