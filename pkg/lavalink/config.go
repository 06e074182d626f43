package lavalink

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// NodeConfig identifies a single backend node. Values are fixed at
// registration time; changing a node means removing and re-adding it.
type NodeConfig struct {
	// Name is the operator-chosen label, unique within the cluster.
	Name     string
	Host     string
	Port     int
	Password string
	// Secure selects wss/https instead of ws/http.
	Secure bool
	// SessionResumeKey is offered to the node on connect so it can keep
	// players alive across short disconnects. Optional.
	SessionResumeKey string
}

// socketURL builds the websocket endpoint for this node.
func (c NodeConfig) socketURL() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/v4/websocket", scheme, c.Host, c.Port)
}

// restURL builds the REST base URL for this node.
func (c NodeConfig) restURL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string // debug, info, warn, error, silent
	Format string // json, text
	Output string // stdout, stderr
}

// ClusterConfig configures the client and its node cluster.
type ClusterConfig struct {
	// UserID is the Discord user id of the bot, sent on the handshake.
	UserID string
	// ClientName identifies this client to nodes.
	ClientName string
	// Nodes registered at startup. More can be added later via AddNode.
	Nodes []NodeConfig

	// AutoFailover re-homes guilds to another node when their node
	// disconnects, resuming playback where it left off.
	AutoFailover bool

	// CommandTimeout bounds every node command round-trip.
	CommandTimeout time.Duration
	// ConnectTimeout bounds a single connect attempt including the
	// handshake and the wait for the ready frame.
	ConnectTimeout time.Duration
	// ConnectAttempts is how many immediate attempts a node gets before
	// it is declared failed at startup.
	ConnectAttempts int
	// DegradedThreshold is the consecutive command timeout count that
	// marks a node degraded.
	DegradedThreshold int
	// ReconnectCeiling is the reconnect attempt count after which a
	// disconnected node is declared permanently failed.
	ReconnectCeiling int
	// BackoffInitial and BackoffMax bound the exponential reconnect delay.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// ShutdownGrace bounds how long Shutdown waits for node loops to stop.
	ShutdownGrace time.Duration

	// EventQueueSize is the dispatcher queue depth.
	EventQueueSize int
	// EventEnqueueWait is how long lifecycle events wait for queue space
	// before being dropped.
	EventEnqueueWait time.Duration

	Logging LoggingConfig
}

// DefaultClusterConfig returns a configuration with sensible defaults.
// UserID and Nodes must still be filled in by the caller.
func DefaultClusterConfig() *ClusterConfig {
	return &ClusterConfig{
		ClientName:        "lavago/1.0",
		AutoFailover:      true,
		CommandTimeout:    10 * time.Second,
		ConnectTimeout:    15 * time.Second,
		ConnectAttempts:   3,
		DegradedThreshold: 3,
		ReconnectCeiling:  10,
		BackoffInitial:    time.Second,
		BackoffMax:        time.Minute,
		ShutdownGrace:     10 * time.Second,
		EventQueueSize:    256,
		EventEnqueueWait:  2 * time.Second,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// LoadFromEnvironment overrides configuration from environment variables.
// Node connection details come from LAVALINK_HOST, LAVALINK_PORT,
// LAVALINK_PASSWORD, LAVALINK_SECURE and LAVALINK_NODE_NAME; tuning knobs
// from the LAVAGO_* variables below.
func (c *ClusterConfig) LoadFromEnvironment() {
	if v := os.Getenv("DISCORD_USER_ID"); v != "" {
		c.UserID = v
	}
	if v := os.Getenv("LAVAGO_CLIENT_NAME"); v != "" {
		c.ClientName = v
	}
	if v := os.Getenv("LAVAGO_AUTO_FAILOVER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.AutoFailover = b
		}
	}
	if v := os.Getenv("LAVAGO_COMMAND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CommandTimeout = d
		}
	}
	if v := os.Getenv("LAVAGO_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ConnectTimeout = d
		}
	}
	if v := os.Getenv("LAVAGO_CONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ConnectAttempts = n
		}
	}
	if v := os.Getenv("LAVAGO_DEGRADED_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DegradedThreshold = n
		}
	}
	if v := os.Getenv("LAVAGO_RECONNECT_CEILING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ReconnectCeiling = n
		}
	}
	if v := os.Getenv("LAVAGO_BACKOFF_INITIAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.BackoffInitial = d
		}
	}
	if v := os.Getenv("LAVAGO_BACKOFF_MAX"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.BackoffMax = d
		}
	}
	if v := os.Getenv("LAVAGO_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LAVAGO_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	if node, ok := NodeConfigFromEnvironment(); ok {
		c.Nodes = append(c.Nodes, node)
	}
}

// NodeConfigFromEnvironment reads a single node definition from the
// LAVALINK_* variables. The second return is false when no host is set.
func NodeConfigFromEnvironment() (NodeConfig, bool) {
	host := os.Getenv("LAVALINK_HOST")
	if host == "" {
		return NodeConfig{}, false
	}

	node := NodeConfig{
		Name:             os.Getenv("LAVALINK_NODE_NAME"),
		Host:             host,
		Port:             2333,
		Password:         os.Getenv("LAVALINK_PASSWORD"),
		SessionResumeKey: os.Getenv("LAVALINK_RESUME_KEY"),
	}
	if node.Name == "" {
		node.Name = host
	}
	if v := os.Getenv("LAVALINK_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			node.Port = p
		}
	}
	if v := os.Getenv("LAVALINK_SECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			node.Secure = b
		}
	}
	return node, true
}

// Validate checks the configuration for errors
func (c *ClusterConfig) Validate() error {
	var errs []string

	if c.UserID == "" {
		errs = append(errs, "user id must be set")
	}
	if c.ClientName == "" {
		errs = append(errs, "client name must be set")
	}
	if c.CommandTimeout <= 0 {
		errs = append(errs, "command timeout must be positive")
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, "connect timeout must be positive")
	}
	if c.ConnectAttempts < 1 {
		errs = append(errs, "connect attempts must be at least 1")
	}
	if c.DegradedThreshold < 1 {
		errs = append(errs, "degraded threshold must be at least 1")
	}
	if c.ReconnectCeiling < 1 {
		errs = append(errs, "reconnect ceiling must be at least 1")
	}
	if c.BackoffInitial <= 0 {
		errs = append(errs, "initial backoff must be positive")
	}
	if c.BackoffMax < c.BackoffInitial {
		errs = append(errs, "max backoff must be at least the initial backoff")
	}
	if c.EventQueueSize < 1 {
		errs = append(errs, "event queue size must be at least 1")
	}

	seen := make(map[string]bool)
	for i, node := range c.Nodes {
		if err := node.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("node %d: %v", i, err))
		}
		if seen[node.Name] {
			errs = append(errs, fmt.Sprintf("duplicate node name %q", node.Name))
		}
		seen[node.Name] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks a single node definition.
func (c NodeConfig) Validate() error {
	var errs []string

	if c.Name == "" {
		errs = append(errs, "name must be set")
	}
	if c.Host == "" {
		errs = append(errs, "host must be set")
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
