package lavalink

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors returned by the client. Callers match them with errors.Is.
var (
	// ErrUnauthorized means a node rejected the configured password during
	// the websocket handshake or on a REST call.
	ErrUnauthorized = errors.New("node rejected credentials")

	// ErrUnreachable means the node could not be reached at the transport
	// level (dial failure, connection refused, DNS).
	ErrUnreachable = errors.New("node unreachable")

	// ErrProtocolMismatch means the node answered the handshake with
	// something other than the expected ready frame.
	ErrProtocolMismatch = errors.New("unexpected handshake response")

	// ErrNotConnected means a command needed a live node session and the
	// node has none (no session id, or the node is down).
	ErrNotConnected = errors.New("node has no active session")

	// ErrCommandTimeout means a command did not resolve within the
	// configured command timeout. The command is not retried.
	ErrCommandTimeout = errors.New("command timed out")

	// ErrNoAvailableNode means no node in the cluster is in a usable state.
	ErrNoAvailableNode = errors.New("no available node")

	// ErrNoVoiceState means a play was requested before Discord voice
	// credentials arrived for the guild.
	ErrNoVoiceState = errors.New("no voice credentials for guild")

	// ErrClusterClosed means the cluster has been shut down.
	ErrClusterClosed = errors.New("cluster is closed")

	// ErrNodeExists means a node with the same name is already registered.
	ErrNodeExists = errors.New("node already registered")

	// ErrNodeNotFound means no node with the given name is registered.
	ErrNodeNotFound = errors.New("node not found")

	// ErrPlayerNotFound means the guild has no player to operate on.
	ErrPlayerNotFound = errors.New("guild has no player")
)

// CommandError is a command the node received and rejected, carrying the
// HTTP status and the node's error body.
type CommandError struct {
	Status  int
	Message string
	Path    string
}

func (e *CommandError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("node rejected command (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("node rejected command (%d)", e.Status)
}
