package lavalink

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	socketWriteWait  = 10 * time.Second
	socketPingPeriod = 30 * time.Second
	readyFrameWait   = 15 * time.Second
)

// FrameKind tags the variants of a decoded socket frame.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameReady
	FramePlayerUpdate
	FrameStats
	FrameEvent
)

func (k FrameKind) String() string {
	switch k {
	case FrameReady:
		return "ready"
	case FramePlayerUpdate:
		return "playerUpdate"
	case FrameStats:
		return "stats"
	case FrameEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Frame is a decoded inbound socket message. Exactly one of the payload
// pointers matching Kind is set.
type Frame struct {
	Kind         FrameKind
	Ready        *ReadyFrame
	PlayerUpdate *PlayerUpdateFrame
	Stats        *Stats
	Event        *EventFrame
}

// ReadyFrame is the first frame a node sends after the handshake. It
// carries the session id every later REST call is scoped to.
type ReadyFrame struct {
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId"`
}

// PlayerUpdateFrame is the periodic per-guild position snapshot.
type PlayerUpdateFrame struct {
	GuildID string      `json:"guildId"`
	State   PlayerState `json:"state"`
}

// Event type discriminators used in event frames.
const (
	eventTrackStart      = "TrackStartEvent"
	eventTrackEnd        = "TrackEndEvent"
	eventTrackException  = "TrackExceptionEvent"
	eventTrackStuck      = "TrackStuckEvent"
	eventWebSocketClosed = "WebSocketClosedEvent"
)

// EventFrame is a lifecycle event pushed by the node. Which fields are
// populated depends on Type; Reason doubles as the track end reason and
// the websocket close reason.
type EventFrame struct {
	Type            string          `json:"type"`
	GuildID         string          `json:"guildId"`
	Track           *Track          `json:"track,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Exception       *TrackException `json:"exception,omitempty"`
	ThresholdMillis int64           `json:"thresholdMs,omitempty"`
	Code            int             `json:"code,omitempty"`
	ByRemote        bool            `json:"byRemote,omitempty"`
}

// decodeFrame parses a raw socket message into a tagged Frame.
func decodeFrame(data []byte) (Frame, error) {
	var envelope struct {
		Op string `json:"op"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Frame{}, errors.Wrap(err, "invalid frame envelope")
	}

	switch envelope.Op {
	case "ready":
		var ready ReadyFrame
		if err := json.Unmarshal(data, &ready); err != nil {
			return Frame{}, errors.Wrap(err, "invalid ready frame")
		}
		return Frame{Kind: FrameReady, Ready: &ready}, nil
	case "playerUpdate":
		var update PlayerUpdateFrame
		if err := json.Unmarshal(data, &update); err != nil {
			return Frame{}, errors.Wrap(err, "invalid playerUpdate frame")
		}
		return Frame{Kind: FramePlayerUpdate, PlayerUpdate: &update}, nil
	case "stats":
		var stats Stats
		if err := json.Unmarshal(data, &stats); err != nil {
			return Frame{}, errors.Wrap(err, "invalid stats frame")
		}
		return Frame{Kind: FrameStats, Stats: &stats}, nil
	case "event":
		var event EventFrame
		if err := json.Unmarshal(data, &event); err != nil {
			return Frame{}, errors.Wrap(err, "invalid event frame")
		}
		return Frame{Kind: FrameEvent, Event: &event}, nil
	default:
		return Frame{Kind: FrameUnknown}, nil
	}
}

// transportSession owns a single websocket connection to a node. It is
// single-use: a reconnect creates a fresh session.
type transportSession struct {
	cfg        NodeConfig
	userID     string
	clientName string
	logger     Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	frames chan Frame

	done      chan struct{}
	readDone  chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	localClose bool
	closeErr   error
}

func newTransportSession(cfg NodeConfig, userID, clientName string, logger Logger) *transportSession {
	return &transportSession{
		cfg:        cfg,
		userID:     userID,
		clientName: clientName,
		logger:     logger,
		frames:     make(chan Frame, 64),
		done:       make(chan struct{}),
		readDone:   make(chan struct{}),
	}
}

// connect dials the node, performs the handshake and blocks until the
// ready frame arrives. On success the receive loop is started and the
// returned ready frame carries the node-assigned session id.
func (t *transportSession) connect(ctx context.Context) (ReadyFrame, error) {
	header := http.Header{}
	header.Set("Authorization", t.cfg.Password)
	header.Set("User-Id", t.userID)
	header.Set("Client-Name", t.clientName)
	if t.cfg.SessionResumeKey != "" {
		header.Set("Session-Resume", t.cfg.SessionResumeKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: readyFrameWait}
	conn, resp, err := dialer.DialContext(ctx, t.cfg.socketURL(), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return ReadyFrame{}, ErrUnauthorized
		}
		return ReadyFrame{}, errors.WithMessagef(ErrUnreachable, "dial %s: %v", t.cfg.socketURL(), err)
	}
	t.conn = conn

	deadline := time.Now().Add(readyFrameWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)

	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return ReadyFrame{}, errors.WithMessagef(ErrUnreachable, "awaiting ready frame: %v", err)
	}

	frame, err := decodeFrame(data)
	if err != nil || frame.Kind != FrameReady {
		conn.Close()
		return ReadyFrame{}, ErrProtocolMismatch
	}

	conn.SetReadDeadline(time.Time{})
	go t.run()
	return *frame.Ready, nil
}

// run reads frames until the connection dies, then closes the frames
// channel so the owner observes the disconnect.
func (t *transportSession) run() {
	go t.pingLoop()
	defer close(t.frames)
	defer close(t.readDone)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.noteClose(err)
			return
		}

		frame, err := decodeFrame(data)
		if err != nil {
			t.logger.Warn("discarding malformed frame", Error(err))
			continue
		}
		if frame.Kind == FrameUnknown {
			t.logger.Debug("ignoring frame with unknown op")
			continue
		}

		select {
		case t.frames <- frame:
		case <-t.done:
			return
		}
	}
}

// pingLoop keeps the connection alive until close or until the read
// loop ends, whichever comes first.
func (t *transportSession) pingLoop() {
	ticker := time.NewTicker(socketPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(socketWriteWait)
			if err := t.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-t.done:
			return
		case <-t.readDone:
			return
		}
	}
}

// noteClose records how the connection ended.
func (t *transportSession) noteClose(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closeErr == nil {
		t.closeErr = err
	}
}

// close sends a close frame and tears the connection down. Safe to call
// more than once.
func (t *transportSession) close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.localClose = true
		t.mu.Unlock()

		close(t.done)
		if t.conn != nil {
			t.writeMu.Lock()
			message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			t.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(socketWriteWait))
			t.writeMu.Unlock()
			t.conn.Close()
		}
	})
}

// closeInfo reports whether the session ended cleanly (local close or a
// normal/going-away close from the node) and the terminal error if not.
func (t *transportSession) closeInfo() (clean bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.localClose {
		return true, nil
	}
	if websocket.IsCloseError(t.closeErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true, t.closeErr
	}
	return false, t.closeErr
}
