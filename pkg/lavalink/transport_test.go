package lavalink

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// nodeConfigFor points a NodeConfig at an httptest server.
func nodeConfigFor(t *testing.T, server *httptest.Server, password string) NodeConfig {
	t.Helper()
	parsed, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parsing server url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(parsed.Host)
	if err != nil {
		t.Fatalf("splitting host: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return NodeConfig{Name: "test", Host: host, Port: port, Password: password}
}

func TestDecodeFrameTagging(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind FrameKind
	}{
		{"ready", `{"op":"ready","resumed":false,"sessionId":"abc"}`, FrameReady},
		{"playerUpdate", `{"op":"playerUpdate","guildId":"g1","state":{"time":1,"position":500,"connected":true,"ping":12}}`, FramePlayerUpdate},
		{"stats", `{"op":"stats","players":3,"playingPlayers":2,"uptime":1000}`, FrameStats},
		{"event", `{"op":"event","type":"TrackEndEvent","guildId":"g1","reason":"finished"}`, FrameEvent},
		{"unknown", `{"op":"somethingNew"}`, FrameUnknown},
	}

	for _, tc := range cases {
		frame, err := decodeFrame([]byte(tc.raw))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if frame.Kind != tc.kind {
			t.Errorf("%s: expected kind %s, got %s", tc.name, tc.kind, frame.Kind)
		}
	}

	if _, err := decodeFrame([]byte("{not json")); err == nil {
		t.Error("malformed frame must error")
	}
}

func TestDecodeFramePayloads(t *testing.T) {
	frame, err := decodeFrame([]byte(`{"op":"ready","resumed":true,"sessionId":"xyz"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Ready == nil || frame.Ready.SessionID != "xyz" || !frame.Ready.Resumed {
		t.Errorf("ready payload wrong: %+v", frame.Ready)
	}

	frame, err = decodeFrame([]byte(`{"op":"event","type":"TrackStuckEvent","guildId":"g1","thresholdMs":4000}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Event == nil || frame.Event.ThresholdMillis != 4000 {
		t.Errorf("event payload wrong: %+v", frame.Event)
	}
}

func TestTransportConnectAndFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("User-Id") == "" || r.Header.Get("Client-Name") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteJSON(map[string]interface{}{"op": "ready", "resumed": false, "sessionId": "sess-1"})
		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		conn.WriteJSON(map[string]interface{}{
			"op": "event", "type": "TrackStartEvent", "guildId": "g1",
			"track": map[string]interface{}{"encoded": "trk", "info": map[string]interface{}{"title": "Song"}},
		})

		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		// Let the client observe the close frame.
		conn.ReadMessage()
	}))
	defer server.Close()

	transport := newTransportSession(nodeConfigFor(t, server, "secret"), "42", "lavago-test", NullLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ready, err := transport.connect(ctx)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if ready.SessionID != "sess-1" {
		t.Errorf("expected session id sess-1, got %q", ready.SessionID)
	}

	// The malformed frame is skipped, the event comes through.
	select {
	case frame := <-transport.frames:
		if frame.Kind != FrameEvent || frame.Event.GuildID != "g1" {
			t.Errorf("unexpected frame: %+v", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}

	// Channel closes when the server closes cleanly.
	select {
	case _, open := <-transport.frames:
		if open {
			t.Error("expected frames channel to close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frames channel never closed")
	}

	clean, _ := transport.closeInfo()
	if !clean {
		t.Error("normal closure should classify as clean")
	}
}

func TestTransportUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	transport := newTransportSession(nodeConfigFor(t, server, "wrong"), "42", "lavago-test", NullLogger())
	_, err := transport.connect(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestTransportUnreachable(t *testing.T) {
	// Grab a port and close it again so nothing listens there.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().(*net.TCPAddr)
	listener.Close()

	cfg := NodeConfig{Name: "gone", Host: "127.0.0.1", Port: addr.Port, Password: "pw"}
	transport := newTransportSession(cfg, "42", "lavago-test", NullLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = transport.connect(ctx)
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}

func TestTransportProtocolMismatch(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Stats before ready violates the handshake contract.
		conn.WriteJSON(map[string]interface{}{"op": "stats", "players": 0})
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	transport := newTransportSession(nodeConfigFor(t, server, "pw"), "42", "lavago-test", NullLogger())
	_, err := transport.connect(context.Background())
	if !errors.Is(err, ErrProtocolMismatch) {
		t.Errorf("expected ErrProtocolMismatch, got %v", err)
	}
}

func TestTransportAbruptClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteJSON(map[string]interface{}{"op": "ready", "resumed": false, "sessionId": "sess-2"})
		// Kill the TCP connection without a close frame.
		conn.UnderlyingConn().Close()
	}))
	defer server.Close()

	transport := newTransportSession(nodeConfigFor(t, server, "pw"), "42", "lavago-test", NullLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := transport.connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case _, open := <-transport.frames:
		if open {
			t.Fatal("expected immediate close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frames channel never closed")
	}

	clean, closeErr := transport.closeInfo()
	if clean {
		t.Error("abrupt close must not classify as clean")
	}
	if closeErr == nil {
		t.Error("abrupt close should carry the terminal error")
	}

	// The read loop's exit is signaled so the ping loop stops without
	// waiting out a full ping period.
	select {
	case <-transport.readDone:
	case <-time.After(time.Second):
		t.Error("read loop exit never signaled")
	}
}
