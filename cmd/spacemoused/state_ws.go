package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// State feed: websocket broadcast of daemon state
// ============================================================================
//
// Config GUIs subscribe here instead of polling STATUS over the control
// socket. Wire format is JSON text frames with an envelope {type, ts, data};
// the first frame on connect is "state_init" carrying the latest snapshot,
// after which "profile_changed" / "profiles_reloaded" frames follow as the
// daemon loop publishes them.
//
// Constraints:
//   - The loop publishes immutable snapshots through Publish and never
//     blocks: slow clients are dropped when their send queue fills.
//   - Feed goroutines never touch daemon state.
// ============================================================================

// StateSnapshot is the externally visible daemon state.
type StateSnapshot struct {
	ActiveProfile string   `json:"active_profile"`
	Profiles      []string `json:"profiles"`
}

type stateEnvelope struct {
	Type string        `json:"type"`
	Ts   time.Time     `json:"ts"`
	Data StateSnapshot `json:"data"`
}

const (
	feedSendBuf      = 16
	feedWriteTimeout = 5 * time.Second
)

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StateFeed accepts websocket subscribers and fans state frames out to them.
type StateFeed struct {
	logger   *slog.Logger
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*feedClient]struct{}
	last    []byte // latest state_init frame for new subscribers
}

// StartStateFeed begins serving the feed on addr. The initial snapshot seeds
// what new subscribers receive before any broadcast happens.
func StartStateFeed(addr string, initial StateSnapshot, logger *slog.Logger) (*StateFeed, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	f := &StateFeed{
		logger:   logger,
		listener: ln,
		clients:  make(map[*feedClient]struct{}),
		upgrader: websocket.Upgrader{
			// Local GUIs only; the listener should be bound to loopback.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	f.last = mustMarshalEnvelope("state_init", initial)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", f.handleWS)
	f.server = &http.Server{Handler: mux}

	go func() {
		if err := f.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("state feed server error", "error", err)
		}
	}()

	logger.Info("state feed listening", "addr", ln.Addr().String())
	return f, nil
}

// Publish fans out a state frame. Non-blocking: clients that cannot keep up
// are disconnected.
func (f *StateFeed) Publish(kind string, snap StateSnapshot) {
	frame := mustMarshalEnvelope(kind, snap)

	f.mu.Lock()
	f.last = mustMarshalEnvelope("state_init", snap)
	for c := range f.clients {
		select {
		case c.send <- frame:
		default:
			f.logger.Warn("state feed client too slow, dropping")
			delete(f.clients, c)
			close(c.send)
		}
	}
	f.mu.Unlock()
}

func (f *StateFeed) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &feedClient{conn: conn, send: make(chan []byte, feedSendBuf)}

	f.mu.Lock()
	f.clients[c] = struct{}{}
	c.send <- f.last
	f.mu.Unlock()

	go f.writePump(c)
	go f.readPump(c)
}

// writePump serializes all writes for one client so a slow client only ever
// blocks its own goroutine.
func (f *StateFeed) writePump(c *feedClient) {
	defer c.conn.Close()
	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			f.drop(c)
			return
		}
	}
}

// readPump discards inbound frames; it exists to process control frames and
// to notice disconnects.
func (f *StateFeed) readPump(c *feedClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			f.drop(c)
			return
		}
	}
}

func (f *StateFeed) drop(c *feedClient) {
	f.mu.Lock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
	f.mu.Unlock()
	c.conn.Close()
}

func (f *StateFeed) Close() error {
	f.mu.Lock()
	for c := range f.clients {
		delete(f.clients, c)
		close(c.send)
		c.conn.Close()
	}
	f.mu.Unlock()
	return f.server.Close()
}

func mustMarshalEnvelope(kind string, snap StateSnapshot) []byte {
	b, err := json.Marshal(stateEnvelope{Type: kind, Ts: time.Now(), Data: snap})
	if err != nil {
		// Envelope contains only strings and a time; marshal cannot fail.
		panic(err)
	}
	return b
}
