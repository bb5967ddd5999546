// Package events streams session state changes to browsers over WebSocket.
// Frames are JSON text messages unless the client negotiates the CBOR
// subprotocol, in which case they are binary CBOR messages.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"

	"github.com/onnwee/viewfinder/internal/session"
)

// Subprotocols a client may request.
const (
	SubprotocolJSON = "viewfinder.json"
	SubprotocolCBOR = "viewfinder.cbor"
)

// Defaults for HubConfig.
const (
	DefaultPingInterval = 30 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultBuffer       = 64
)

// Source is the event source for one session.
type Source interface {
	Subscribe(buffer int) (<-chan session.Event, func())
	Snapshot(ctx context.Context) (session.Snapshot, error)
}

// HubConfig configures a Hub.
type HubConfig struct {
	// AllowedOrigins lists origins permitted to open a stream. Empty allows
	// same-origin requests only; "*" allows any origin.
	AllowedOrigins []string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	Buffer         int
}

// Hub upgrades requests to WebSocket streams and tracks open connections
// per session.
type Hub struct {
	cfg      HubConfig
	upgrader websocket.Upgrader
	cborMode cbor.EncMode
	logger   *slog.Logger

	mu          sync.RWMutex
	connections map[string]int
}

// NewHub creates a Hub.
func NewHub(cfg HubConfig, logger *slog.Logger) (*Hub, error) {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}

	mode, err := cbor.EncOptions{
		Time:          cbor.TimeRFC3339Nano,
		Sort:          cbor.SortCanonical,
		NilContainers: cbor.NilContainerAsNull,
	}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to build cbor encoder: %w", err)
	}

	h := &Hub{
		cfg:         cfg,
		cborMode:    mode,
		logger:      logger,
		connections: make(map[string]int),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		Subprotocols:    []string{SubprotocolCBOR, SubprotocolJSON},
		CheckOrigin:     h.checkOrigin,
	}
	return h, nil
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(h.cfg.AllowedOrigins, "*") || slices.Contains(h.cfg.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Encode renders evt for the given subprotocol.
func (h *Hub) Encode(evt session.Event, subprotocol string) (int, []byte, error) {
	if subprotocol == SubprotocolCBOR {
		var buf bytes.Buffer
		if err := h.cborMode.NewEncoder(&buf).Encode(evt); err != nil {
			return 0, nil, fmt.Errorf("failed to encode cbor event: %w", err)
		}
		return websocket.BinaryMessage, buf.Bytes(), nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode json event: %w", err)
	}
	return websocket.TextMessage, data, nil
}

// Serve upgrades the request and streams events from src until the client
// disconnects or the session closes. The stream starts with a snapshot
// event taken after subscribing; bus events the snapshot already covers are
// skipped. Serve blocks for the life of the connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string, src Source) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade websocket connection: %w", err)
	}
	events, unsub := src.Subscribe(h.cfg.Buffer)
	h.track(sessionID, 1)

	readDone := make(chan struct{})
	defer func() {
		unsub()
		conn.Close()
		<-readDone
		h.track(sessionID, -1)
		h.logger.Info("event stream closed", slog.String("session_id", sessionID))
	}()

	proto := conn.Subprotocol()
	h.logger.Info("event stream opened",
		slog.String("session_id", sessionID),
		slog.String("subprotocol", proto),
	)

	// Clients are not expected to send anything; reading detects
	// disconnects and services pongs.
	pongWait := h.cfg.PingInterval * 2
	go func() {
		defer close(readDone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Warn("websocket connection closed unexpectedly",
						slog.String("session_id", sessionID),
						slog.String("error", err.Error()),
					)
				}
				return
			}
		}
	}()

	write := func(evt session.Event) error {
		mt, data, err := h.Encode(evt, proto)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
		return conn.WriteMessage(mt, data)
	}

	initial, err := src.Snapshot(r.Context())
	if err != nil {
		h.closeWith(conn, websocket.CloseGoingAway, "session closed")
		return fmt.Errorf("failed to snapshot session: %w", err)
	}
	if err := write(session.Event{
		Type:      session.EventSnapshot,
		SessionID: sessionID,
		Timestamp: initial.UpdatedAt,
		Snapshot:  initial,
	}); err != nil {
		return err
	}

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				h.closeWith(conn, websocket.CloseGoingAway, "session closed")
				return nil
			}
			if evt.Type != session.EventClosed && evt.Snapshot.Version <= initial.Version {
				continue
			}
			if err := write(evt); err != nil {
				return err
			}
			if evt.Type == session.EventClosed {
				h.closeWith(conn, websocket.CloseNormalClosure, "session closed")
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-readDone:
			return nil
		}
	}
}

func (h *Hub) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.cfg.WriteTimeout))
}

func (h *Hub) track(sessionID string, delta int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[sessionID] += delta
	if h.connections[sessionID] <= 0 {
		delete(h.connections, sessionID)
	}
}

// ConnectionCount returns the number of open streams for a session.
func (h *Hub) ConnectionCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connections[sessionID]
}

// Total returns the number of open streams across all sessions.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.connections {
		n += c
	}
	return n
}
