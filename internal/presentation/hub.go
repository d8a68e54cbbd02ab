// Package presentation pushes detector output to the reading front end over
// a websocket and accepts scroll and manual-mode messages from it.
package presentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/reading.mode/internal/mode"
	"github.com/banshee-data/reading.mode/internal/monitoring"
	"github.com/banshee-data/reading.mode/internal/saccade"
	"github.com/banshee-data/reading.mode/internal/session"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// clientBuffer is the number of outbound messages queued per client.
	clientBuffer = 64
)

// Outbound message types.
const (
	TypeState       = "state"
	TypeGaze        = "gaze"
	TypeFixation    = "fixation"
	TypeMode        = "mode"
	TypeCalibration = "calibration"
	TypeError       = "error"
)

// Inbound message types. TypeMode is accepted in both directions.
const (
	TypeScroll = "scroll"
	// ModeAuto in an inbound mode message returns to automatic detection.
	ModeAuto = "auto"
)

// ErrHubClosed is returned by ServeHTTP after Close.
var ErrHubClosed = errors.New("presentation hub closed")

// Controller is the part of the session the front end may drive.
type Controller interface {
	Snapshot() session.State
	Scroll(position float64)
	SetManualMode(mode.Mode)
	SetAutomaticMode()
}

// Envelope is the outbound wire format.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ClientMessage is the inbound wire format.
type ClientMessage struct {
	Type     string   `json:"type"`
	Position *float64 `json:"position,omitempty"`
	Mode     string   `json:"mode,omitempty"`
}

// HubConfig configures a Hub.
type HubConfig struct {
	// GazeEvery forwards one gaze sample in N; 0 disables gaze forwarding.
	GazeEvery  int
	PongWait   time.Duration
	PingPeriod time.Duration
}

// DefaultHubConfig forwards every third sample (about 11 Hz at 33 Hz input).
func DefaultHubConfig() HubConfig {
	pongWait := 60 * time.Second
	return HubConfig{
		GazeEvery:  3,
		PongWait:   pongWait,
		PingPeriod: (pongWait * 9) / 10,
	}
}

// Hub fans session events out to websocket clients.
type Hub struct {
	cfg      HubConfig
	ctrl     Controller
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	gazeSeen atomic.Int64
	dropped  atomic.Int64
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub. ctrl may be nil, in which case inbound messages are
// rejected.
func NewHub(ctrl Controller, cfg HubConfig) *Hub {
	def := DefaultHubConfig()
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = (cfg.PongWait * 9) / 10
	}
	return &Hub{
		cfg:  cfg,
		ctrl: ctrl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The front end is served from a different local port.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns the number of messages dropped for slow clients.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("[presentation] upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	monitoring.Logf("[presentation] client connected from %s", r.RemoteAddr)

	if h.ctrl != nil {
		h.sendTo(c, Envelope{Type: TypeState, Data: h.ctrl.Snapshot()})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(c)
	}()
	h.readPump(c)
	h.remove(c)
	<-done
	monitoring.Logf("[presentation] client %s disconnected", r.RemoteAddr)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) readPump(c *client) {
	_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				monitoring.Logf("[presentation] read error: %v", err)
			}
			return
		}
		if err := h.handle(raw); err != nil {
			h.sendTo(c, Envelope{Type: TypeError, Data: err.Error()})
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle applies one inbound message to the controller.
func (h *Hub) handle(raw []byte) error {
	if h.ctrl == nil {
		return errors.New("no session attached")
	}
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	switch msg.Type {
	case TypeScroll:
		if msg.Position == nil {
			return errors.New("scroll message without position")
		}
		h.ctrl.Scroll(*msg.Position)
	case TypeMode:
		if msg.Mode == ModeAuto {
			h.ctrl.SetAutomaticMode()
			return nil
		}
		m, err := mode.ParseMode(msg.Mode)
		if err != nil {
			return err
		}
		h.ctrl.SetManualMode(m)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

func (h *Hub) sendTo(c *client, env Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		monitoring.Logf("[presentation] failed to encode %s message: %v", env.Type, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- b:
	default:
		h.dropped.Add(1)
	}
}

// Broadcast sends env to every connected client. Slow clients lose
// messages rather than stalling the session.
func (h *Hub) Broadcast(env Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		monitoring.Logf("[presentation] failed to encode %s message: %v", env.Type, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	return nil
}

func (h *Hub) OnGaze(e session.GazeEvent) {
	if h.cfg.GazeEvery <= 0 {
		return
	}
	if n := h.gazeSeen.Add(1); n%int64(h.cfg.GazeEvery) != 0 {
		return
	}
	h.Broadcast(Envelope{Type: TypeGaze, Data: e})
}

func (h *Hub) OnFixation(e session.FixationEvent) {
	h.Broadcast(Envelope{Type: TypeFixation, Data: e})
}

func (h *Hub) OnModeChange(e session.ModeChange) {
	h.Broadcast(Envelope{Type: TypeMode, Data: e})
}

func (h *Hub) OnCalibration(_ string, c saccade.Calibration) {
	h.Broadcast(Envelope{Type: TypeCalibration, Data: c})
}
