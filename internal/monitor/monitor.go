// ABOUTME: WebSocket status feed for watching sync cycles from a browser
// ABOUTME: Broadcasts JSON cycle events to connected clients, off by default
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one observable moment of a sync or display cycle.
type Event struct {
	CycleID   string    `json:"cycle_id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"` // sync, refresh, calibration, error

	Server    string  `json:"server,omitempty"`
	OffsetMs  float64 `json:"offset_ms,omitempty"`
	LatencyMs int64   `json:"latency_ms,omitempty"`
	DriftPPM  float64 `json:"drift_ppm,omitempty"`
	Aging     int     `json:"aging,omitempty"`
	BatteryPC int     `json:"battery_pct,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// sendBuffer is how many events a client may fall behind before the feed
// starts shedding its oldest queued event.
const sendBuffer = 16

// client is one connected feed consumer with its outbound queue.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Monitor serves the feed on /events.
type Monitor struct {
	addr     string
	upgrader websocket.Upgrader

	httpServer *http.Server

	clients   map[*client]struct{}
	clientsMu sync.Mutex
}

// New creates a monitor bound to addr, e.g. ":8390".
func New(addr string) *Monitor {
	return &Monitor{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Start begins serving. Non-blocking.
func (m *Monitor) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", m.handleEvents)
	m.httpServer = &http.Server{Addr: m.addr, Handler: mux}

	go func() {
		if err := m.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[MON] serve: %v", err)
		}
	}()
	log.Printf("[MON] status feed on ws://%s/events", m.addr)
	return nil
}

func (m *Monitor) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[MON] upgrade: %v", err)
		return
	}
	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	m.clientsMu.Lock()
	m.clients[cl] = struct{}{}
	n := len(m.clients)
	m.clientsMu.Unlock()
	log.Printf("[MON] client joined (%d connected)", n)

	go m.writePump(cl)

	// Reader loop exists only to notice disconnects.
	go func() {
		defer m.drop(cl)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// writePump drains one client's queue onto its socket. It owns all writes
// to the connection; exits when the queue closes or a write fails.
func (m *Monitor) writePump(cl *client) {
	defer m.drop(cl)
	for payload := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// drop unregisters a client and closes its queue. Safe to call more than
// once; the queue is only closed while the client is still registered.
func (m *Monitor) drop(cl *client) {
	m.clientsMu.Lock()
	if _, ok := m.clients[cl]; ok {
		delete(m.clients, cl)
		close(cl.send)
	}
	m.clientsMu.Unlock()
	cl.conn.Close()
}

// Publish queues an event for every connected client and returns without
// touching a socket. A client whose queue is full sheds its oldest event.
func (m *Monitor) Publish(ev Event) {
	if m == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[MON] marshal: %v", err)
		return
	}

	m.clientsMu.Lock()
	for cl := range m.clients {
		select {
		case cl.send <- payload:
		default:
			select {
			case <-cl.send:
			default:
			}
			select {
			case cl.send <- payload:
			default:
			}
		}
	}
	m.clientsMu.Unlock()
}

// Stop shuts the feed down.
func (m *Monitor) Stop() error {
	if m == nil || m.httpServer == nil {
		return nil
	}
	m.clientsMu.Lock()
	for cl := range m.clients {
		delete(m.clients, cl)
		close(cl.send)
		cl.conn.Close()
	}
	m.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("monitor shutdown: %w", err)
	}
	return nil
}
