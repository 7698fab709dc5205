// Package sse manages Server-Sent Events sessions for the gateway:
// a process-wide client registry, per-connection heartbeats, and
// serialized frame writes.
package sse

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// DefaultHeartbeatInterval is used when no interval is configured.
const DefaultHeartbeatInterval = 5 * time.Second

var clientGauge metric.Int64UpDownCounter

func init() {
	meter := otel.Meter("github.com/thebtf/compliq-mcp/internal/gateway/sse")
	clientGauge, _ = meter.Int64UpDownCounter("compliq.sse.clients",
		metric.WithDescription("Connected SSE clients"))
}

// Client is one connected SSE session. Heartbeats and forwarded events
// share the underlying writer, so every frame goes through mu; writes
// after close are silently dropped.
type Client struct {
	ID string

	writer  http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// WriteEvent writes a single SSE frame. Returns nil without writing if
// the client is already closed.
func (c *Client) WriteEvent(event string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	if _, err := fmt.Fprintf(c.writer, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

// close marks the client closed and releases waiters. Idempotent.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// Done is closed when the client has been removed from the registry.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// SessionObserver is notified on connect and disconnect. The gateway
// uses it to persist session records; a nil observer is valid.
type SessionObserver interface {
	SessionConnected(id string)
	SessionClosed(id string)
}

// Broadcaster owns the process-wide SSE client registry.
type Broadcaster struct {
	clients  map[string]*Client
	mu       sync.RWMutex
	interval time.Duration
	observer SessionObserver
}

// NewBroadcaster creates a broadcaster with the given heartbeat
// interval; zero or negative falls back to DefaultHeartbeatInterval.
func NewBroadcaster(interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Broadcaster{
		clients:  make(map[string]*Client),
		interval: interval,
	}
}

// SetObserver installs the session observer. Must be called before the
// broadcaster starts accepting connections.
func (b *Broadcaster) SetObserver(o SessionObserver) {
	b.observer = o
}

// AddClient registers a new SSE client for w.
func (b *Broadcaster) AddClient(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	client := &Client{
		ID:      uuid.New().String(),
		writer:  w,
		flusher: flusher,
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	b.clients[client.ID] = client
	clientCount := len(b.clients)
	b.mu.Unlock()

	clientGauge.Add(context.Background(), 1)
	if b.observer != nil {
		b.observer.SessionConnected(client.ID)
	}

	log.Debug().
		Str("clientId", client.ID).
		Int("totalClients", clientCount).
		Msg("SSE client connected")

	return client, nil
}

// RemoveClient removes a client from the registry and closes it.
// Removing an already-removed client is a no-op.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	_, existed := b.clients[client.ID]
	if existed {
		delete(b.clients, client.ID)
	}
	clientCount := len(b.clients)
	b.mu.Unlock()

	client.close()

	if !existed {
		return
	}

	clientGauge.Add(context.Background(), -1)
	if b.observer != nil {
		b.observer.SessionClosed(client.ID)
	}

	log.Debug().
		Str("clientId", client.ID).
		Int("totalClients", clientCount).
		Msg("SSE client disconnected")
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Send forwards one event to the client with the given id. Returns
// false if the client is unknown; a failed write removes the client.
func (b *Broadcaster) Send(id, event string, data []byte) bool {
	b.mu.RLock()
	client, ok := b.clients[id]
	b.mu.RUnlock()
	if !ok {
		return false
	}

	if err := client.WriteEvent(event, data); err != nil {
		log.Debug().Str("clientId", id).Err(err).Msg("SSE write failed, removing client")
		b.RemoveClient(client)
		return false
	}
	return true
}

// Broadcast forwards one event to every connected client, in arrival
// order per connection. Dead clients are removed as they fail.
func (b *Broadcaster) Broadcast(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE payload")
		return
	}

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, client := range b.clients {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	for _, client := range clients {
		if err := client.WriteEvent(event, data); err != nil {
			b.RemoveClient(client)
		}
	}
}

// HandleSSE serves one SSE session: emits the connected event, then
// heartbeats until the client aborts, the write fails, or the client is
// removed. Cleanup runs exactly once on every exit path.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client, err := b.AddClient(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	connected, _ := json.Marshal(map[string]string{"clientId": client.ID})
	if err := client.WriteEvent("connected", connected); err != nil {
		return
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			heartbeat, _ := json.Marshal(map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			if err := client.WriteEvent("heartbeat", heartbeat); err != nil {
				log.Debug().Str("clientId", client.ID).Err(err).Msg("Heartbeat write failed")
				return
			}
		}
	}
}
