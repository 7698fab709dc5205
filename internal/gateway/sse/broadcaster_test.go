package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// BroadcasterSuite is a test suite for Broadcaster operations.
type BroadcasterSuite struct {
	suite.Suite
	broadcaster *Broadcaster
}

func (s *BroadcasterSuite) SetupTest() {
	s.broadcaster = NewBroadcaster(DefaultHeartbeatInterval)
}

func TestBroadcasterSuite(t *testing.T) {
	suite.Run(t, new(BroadcasterSuite))
}

// mockResponseWriter implements http.ResponseWriter and http.Flusher for testing.
type mockResponseWriter struct {
	header     http.Header
	body       []byte
	statusCode int
	mu         sync.Mutex
}

func newMockResponseWriter() *mockResponseWriter {
	return &mockResponseWriter{
		header:     make(http.Header),
		statusCode: http.StatusOK,
	}
}

func (m *mockResponseWriter) Header() http.Header {
	return m.header
}

func (m *mockResponseWriter) Write(data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = append(m.body, data...)
	return len(data), nil
}

func (m *mockResponseWriter) WriteHeader(statusCode int) {
	m.statusCode = statusCode
}

func (m *mockResponseWriter) Flush() {
	// No-op for testing
}

func (m *mockResponseWriter) GetBody() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.body
}

// TestNewBroadcaster tests broadcaster creation.
func (s *BroadcasterSuite) TestNewBroadcaster() {
	b := NewBroadcaster(0)
	s.NotNil(b)
	s.Equal(DefaultHeartbeatInterval, b.interval)
	s.Equal(0, b.ClientCount())
}

// TestAddClient tests adding clients.
func (s *BroadcasterSuite) TestAddClient() {
	w := newMockResponseWriter()

	client, err := s.broadcaster.AddClient(w)
	s.NoError(err)
	s.NotNil(client)
	s.NotEmpty(client.ID)
	s.Equal(1, s.broadcaster.ClientCount())
}

// TestAddClientNoFlusher tests that a non-streaming writer is rejected.
func (s *BroadcasterSuite) TestAddClientNoFlusher() {
	type plainWriter struct {
		http.ResponseWriter
	}

	_, err := s.broadcaster.AddClient(plainWriter{})
	s.Error(err)
	s.Equal(0, s.broadcaster.ClientCount())
}

// TestRemoveClient tests removing clients.
func (s *BroadcasterSuite) TestRemoveClient() {
	w := newMockResponseWriter()
	client, err := s.broadcaster.AddClient(w)
	s.NoError(err)
	s.Equal(1, s.broadcaster.ClientCount())

	s.broadcaster.RemoveClient(client)
	s.Equal(0, s.broadcaster.ClientCount())

	select {
	case <-client.Done():
		// Expected - channel is closed
	default:
		s.Fail("Done channel should be closed")
	}
}

// TestRemoveClientTwice tests that double removal is a no-op.
func (s *BroadcasterSuite) TestRemoveClientTwice() {
	w := newMockResponseWriter()
	client, err := s.broadcaster.AddClient(w)
	s.NoError(err)

	s.broadcaster.RemoveClient(client)
	s.broadcaster.RemoveClient(client)
	s.Equal(0, s.broadcaster.ClientCount())
}

// TestWriteEventAfterClose tests that writes after close are dropped.
func (s *BroadcasterSuite) TestWriteEventAfterClose() {
	w := newMockResponseWriter()
	client, err := s.broadcaster.AddClient(w)
	s.NoError(err)

	s.broadcaster.RemoveClient(client)

	before := len(w.GetBody())
	s.NoError(client.WriteEvent("message", []byte(`{"x":1}`)))
	s.Equal(before, len(w.GetBody()), "closed client must not receive frames")
}

// TestSend tests targeted event delivery.
func (s *BroadcasterSuite) TestSend() {
	w := newMockResponseWriter()
	client, err := s.broadcaster.AddClient(w)
	s.NoError(err)

	ok := s.broadcaster.Send(client.ID, "message", []byte(`{"jsonrpc":"2.0"}`))
	s.True(ok)

	body := string(w.GetBody())
	s.Contains(body, "event: message\n")
	s.Contains(body, `data: {"jsonrpc":"2.0"}`)
}

// TestSendUnknownClient tests delivery to a missing client.
func (s *BroadcasterSuite) TestSendUnknownClient() {
	ok := s.broadcaster.Send("no-such-client", "message", []byte("{}"))
	s.False(ok)
}

// TestBroadcast tests broadcasting to multiple clients.
func (s *BroadcasterSuite) TestBroadcast() {
	writers := make([]*mockResponseWriter, 3)
	for i := 0; i < 3; i++ {
		writers[i] = newMockResponseWriter()
		_, err := s.broadcaster.AddClient(writers[i])
		s.NoError(err)
	}

	s.broadcaster.Broadcast("notice", map[string]string{"type": "test", "message": "hello"})

	for i, w := range writers {
		body := string(w.GetBody())
		s.Contains(body, "event: notice", "Client %d should receive the event", i)
		s.Contains(body, "hello", "Client %d should receive the payload", i)
	}
}

// TestBroadcastNoClients tests broadcasting with no clients.
func (s *BroadcasterSuite) TestBroadcastNoClients() {
	// Should not panic
	s.broadcaster.Broadcast("notice", map[string]string{"type": "test"})
}

// observerRecorder records session lifecycle notifications.
type observerRecorder struct {
	mu        sync.Mutex
	connected []string
	closed    []string
}

func (o *observerRecorder) SessionConnected(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.connected = append(o.connected, id)
}

func (o *observerRecorder) SessionClosed(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = append(o.closed, id)
}

// TestObserverNotifications tests connect/disconnect callbacks.
func (s *BroadcasterSuite) TestObserverNotifications() {
	obs := &observerRecorder{}
	s.broadcaster.SetObserver(obs)

	w := newMockResponseWriter()
	client, err := s.broadcaster.AddClient(w)
	s.NoError(err)

	s.broadcaster.RemoveClient(client)
	s.broadcaster.RemoveClient(client) // no second notification

	s.Equal([]string{client.ID}, obs.connected)
	s.Equal([]string{client.ID}, obs.closed)
}

// TestClientUniqueIDs tests that clients get unique IDs.
func TestClientUniqueIDs(t *testing.T) {
	b := NewBroadcaster(DefaultHeartbeatInterval)
	ids := make(map[string]bool)

	for i := 0; i < 100; i++ {
		w := newMockResponseWriter()
		client, err := b.AddClient(w)
		require.NoError(t, err)

		assert.False(t, ids[client.ID], "ID %s should be unique", client.ID)
		ids[client.ID] = true
	}
}

// TestHandleSSE tests a full SSE session with heartbeats.
func TestHandleSSE(t *testing.T) {
	b := NewBroadcaster(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/sse", nil).WithContext(ctx)
	w := newMockResponseWriter()

	done := make(chan struct{})
	go func() {
		b.HandleSSE(w, req)
		close(done)
	}()

	// Let the connected event and at least one heartbeat go out
	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleSSE did not return after context cancellation")
	}

	body := string(w.GetBody())
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "clientId")
	assert.Contains(t, body, "event: heartbeat")
	assert.Contains(t, body, "timestamp")
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, 0, b.ClientCount(), "cleanup must run on exit")
}

// TestHandleSSEStopsOnRemoval tests that removal unblocks the handler.
func TestHandleSSEStopsOnRemoval(t *testing.T) {
	b := NewBroadcaster(time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/sse", nil)
	w := newMockResponseWriter()

	done := make(chan struct{})
	go func() {
		b.HandleSSE(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	b.mu.RLock()
	var client *Client
	for _, c := range b.clients {
		client = c
	}
	b.mu.RUnlock()

	b.RemoveClient(client)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleSSE did not return after client removal")
	}
}

// TestConcurrentBroadcast tests concurrent broadcasting.
func TestConcurrentBroadcast(t *testing.T) {
	b := NewBroadcaster(DefaultHeartbeatInterval)

	for i := 0; i < 10; i++ {
		w := newMockResponseWriter()
		_, err := b.AddClient(w)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Broadcast("notice", map[string]int{"index": i})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, b.ClientCount())
}
