package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// sseClient reads data lines from a live reload stream.
type sseClient struct {
	lines chan string
	resp  *http.Response
}

func connect(t *testing.T, url string) *sseClient {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	c := &sseClient{lines: make(chan string, 16), resp: resp}
	go func() {
		defer close(c.lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if line := sc.Text(); line != "" {
				c.lines <- line
			}
		}
	}()
	return c
}

func (c *sseClient) next(t *testing.T) string {
	t.Helper()
	select {
	case line, ok := <-c.lines:
		require.True(t, ok, "stream closed")
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream line")
	}
	return ""
}

func (c *sseClient) event(t *testing.T) ReloadEvent {
	t.Helper()
	for {
		line := c.next(t)
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var ev ReloadEvent
			require.NoError(t, json.Unmarshal([]byte(data), &ev))
			return ev
		}
	}
}

func (c *sseClient) close() {
	_ = c.resp.Body.Close()
	for range c.lines {
	}
}

type hubRecorder struct {
	metrics.NoopRecorder
	mu      sync.Mutex
	reloads map[string]int
	clients int
}

func (r *hubRecorder) IncReload(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reloads == nil {
		r.reloads = map[string]int{}
	}
	r.reloads[kind]++
}

func (r *hubRecorder) SetLiveReloadClients(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = n
}

func TestHubDeliversBroadcasts(t *testing.T) {
	rec := &hubRecorder{}
	hub := NewLiveReloadHub(rec, time.Hour)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Shutdown()

	a, b := connect(t, srv.URL), connect(t, srv.URL)
	defer a.close()
	defer b.close()
	assert.Equal(t, ": connected", a.next(t))
	assert.Equal(t, ": connected", b.next(t))
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(ReloadEvent{Kind: ReloadCSS, Paths: []string{"css/main.css"}})
	hub.Broadcast(ReloadEvent{})

	for _, c := range []*sseClient{a, b} {
		first := c.event(t)
		assert.Equal(t, ReloadCSS, first.Kind)
		assert.Equal(t, []string{"css/main.css"}, first.Paths)
		second := c.event(t)
		assert.Equal(t, ReloadPage, second.Kind)
		assert.Greater(t, second.ID, first.ID)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, map[string]int{"css": 1, "page": 1}, rec.reloads)
	assert.Equal(t, 2, rec.clients)
}

func TestHubSendsHeartbeats(t *testing.T) {
	hub := NewLiveReloadHub(nil, 10*time.Millisecond)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Shutdown()

	c := connect(t, srv.URL)
	defer c.close()
	assert.Equal(t, ": connected", c.next(t))
	assert.Equal(t, ": ping", c.next(t))
}

func TestHubRemovesDisconnectedClients(t *testing.T) {
	hub := NewLiveReloadHub(nil, time.Hour)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Shutdown()

	c := connect(t, srv.URL)
	c.next(t)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	c.close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubShutdownEndsStreams(t *testing.T) {
	hub := NewLiveReloadHub(nil, time.Hour)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	c := connect(t, srv.URL)
	c.next(t)
	hub.Shutdown()

	select {
	case _, ok := <-c.lines:
		assert.False(t, ok, "stream must end after shutdown")
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after shutdown")
	}
	_ = c.resp.Body.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/livereload", nil)
	hub.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
