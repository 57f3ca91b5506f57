package server

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// ReloadKind tells the browser client how to apply a change.
type ReloadKind string

const (
	// ReloadPage reloads the whole page.
	ReloadPage ReloadKind = "page"
	// ReloadCSS swaps stylesheet links in place.
	ReloadCSS ReloadKind = "css"
)

// ReloadEvent is one notification pushed to every connected browser.
type ReloadEvent struct {
	ID    uint64     `json:"id"`
	Kind  ReloadKind `json:"kind"`
	Paths []string   `json:"paths,omitempty"`
}

// Broadcaster pushes reload events to browsers.
type Broadcaster interface {
	Broadcast(ev ReloadEvent)
}

// LiveReloadHub manages server-sent-event clients at /livereload.
type LiveReloadHub struct {
	mu        sync.RWMutex
	nextID    int
	clients   map[int]*lrClient
	closed    bool
	seq       atomic.Uint64
	heartbeat time.Duration
	recorder  metrics.Recorder
}

type lrClient struct {
	id   int
	ch   chan []byte
	done chan struct{}
}

// NewLiveReloadHub creates a hub. A zero heartbeat defaults to 30s.
func NewLiveReloadHub(recorder metrics.Recorder, heartbeat time.Duration) *LiveReloadHub {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &LiveReloadHub{clients: map[int]*lrClient{}, heartbeat: heartbeat, recorder: metrics.OrNoop(recorder)}
}

// Clients returns the number of connected browsers.
func (h *LiveReloadHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *LiveReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	client := &lrClient{ch: make(chan []byte, 8), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	h.recorder.SetLiveReloadClients(len(h.clients))
	h.mu.Unlock()
	defer h.removeClient(client.id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	bw := bufio.NewWriter(w)
	send := func(s string) bool {
		if _, err := bw.WriteString(s); err != nil {
			slog.Debug("livereload write", logfields.Error(err))
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	if !send(": connected\n\n") {
		return
	}

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case <-hb.C:
			if !send(": ping\n\n") {
				return
			}
		case msg := <-client.ch:
			if !send("data: " + string(msg) + "\n\n") {
				return
			}
		}
	}
}

func (h *LiveReloadHub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
		h.recorder.SetLiveReloadClients(len(h.clients))
	}
}

// Broadcast sends ev to every client. Clients whose buffer is full are dropped.
func (h *LiveReloadHub) Broadcast(ev ReloadEvent) {
	ev.ID = h.seq.Add(1)
	if ev.Kind == "" {
		ev.Kind = ReloadPage
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to encode reload event", logfields.Error(err))
		return
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	snapshot := make([]*lrClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- msg:
		case <-c.done:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	h.recorder.IncReload(string(ev.Kind))
	slog.Debug("Live reload broadcast", slog.String("kind", string(ev.Kind)), logfields.Clients(len(snapshot)), slog.Int("dropped", dropped))
}

// Shutdown disconnects every client and ignores later broadcasts.
func (h *LiveReloadHub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.done)
	}
	h.recorder.SetLiveReloadClients(0)
}
