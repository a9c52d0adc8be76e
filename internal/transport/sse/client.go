package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const (
	// Time between keepalive comments
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 64
)

// SnapshotFunc returns the event and payload sent to a client when it subscribes
type SnapshotFunc func(ctx context.Context) (string, any, error)

// Client is one subscribed SSE stream
type Client struct {
	remoteAddr  string
	connectedAt time.Time
	send        chan message
}

func newClient(remoteAddr string) *Client {
	return &Client{
		remoteAddr:  remoteAddr,
		connectedAt: time.Now(),
		send:        make(chan message, sendBufferSize),
	}
}

// Handler serves the feed as a text/event-stream
type Handler struct {
	feed     *Feed
	snapshot SnapshotFunc
}

// NewHandler creates a Handler. snapshot may be nil.
func NewHandler(feed *Feed, snapshot SnapshotFunc) *Handler {
	return &Handler{feed: feed, snapshot: snapshot}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := newClient(r.RemoteAddr)
	if !h.feed.subscribe(client) {
		http.Error(w, "Feed closed", http.StatusServiceUnavailable)
		return
	}
	defer h.feed.unsubscribe(client)

	w.WriteHeader(http.StatusOK)
	h.stream(r.Context(), w, flusher, client)
}

// stream writes the snapshot, then every message published after it was read.
// Messages queued before the read are older than the snapshot and are skipped.
func (h *Handler) stream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, client *Client) {
	var covered uint64
	if h.snapshot != nil {
		covered = h.feed.Sequence()
		event, payload, err := h.snapshot(ctx)
		if err == nil {
			if data, err := json.Marshal(payload); err == nil {
				_, _ = w.Write(formatMessage(event, string(data)))
			}
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				return
			}
			if msg.seq <= covered {
				continue
			}
			if _, err := w.Write(msg.data); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-ctx.Done():
			return
		}
	}
}
