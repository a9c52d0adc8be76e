package sse

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// message is one formatted SSE message. seq grows by one per Publish.
type message struct {
	seq  uint64
	data []byte
}

// Feed fans discovery events out to every subscribed SSE client
type Feed struct {
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	pubMu sync.Mutex
	seq   uint64

	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	closeOnce  sync.Once
}

// NewFeed creates a Feed. Call Run to start delivering.
func NewFeed(logger *slog.Logger) *Feed {
	return &Feed{
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("component", "sse")),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
	}
}

// Run is the feed's event loop. It returns once Close is called.
func (f *Feed) Run() {
	f.logger.Info("sse feed started")
	for {
		select {
		case client := <-f.register:
			f.mu.Lock()
			f.clients[client] = true
			count := len(f.clients)
			f.mu.Unlock()
			f.logger.Info("sse client subscribed",
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count))

		case client := <-f.unregister:
			f.mu.Lock()
			if _, ok := f.clients[client]; !ok {
				f.mu.Unlock()
				continue
			}
			delete(f.clients, client)
			close(client.send)
			count := len(f.clients)
			f.mu.Unlock()
			f.logger.Info("sse client unsubscribed",
				slog.String("remote_addr", client.remoteAddr),
				slog.Duration("connection_duration", time.Since(client.connectedAt)),
				slog.Int("total_clients", count))

		case msg := <-f.broadcast:
			f.mu.RLock()
			dropped := 0
			for client := range f.clients {
				select {
				case client.send <- msg:
				default:
					dropped++
				}
			}
			f.mu.RUnlock()
			if dropped > 0 {
				f.logger.Warn("sse message dropped - client buffer full", slog.Int("dropped", dropped))
			}

		case <-f.done:
			f.mu.Lock()
			count := len(f.clients)
			for client := range f.clients {
				close(client.send)
				delete(f.clients, client)
			}
			f.mu.Unlock()
			f.logger.Info("sse feed stopped", slog.Int("disconnected_clients", count))
			return
		}
	}
}

// Publish encodes the payload as JSON and queues it for every client
func (f *Feed) Publish(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		f.logger.Error("failed to encode sse payload",
			slog.String("event", event),
			slog.Any("error", err))
		return
	}

	f.pubMu.Lock()
	defer f.pubMu.Unlock()
	f.seq++
	select {
	case f.broadcast <- message{seq: f.seq, data: formatMessage(event, string(data))}:
	default:
		f.logger.Warn("sse broadcast dropped - feed buffer full", slog.String("event", event))
	}
}

// Sequence returns the seq of the latest Publish. Every message with a
// seq at or below it was queued before the call.
func (f *Feed) Sequence() uint64 {
	f.pubMu.Lock()
	defer f.pubMu.Unlock()
	return f.seq
}

// Close stops the feed and disconnects every client. It is safe to call more than once.
func (f *Feed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// ClientCount returns the number of subscribed clients
func (f *Feed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

func (f *Feed) subscribe(client *Client) bool {
	select {
	case f.register <- client:
		return true
	case <-f.done:
		return false
	}
}

func (f *Feed) unsubscribe(client *Client) {
	select {
	case f.unregister <- client:
	case <-f.done:
	}
}

// formatMessage renders one SSE message, prefixing every data line
func formatMessage(event, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteByte('\n')
	for _, line := range splitLines(data) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// splitLines splits on \n, dropping \r and a trailing empty line
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
