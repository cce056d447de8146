package feeds

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	liveBufferCap  = 1000
	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 30 * time.Second
)

// LiveFeed subscribes to the platform's live post stream over WebSocket and
// buffers entries until the scheduler polls them. A background goroutine
// owns the connection and reconnects with exponential backoff; Poll never
// blocks on the network.
type LiveFeed struct {
	url    string
	dialer *websocket.Dialer
	logger *log.Logger

	mu     sync.Mutex
	buffer []Entry
}

var _ Source = (*LiveFeed)(nil)

// NewLiveFeed creates a live WebSocket feed source for one stream URL.
func NewLiveFeed(url string, logger *log.Logger) *LiveFeed {
	if logger == nil {
		logger = log.New(os.Stdout, "[live-feed] ", log.LstdFlags)
	}
	return &LiveFeed{
		url:    url,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

// Name implements Source.
func (f *LiveFeed) Name() string { return "live:" + f.url }

// Run owns the WebSocket connection until ctx is cancelled. Callers start it
// once in its own goroutine.
func (f *LiveFeed) Run(ctx context.Context) {
	delay := baseRetryDelay
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
		if err != nil {
			f.logger.Printf("dial %s: %v, retrying in %v", f.url, err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			continue
		}

		f.logger.Printf("connected to %s", f.url)
		delay = baseRetryDelay
		f.readLoop(ctx, conn)
		_ = conn.Close()
	}
}

// readLoop consumes messages until the connection breaks or ctx ends.
func (f *LiveFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadMessage on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.logger.Printf("read: %v", err)
			}
			return
		}

		var post feedPost
		if err := json.Unmarshal(msg, &post); err != nil {
			continue
		}
		e := Entry{ID: post.ID, Author: post.author(), Title: post.Title}
		if t, err := time.Parse(time.RFC3339, post.CreatedAt); err == nil {
			e.PublishedAt = t
		}
		f.push(e)
	}
}

// push appends to the buffer, dropping the oldest entry when full.
func (f *LiveFeed) push(e Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.buffer) >= liveBufferCap {
		f.buffer = f.buffer[1:]
	}
	f.buffer = append(f.buffer, e)
}

// Poll drains up to limit buffered entries, newest first.
func (f *LiveFeed) Poll(ctx context.Context, limit int) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.buffer)
	if n == 0 {
		return nil, nil
	}
	if limit > n {
		limit = n
	}

	out := make([]Entry, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, f.buffer[n-1-i])
	}
	f.buffer = f.buffer[:n-limit]
	return out, nil
}
