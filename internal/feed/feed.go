// Package feed delivers raw gaze lines from a tracker bridge to any number
// of subscribers.
//
// A feed reads newline-delimited messages from one source (a serial port, a
// UDP socket, a fixture file) and fans every line out to subscribed
// channels. The session consumes one subscription; the admin tail page
// consumes another.
package feed

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
)

var ErrWriteFailed = errors.New("failed to write to feed")

// SubscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind starts losing lines instead of stalling the feed.
const SubscriberBuffer = 256

// Feed is a source of gaze lines.
type Feed interface {
	// Subscribe creates a new channel for receiving lines. The ID is used
	// to identify the channel when unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes and closes a subscriber channel.
	Unsubscribe(string)
	// Monitor reads from the source and publishes lines until the context
	// is cancelled or the source is exhausted.
	Monitor(context.Context) error
	// Close closes all subscriber channels and the source.
	Close() error
	// AttachAdminRoutes attaches admin debugging endpoints under /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	_, _ = crand.Read(b)
	return hex.EncodeToString(b)
}

// fanout is the subscriber registry shared by every feed implementation.
type fanout struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
	dropped     atomic.Int64
	published   atomic.Int64
}

func newFanout() *fanout {
	return &fanout{subscribers: make(map[string]chan string)}
}

func (f *fanout) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, SubscriberBuffer)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closing {
		// Already closing: hand back a closed channel so callers don't block.
		close(ch)
		return id, ch
	}
	f.subscribers[id] = ch
	return id, ch
}

func (f *fanout) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subscribers[id]; ok {
		close(ch)
		delete(f.subscribers, id)
	}
}

// publish delivers line to every subscriber. It reports false once the feed
// is closing.
func (f *fanout) publish(line string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closing {
		return false
	}
	f.published.Add(1)
	for _, ch := range f.subscribers {
		select {
		case ch <- line:
		default:
			// if the channel is full skip so as not to block the reader
			f.dropped.Add(1)
		}
	}
	return true
}

// closeAll marks the fanout closed and closes every subscriber. It reports
// false if it was already closed.
func (f *fanout) closeAll() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closing {
		return false
	}
	f.closing = true
	for id, ch := range f.subscribers {
		close(ch)
		delete(f.subscribers, id)
	}
	return true
}

// Stats reports how many lines were published and how many subscriber
// deliveries were dropped because a channel was full.
type Stats struct {
	Published int64 `json:"published"`
	Dropped   int64 `json:"dropped"`
}

func (f *fanout) Stats() Stats {
	return Stats{Published: f.published.Load(), Dropped: f.dropped.Load()}
}

// Pump subscribes to f and calls handle for every line until ctx is done or
// the feed closes its channel. Handler errors are passed to onError, which
// may be nil.
func Pump(ctx context.Context, f Feed, handle func(string) error, onError func(line string, err error)) {
	id, ch := f.Subscribe()
	defer f.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-ch:
			if !ok {
				return
			}
			if err := handle(line); err != nil && onError != nil {
				onError(line, err)
			}
		}
	}
}
