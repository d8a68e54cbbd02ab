package feed

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/banshee-data/reading.mode/internal/timeutil"
)

// ReplayFeed publishes a fixed list of lines, optionally paced, for
// development without a tracker.
type ReplayFeed struct {
	*fanout
	lines    []string
	interval time.Duration
	loop     bool
	clock    timeutil.Clock
}

// ReplayOption configures a ReplayFeed.
type ReplayOption func(*ReplayFeed)

// WithLoop restarts the replay from the first line when it reaches the end.
func WithLoop() ReplayOption {
	return func(r *ReplayFeed) { r.loop = true }
}

// WithReplayClock sets the clock used for pacing.
func WithReplayClock(c timeutil.Clock) ReplayOption {
	return func(r *ReplayFeed) { r.clock = c }
}

// NewReplayFeed replays lines with interval between them. A zero interval
// publishes as fast as subscribers accept.
func NewReplayFeed(lines []string, interval time.Duration, opts ...ReplayOption) *ReplayFeed {
	r := &ReplayFeed{
		fanout:   newFanout(),
		lines:    lines,
		interval: interval,
		clock:    timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadLines loads a fixture file, skipping blank lines and # comments.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	var lines []string
	scan := bufio.NewScanner(f)
	scan.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return lines, nil
}

// Monitor publishes the lines. Without pacing, lines are delivered with
// back-pressure so a replay does not lose data to a slow subscriber.
func (r *ReplayFeed) Monitor(ctx context.Context) error {
	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := r.clock.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C()
	}

	for {
		for _, line := range r.lines {
			if tick != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-tick:
				}
				if !r.publish(line) {
					return nil
				}
				continue
			}
			if err := r.publishBlocking(ctx, line); err != nil {
				return err
			}
		}
		if !r.loop || len(r.lines) == 0 {
			return nil
		}
	}
}

// publishBlocking waits for room in every subscriber channel. The lock is
// released between attempts so subscribers can still unsubscribe.
func (r *ReplayFeed) publishBlocking(ctx context.Context, line string) error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.subscribers))
	for id := range r.subscribers {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	r.published.Add(1)

	for _, id := range ids {
		for delivered := false; !delivered; {
			r.mu.Lock()
			ch, ok := r.subscribers[id]
			if !ok || r.closing {
				r.mu.Unlock()
				break
			}
			select {
			case ch <- line:
				delivered = true
			default:
			}
			r.mu.Unlock()

			if !delivered {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Millisecond):
				}
			}
		}
	}
	return nil
}

// Close closes all subscribers.
func (r *ReplayFeed) Close() error {
	r.closeAll()
	return nil
}

// AttachAdminRoutes registers the tail page.
func (r *ReplayFeed) AttachAdminRoutes(mux *http.ServeMux) {
	attachTail(mux, r, "replay")
}
