// Command gaze-replay runs a recorded gaze fixture through a detector
// session offline and prints the tagged event log followed by a summary.
//
// Sample timestamps drive a mock clock, so task timeouts and other timers
// behave as they did during the recording.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/banshee-data/reading.mode/internal/config"
	"github.com/banshee-data/reading.mode/internal/db"
	"github.com/banshee-data/reading.mode/internal/eventlog"
	"github.com/banshee-data/reading.mode/internal/feed"
	"github.com/banshee-data/reading.mode/internal/gaze"
	"github.com/banshee-data/reading.mode/internal/session"
	"github.com/banshee-data/reading.mode/internal/timeutil"
)

func main() {
	fixture := flag.String("fixture", "", "fixture file to replay (required)")
	configPath := flag.String("config", "", "tuning config JSON (defaults are built in)")
	dbPath := flag.String("db", "", "optional sqlite DB to record the replayed session into")
	quiet := flag.Bool("quiet", false, "print only the summary")
	flag.Parse()

	if *fixture == "" {
		log.Fatal("--fixture is required")
	}
	lines, err := feed.ReadLines(*fixture)
	if err != nil {
		log.Fatalf("failed to read fixture: %v", err)
	}

	tuning := config.DefaultTuningConfig()
	if *configPath != "" {
		if tuning, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	var events io.Writer = os.Stdout
	if *quiet {
		events = io.Discard
	}

	var store *db.DB
	if *dbPath != "" {
		if store, err = db.NewDB(*dbPath); err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer store.Close()
	}

	res, err := replay(lines, session.ConfigFromTuning(tuning), events, store)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	res.print(os.Stdout)
}

// replayEpoch anchors the mock clock. Fixture timestamps are relative to
// the tracker's own epoch, so only their differences matter.
var replayEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type result struct {
	SessionID string
	Lines     int
	Rejected  int
	Duration  time.Duration
	State     session.State
	Switches  []session.ModeChange
	Written   int64
}

// replay feeds lines to a fresh session in order. Events are written to
// events; when store is non-nil the session is recorded into it as well.
func replay(lines []string, cfg session.Config, events io.Writer, store *db.DB) (*result, error) {
	clock := timeutil.NewMockClock(replayEpoch)
	sess := session.New(cfg, session.WithClock(clock))

	res := &result{SessionID: sess.ID(), Lines: len(lines)}
	sess.AddEventObserver(eventlog.NewWriter(nopCloser{events}))
	sess.AddObserver(session.ObserverFuncs{
		Mode: func(mc session.ModeChange) { res.Switches = append(res.Switches, mc) },
	})

	var rec *db.Recorder
	if store != nil {
		var err error
		if rec, err = db.NewRecorder(store, sess.ID(), sess.StartedAt(), "replay"); err != nil {
			return nil, err
		}
		sess.AddObserver(rec)
	}

	var last float64
	for _, line := range lines {
		// Advance the clock to the sample time before handing the line over
		// so timers fire in recording order.
		if msg, err := gaze.ParseMessage(line); err == nil && msg.Kind == gaze.MessageGaze {
			if last != 0 && msg.Sample.TimestampMs > last {
				step := time.Duration((msg.Sample.TimestampMs - last) * float64(time.Millisecond))
				clock.Advance(step)
				res.Duration += step
			}
			last = msg.Sample.TimestampMs
		}
		if err := sess.HandleLine(line); err != nil {
			res.Rejected++
		}
		if rec != nil {
			rec.Flush()
		}
	}

	res.State = sess.Snapshot()
	if rec != nil {
		rec.Flush()
		res.Written, _ = rec.Stats()
		if err := store.EndSession(sess.ID(), clock.Now()); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *result) print(w io.Writer) {
	st := r.State.Stats
	fmt.Fprintf(w, "\nsession %s: %d lines over %s\n", r.SessionID, r.Lines, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  samples=%d no_gaze=%d suspended=%d rejected=%d scrolls=%d\n",
		st.Samples, st.NoGaze, st.Suspended, r.Rejected, st.Scrolls)
	fmt.Fprintf(w, "  fixations=%d switches=%d final=%s scores=%s\n",
		st.Fixations, st.Switches, r.State.Mode, r.State.Scores)
	for _, mc := range r.Switches {
		at := time.Duration(mc.TimestampMs-replayEpoch.UnixMilli()) * time.Millisecond
		fmt.Fprintf(w, "  %10s  %s -> %s (%s)\n", at, mc.From, mc.To, mc.Cause)
	}
	if r.Written > 0 {
		fmt.Fprintf(w, "  recorded %d rows\n", r.Written)
	}
}

// nopCloser keeps eventlog.Writer from closing stdout.
type nopCloser struct{ io.Writer }
