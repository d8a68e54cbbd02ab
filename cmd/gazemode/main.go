package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/banshee-data/reading.mode/internal/api"
	"github.com/banshee-data/reading.mode/internal/config"
	"github.com/banshee-data/reading.mode/internal/db"
	"github.com/banshee-data/reading.mode/internal/eventlog"
	"github.com/banshee-data/reading.mode/internal/feed"
	"github.com/banshee-data/reading.mode/internal/monitoring"
	"github.com/banshee-data/reading.mode/internal/presentation"
	"github.com/banshee-data/reading.mode/internal/session"
	"github.com/banshee-data/reading.mode/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	feedKind    = flag.String("feed", "udp", "Gaze source: udp, serial, replay or disabled")
	udpAddr     = flag.String("udp-addr", feed.DefaultUDPAddress, "UDP address the tracker bridge sends to")
	udpRcvBuf   = flag.Int("udp-rcvbuf", 1<<20, "UDP receive buffer in bytes")
	port        = flag.String("port", "/dev/ttyUSB0", "Serial port to use with --feed=serial")
	baudRate    = flag.Int("baud", feed.DefaultBaudRate, "Serial baud rate")
	parity      = flag.String("parity", "N", "Serial parity (N, E or O)")
	fixture     = flag.String("fixture", "", "Fixture file for --feed=replay")
	replayEvery = flag.Duration("replay-interval", 30*time.Millisecond, "Delay between replayed lines (0 replays as fast as the session keeps up)")
	replayLoop  = flag.Bool("replay-loop", false, "Restart the fixture when it ends")
	configPath  = flag.String("config", "", "Tuning config JSON (defaults are built in)")
	dbPath      = flag.String("db", "gaze_sessions.db", "SQLite session store (empty disables persistence)")
	eventLog    = flag.String("event-log", "gaze_events.log", "Tagged event log file (empty disables it)")
	eventLogMB  = flag.Int("event-log-max-mb", 50, "Rotate the event log after this many megabytes")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn or error")
	logFile     = flag.String("log-file", "", "Optional rotating JSON service log")
	gazeEvery   = flag.Int("gaze-every", 3, "Forward one gaze sample in N to websocket clients (0 disables)")
	sessionID   = flag.String("session-id", "", "Session ID (random UUID by default)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("gazemode"))
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	logger, err := monitoring.NewLogger(monitoring.LoggerConfig{
		Level:      *logLevel,
		LogFile:    *logFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
	}, zapcore.Lock(os.Stderr))
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()
	monitoring.SetLogger(monitoring.NewZapLogf(logger))
	monitoring.Logf("starting %s", version.String("gazemode"))

	tuning, err := loadTuning(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	var opts []session.Option
	if *sessionID != "" {
		opts = append(opts, session.WithID(*sessionID))
	}
	sess := session.New(session.ConfigFromTuning(tuning), opts...)
	monitoring.Logf("session %s started", sess.ID())

	gazeFeed, err := buildFeed(feedOptions{
		Kind:           *feedKind,
		UDPAddress:     *udpAddr,
		UDPRcvBuf:      *udpRcvBuf,
		SerialPort:     *port,
		SerialOptions:  feed.PortOptions{BaudRate: *baudRate, Parity: *parity},
		Fixture:        *fixture,
		ReplayInterval: *replayEvery,
		ReplayLoop:     *replayLoop,
	})
	if err != nil {
		log.Fatalf("failed to create gaze feed: %v", err)
	}
	defer gazeFeed.Close()

	if *eventLog != "" {
		w := eventlog.NewFileWriter(eventlog.FileConfig{Path: *eventLog, MaxSizeMB: *eventLogMB, MaxBackups: 10})
		defer w.Close()
		sess.AddEventObserver(w)
	}

	var (
		store    *db.DB
		recorder *db.Recorder
	)
	if *dbPath != "" {
		store, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()

		recorder, err = db.NewRecorder(store, sess.ID(), sess.StartedAt(), *feedKind)
		if err != nil {
			log.Fatalf("failed to record session: %v", err)
		}
		sess.AddObserver(recorder)
	}

	hub := presentation.NewHub(sess, presentation.HubConfig{GazeEvery: *gazeEvery})
	sess.AddObserver(hub)

	// Create a wait group for the HTTP server, feed monitor, session pump and recorder routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the gaze source
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gazeFeed.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("failed to monitor gaze feed: %v", err)
		}
		monitoring.Logf("monitor routine terminated")
	}()

	// subscribe to the feed and pass every line to the session
	wg.Add(1)
	go func() {
		defer wg.Done()
		feed.Pump(ctx, gazeFeed, sess.HandleLine, nil)
		monitoring.Logf("session pump terminated")
	}()

	if recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorder.Run(ctx)
			written, dropped := recorder.Stats()
			monitoring.Logf("recorder stopped: %d writes, %d dropped", written, dropped)
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only from loopback or over Tailscale)
		gazeFeed.AttachAdminRoutes(mux)
		if store != nil {
			store.AttachAdminRoutes(mux)
		}

		var apiStore api.Store
		if store != nil {
			apiStore = store
		}
		apiHandler := api.LoggingMiddleware(api.NewServer(sess, apiStore).ServeMux())
		mux.Handle("/api/", apiHandler)
		mux.Handle("/charts/", apiHandler)
		mux.Handle("/ws", hub)

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		monitoring.Logf("HTTP server listening on %s", *listen)

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		monitoring.Logf("shutting down HTTP server...")
		hub.Close()

		// Create a shutdown context with a timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("HTTP server shutdown error: %v", err)
		}

		monitoring.Logf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()

	if task, ok := sess.ActiveTask(); ok {
		monitoring.Logf("ending task %s on shutdown", task.ID)
		_, _ = sess.EndTask(session.EndForfeit)
	}
	if recorder != nil {
		recorder.Flush()
		if err := store.EndSession(sess.ID(), time.Now()); err != nil {
			monitoring.Logf("failed to close session record: %v", err)
		}
	}
	st := sess.Snapshot()
	monitoring.Logf("session %s: %d samples, %d fixations, %d switches, %d malformed",
		st.ID, st.Stats.Samples, st.Stats.Fixations, st.Stats.Switches, st.Stats.Malformed)
	monitoring.Logf("Graceful shutdown complete")
}

// loadTuning reads path, or returns the built-in defaults when path is empty.
func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}
