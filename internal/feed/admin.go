package feed

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"tailscale.com/tsweb"
)

//go:embed templates/*
var adminTemplateFS embed.FS

var tailTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/tail.html.tmpl"))

type statser interface {
	Stats() Stats
}

// attachTail registers the live tail page, its SSE stream and a stats
// endpoint on the tsweb debugger for mux.
func attachTail(mux *http.ServeMux, f Feed, source string) *tsweb.DebugHandler {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("feed", "live tail of the gaze feed", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := tailTemplate.Execute(buf, map[string]string{"Source": source}); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		_, _ = io.Copy(w, buf)
	})

	// Server-Sent Events stream of feed lines.
	debug.HandleSilentFunc("feed-tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := f.Subscribe()
		defer f.Unsubscribe(id)

		// Send initial ping to establish connection
		_, _ = w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("feed-stats", func(w http.ResponseWriter, r *http.Request) {
		st := Stats{}
		if s, ok := f.(statser); ok {
			st = s.Stats()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"source": source, "stats": st})
	})

	return debug
}

func commandHandler(send func(string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := send(command); err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		_, _ = fmt.Fprintf(w, "Wrote command %q to feed", command)
	}
}
