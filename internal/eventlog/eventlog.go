// Package eventlog writes and parses the tagged session log.
//
// Each line has the form
//
//	<timestampMs> <TAG>: <message>
//
// Downstream analysis scripts depend on the tag set, so new tags may be
// added but existing names must not change.
package eventlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrMalformedLine is returned by ParseLine for lines that do not follow the
// log format.
var ErrMalformedLine = errors.New("malformed event log line")

// Tag classifies a log line.
type Tag int

const (
	Fixation Tag = iota
	Saccade
	ModeSwitch
	Scroll
	Event
	Warning
	Question
	Page
	Filename
)

var tagNames = [...]string{
	Fixation:   "FIXATION",
	Saccade:    "SACCADE",
	ModeSwitch: "MODE_SWITCH",
	Scroll:     "SCROLL",
	Event:      "EVENT",
	Warning:    "WARNING",
	Question:   "QUESTION",
	Page:       "PAGE",
	Filename:   "FILENAME",
}

func (t Tag) String() string {
	if int(t) >= 0 && int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("TAG(%d)", int(t))
}

// ParseTag is the inverse of String.
func ParseTag(s string) (Tag, error) {
	for i, name := range tagNames {
		if name == s {
			return Tag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tag %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tag) UnmarshalText(b []byte) error {
	parsed, err := ParseTag(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Entry is one log line.
type Entry struct {
	TimestampMs int64  `json:"timestamp_ms"`
	Tag         Tag    `json:"tag"`
	Message     string `json:"message"`
}

// String formats e as a log line without the trailing newline. Newlines in
// the message are replaced so one entry is always one line.
func (e Entry) String() string {
	msg := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(e.Message)
	return fmt.Sprintf("%d %s: %s", e.TimestampMs, e.Tag, msg)
}

// ParseLine parses a single log line.
func ParseLine(line string) (Entry, error) {
	line = strings.TrimRight(line, "\r\n")
	ts, rest, ok := strings.Cut(line, " ")
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedLine, ts)
	}
	name, msg, ok := strings.Cut(rest, ":")
	if !ok {
		return Entry{}, fmt.Errorf("%w: missing tag separator", ErrMalformedLine)
	}
	tag, err := ParseTag(name)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	return Entry{TimestampMs: ms, Tag: tag, Message: strings.TrimPrefix(msg, " ")}, nil
}

// Read parses every line of r, calling fn for each entry. Malformed lines
// are skipped and counted.
func Read(r io.Reader, fn func(Entry) error) (skipped int, err error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		e, perr := ParseLine(scanner.Text())
		if perr != nil {
			skipped++
			continue
		}
		if err := fn(e); err != nil {
			return skipped, err
		}
	}
	return skipped, scanner.Err()
}

// Writer appends entries to an io.Writer. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	err    error
}

// NewWriter creates a Writer on w. If w is an io.Closer, Close closes it.
func NewWriter(w io.Writer) *Writer {
	lw := &Writer{w: w}
	if c, ok := w.(io.Closer); ok {
		lw.closer = c
	}
	return lw
}

// FileConfig configures a rotating log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewFileWriter creates a Writer on a lumberjack-rotated file.
func NewFileWriter(cfg FileConfig) *Writer {
	return NewWriter(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	})
}

// Write appends e. The first write error is kept and returned by Err; later
// writes still go through so a transient failure does not end the log.
func (w *Writer) Write(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := io.WriteString(w.w, e.String()+"\n")
	if err != nil && w.err == nil {
		w.err = err
	}
	return err
}

// OnEvent implements the session event observer.
func (w *Writer) OnEvent(e Entry) {
	_ = w.Write(e)
}

// Err returns the first write error.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close closes the underlying writer when it is closable.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
