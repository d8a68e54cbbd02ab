package feed

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// LineFeed reads newline-delimited messages from a Porter.
type LineFeed[T Porter] struct {
	*fanout
	port      T
	commandMu sync.Mutex
}

// NewLineFeed creates a LineFeed over port.
func NewLineFeed[T Porter](port T) *LineFeed[T] {
	return &LineFeed[T]{fanout: newFanout(), port: port}
}

// NewSerialFeed opens the serial port at path and returns a feed over it.
func NewSerialFeed(path string, opts PortOptions) (*LineFeed[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewLineFeed[serial.Port](port), nil
}

// SendCommand writes a newline-terminated command to the port. Bridges use
// this for start/stop and calibration control.
func (l *LineFeed[T]) SendCommand(command string) error {
	l.commandMu.Lock()
	defer l.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := l.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads lines from the port and publishes them to subscribers.
func (l *LineFeed[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(l.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan runs in its own goroutine so the loop below
	// can still observe context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			if !l.publish(line) {
				return nil
			}
		}
	}
}

// Close closes all subscribers and the port. Closing the port also unblocks
// a pending read in Monitor.
func (l *LineFeed[T]) Close() error {
	if !l.closeAll() {
		return nil
	}
	return l.port.Close()
}

// AttachAdminRoutes registers the tail page plus a command endpoint.
func (l *LineFeed[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := attachTail(mux, l, "serial")
	debug.HandleSilentFunc("feed-command", commandHandler(l.SendCommand))
}
