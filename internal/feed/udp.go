package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/reading.mode/internal/monitoring"
)

// DefaultUDPAddress is where the Tobii bridge sends gaze datagrams.
const DefaultUDPAddress = "127.0.0.1:33333"

// UDPConfig configures a UDPFeed.
type UDPConfig struct {
	Address       string
	RcvBuf        int              // OS receive buffer in bytes; 0 keeps the default
	SocketFactory UDPSocketFactory // optional, for tests
}

// UDPFeed receives one or more newline-separated messages per datagram.
type UDPFeed struct {
	*fanout
	address       string
	rcvBuf        int
	socketFactory UDPSocketFactory

	connMu sync.Mutex
	conn   UDPSocket
}

// NewUDPFeed creates a UDP feed. The socket is opened by Monitor.
func NewUDPFeed(cfg UDPConfig) *UDPFeed {
	addr := cfg.Address
	if addr == "" {
		addr = DefaultUDPAddress
	}
	factory := cfg.SocketFactory
	if factory == nil {
		factory = realUDPSocketFactory{}
	}
	return &UDPFeed{
		fanout:        newFanout(),
		address:       addr,
		rcvBuf:        cfg.RcvBuf,
		socketFactory: factory,
	}
}

// Monitor listens for datagrams until ctx is cancelled or the feed is closed.
func (u *UDPFeed) Monitor(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", u.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := u.socketFactory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	u.connMu.Lock()
	u.conn = conn
	u.connMu.Unlock()
	defer u.closeConn()

	if u.rcvBuf > 0 {
		if err := conn.SetReadBuffer(u.rcvBuf); err != nil {
			monitoring.Logf("[feed] failed to set UDP receive buffer to %d: %v", u.rcvBuf, err)
		}
	}
	monitoring.Logf("[feed] UDP listener started on %s", conn.LocalAddr())

	buffer := make([]byte, 64*1024)
	var deadlineErrLogged bool

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Short deadline so cancellation is noticed promptly.
		if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil && !deadlineErrLogged {
			monitoring.Logf("[feed] failed to set read deadline: %v", err)
			deadlineErrLogged = true
		}

		n, _, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			monitoring.Logf("[feed] UDP read error: %v", err)
			continue
		}

		for _, line := range strings.Split(string(buffer[:n]), "\n") {
			if line = strings.TrimSpace(line); line == "" {
				continue
			}
			if !u.publish(line) {
				return nil
			}
		}
	}
}

// LocalAddr returns the bound address once Monitor has opened the socket.
func (u *UDPFeed) LocalAddr() net.Addr {
	u.connMu.Lock()
	defer u.connMu.Unlock()
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

func (u *UDPFeed) closeConn() error {
	u.connMu.Lock()
	conn := u.conn
	u.conn = nil
	u.connMu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Close closes subscribers and the socket. It is safe to call more than once.
func (u *UDPFeed) Close() error {
	u.closeAll()
	return u.closeConn()
}

// AttachAdminRoutes registers the tail page.
func (u *UDPFeed) AttachAdminRoutes(mux *http.ServeMux) {
	attachTail(mux, u, "udp "+u.address)
}
