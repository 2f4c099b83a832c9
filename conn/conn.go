// Package conn implements the per-connection state machine: frame
// splicing off the raw byte stream, connection lifecycle state, and a
// cursor registry. Connections are terminated here rather than relayed —
// this server answers requests itself rather than forwarding to an
// upstream database.
package conn

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/solatis/mongofront/wire"
)

// State is a connection's lifecycle stage.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateAuthenticated
	StateClosing
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Conn wraps one accepted net.Conn with frame-level read/write, a state
// machine, and a cursor registry.
type Conn struct {
	ID       int64
	net      net.Conn
	r        *bufio.Reader
	state    atomic.Int32
	maxBytes int32

	writeMu sync.Mutex

	Cursors *CursorRegistry

	nextRequestID atomic.Int32
}

// New wraps nc as a Conn in the connecting state.
func New(id int64, nc net.Conn, maxBytes int32) *Conn {
	c := &Conn{
		ID:       id,
		net:      nc,
		r:        bufio.NewReaderSize(nc, 64*1024),
		maxBytes: maxBytes,
		Cursors:  NewCursorRegistry(),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// setState transitions the connection's state.
func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}

// RemoteAddr returns the underlying connection's remote address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.net.RemoteAddr()
}

// ReadMessage blocks until one complete frame has been read, splicing the
// 16-byte header and the declared-length body off the buffered reader
//. It transitions to StateConnected on the first successful
// read if still StateConnecting.
func (c *Conn) ReadMessage(ctx context.Context) (*wire.Message, error) {
	var hdr [wire.HeaderLen]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		if isClosedErr(err) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("conn: read header: %w", err)
	}

	length := int32(binary.LittleEndian.Uint32(hdr[0:4]))
	if err := wire.ValidateLength(length, c.maxBytes); err != nil {
		c.setState(StateError)
		return nil, err
	}

	raw := make([]byte, length)
	copy(raw, hdr[:])
	if _, err := io.ReadFull(c.r, raw[wire.HeaderLen:]); err != nil {
		if isClosedErr(err) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("conn: read body: %w", err)
	}

	msg, err := wire.ParseFrame(raw, c.maxBytes)
	if err != nil {
		c.setState(StateError)
		return nil, err
	}

	if c.State() == StateConnecting {
		c.setState(StateConnected)
	}
	return msg, nil
}

// WriteMessage sends a frame, silently dropping the write if the
// connection is already closing/closed.
func (c *Conn) WriteMessage(h wire.Header, body interface {
	Encode() ([]byte, error)
}) error {
	s := c.State()
	if s == StateClosing || s == StateClosed {
		return nil
	}

	raw, err := wire.BuildFrame(h, body)
	if err != nil {
		return fmt.Errorf("conn: build frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.net.Write(raw); err != nil {
		if isClosedErr(err) {
			return nil
		}
		return fmt.Errorf("conn: write: %w", err)
	}
	return nil
}

// NextRequestID returns a monotonically increasing request ID for replies
// this connection originates itself (as opposed to ResponseTo correlation,
// which echoes the client's RequestID).
func (c *Conn) NextRequestID() int32 {
	return c.nextRequestID.Add(1)
}

// Close transitions through closing to closed and releases cursors.
func (c *Conn) Close() error {
	c.setState(StateClosing)
	c.Cursors.CloseAll()
	err := c.net.Close()
	c.setState(StateClosed)
	if err != nil && !isClosedErr(err) {
		return fmt.Errorf("conn: close: %w", err)
	}
	return nil
}

// isClosedErr reports whether err represents an already-closed connection
// rather than a genuine I/O failure.
func isClosedErr(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return netErr.Err.Error() == "use of closed network connection"
	}
	return strings.Contains(err.Error(), "closed")
}
