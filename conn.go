package memcache

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/Shopify/async-memcache/internal/coarsetime"
	"github.com/Shopify/async-memcache/internal/wireparse"
)

var zeroTime time.Time

// Conn is a single connection-engine instance: one memcached TCP or unix
// socket connection, the read buffer retained across calls, and the
// parse-before-read loop every operation drives its response through. A
// Conn serves one caller's operation at a time — rendezvous of multiple
// concurrent callers on the same connection is the caller's problem, not
// this engine's.
type Conn struct {
	nc net.Conn
	w  *bufio.Writer

	buf      []byte
	consumed int
	broken   bool

	lastActivity time.Time
}

// NewConn wraps an already-established net.Conn.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc, w: bufio.NewWriter(nc), lastActivity: coarsetime.Now()}
}

// LastActivity reports the coarse-grained time of the most recent completed
// driveReceive call. A caller-managed pool or router layered on top of this
// package can use it to evict connections that have sat idle, without this
// package taking on any eviction policy of its own.
func (c *Conn) LastActivity() time.Time { return c.lastActivity }

// Writer is the buffered writer every request serializer writes onto.
// Callers must Flush it once a full request has been written.
func (c *Conn) Writer() *bufio.Writer { return c.w }

// Close closes the underlying connection. A Conn is not reusable afterward.
func (c *Conn) Close() error { return c.nc.Close() }

// Broken reports whether a previous operation left the connection's framing
// in an unrecoverable state. Once true, every further driveReceive call
// fails immediately without touching the network.
func (c *Conn) Broken() bool { return c.broken }

const readChunk = 4096

// driveReceive implements the connection engine's read side: discard
// whatever the previous call consumed, then alternate "try to parse" and
// "read more" until parse succeeds or the connection reports something
// unrecoverable. parse must behave like a classicproto/metaproto ParseXxx
// function — ErrNeedMore means the buffer holds a valid but incomplete
// prefix, any other error is final and taints the connection.
func driveReceive[R any](ctx context.Context, c *Conn, parse func([]byte) (int, R, error)) (R, error) {
	var zero R
	if c.broken {
		return zero, ioError(io.ErrClosedPipe)
	}
	if c.consumed > 0 {
		c.buf = c.buf[c.consumed:]
		c.consumed = 0
	}

	needMore := len(c.buf) == 0
	for {
		if needMore {
			if err := c.fill(ctx); err != nil {
				c.broken = true
				return zero, err
			}
			needMore = false
		}

		n, resp, err := parse(c.buf)
		switch {
		case err == nil:
			c.consumed = n
			c.lastActivity = coarsetime.Now()
			return resp, nil
		case errors.Is(err, wireparse.ErrNeedMore):
			needMore = true
		default:
			c.broken = true
			return zero, protoError(ReasonProtocolMismatch, err.Error())
		}
	}
}

// fill issues one read of up to readChunk more bytes into c.buf, honoring ctx's
// deadline if it has one. A zero-byte read means the peer closed the
// connection mid-response, which is always an error here: nothing in this
// protocol ends with a clean EOF in the middle of a reply.
func (c *Conn) fill(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.nc.SetReadDeadline(deadline); err != nil {
			return ioError(err)
		}
	} else {
		if err := c.nc.SetReadDeadline(zeroTime); err != nil {
			return ioError(err)
		}
	}

	start := len(c.buf)
	if cap(c.buf)-start < readChunk {
		grown := make([]byte, start, start+readChunk)
		copy(grown, c.buf)
		c.buf = grown
	}
	c.buf = c.buf[:start+readChunk]

	n, err := c.nc.Read(c.buf[start:])
	c.buf = c.buf[:start+n]
	if n > 0 {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return unexpectedEOF()
	}
	return ioError(err)
}
