package memcache

// Client drives one memcached connection through the classic and meta
// command surfaces. It is mapped one-to-one with a single Conn; spreading
// load across servers, pooling idle connections, and retrying a failed
// command are all left to the caller.
type Client struct {
	conn    *Conn
	bufPool *byteBufferPool
}

// NewClient wraps an already-established Conn.
func NewClient(conn *Conn) *Client {
	return &Client{conn: conn, bufPool: newByteBufferPool(256)}
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Broken reports whether a previous command left the connection's framing
// unrecoverable; the caller must Close and reconnect rather than issue
// another command on it.
func (c *Client) Broken() bool { return c.conn.Broken() }

func (c *Client) writeLine(line []byte) error {
	if _, err := c.conn.w.Write(line); err != nil {
		return ioError(err)
	}
	if err := c.conn.w.Flush(); err != nil {
		return ioError(err)
	}
	return nil
}

func validateClassicKey(key string) error {
	if len(key) == 0 {
		return protoError(ReasonGeneric, "key must not be empty")
	}
	if len(key) > 250 {
		return protoError(ReasonKeyTooLong, "key exceeds 250 bytes")
	}
	for i := 0; i < len(key); i++ {
		b := key[i]
		if b <= 0x20 || b >= 0x7F {
			return protoError(ReasonGeneric, "key contains whitespace or a control byte")
		}
	}
	return nil
}
