package memcache

import (
	"context"
	"strconv"

	"github.com/Shopify/async-memcache/classicproto"
)

func (c *Client) recvResponse(ctx context.Context) (classicproto.Response, error) {
	resp, err := driveReceive(ctx, c.conn, classicproto.ParseResponse)
	if err != nil {
		return classicproto.Response{}, err
	}
	if resp.Kind == classicproto.KindError {
		return resp, classicErrorToError(resp)
	}
	if resp.Kind == classicproto.KindStatus {
		st := classicLineToStatus(resp.Status)
		if st != StatusStored && st != StatusDeleted && st != StatusTouched {
			return resp, statusError(st)
		}
	}
	return resp, nil
}

func classicLineToStatus(s classicproto.StatusLine) Status {
	switch s {
	case classicproto.Stored:
		return StatusStored
	case classicproto.NotStored:
		return StatusNotStored
	case classicproto.Deleted:
		return StatusDeleted
	case classicproto.Touched:
		return StatusTouched
	case classicproto.Exists:
		return StatusExists
	case classicproto.NotFound:
		return StatusNotFound
	}
	return StatusError
}

func classicErrorToError(resp classicproto.Response) error {
	switch resp.ErrorKind {
	case classicproto.NonexistentCommand:
		return protoError(ReasonNonexistentCommand, "")
	case classicproto.ClientError:
		return protoError(ReasonClient, resp.ErrorMessage)
	case classicproto.ServerError:
		return protoError(ReasonServer, resp.ErrorMessage)
	}
	return protoError(ReasonGeneric, resp.ErrorMessage)
}

func valueFromClassic(v classicproto.Value) Value {
	flags := v.Flags
	return Value{Key: v.Key, Data: v.Data, ClientFlags: &flags, CAS: v.CAS}
}

// Get fetches a single key. A miss is reported as a nil Value and nil
// error: "get" has no distinct not-found status line, only an empty data
// block, so there is nothing to turn into a Go error here.
func (c *Client) Get(ctx context.Context, key string) (*Value, error) {
	if err := validateClassicKey(key); err != nil {
		return nil, err
	}
	if err := c.writeLine([]byte("get " + key + "\r\n")); err != nil {
		return nil, err
	}
	resp, err := c.recvResponse(ctx)
	if err != nil {
		return nil, err
	}
	if resp.Kind != classicproto.KindData {
		return nil, protoError(ReasonProtocolMismatch, "expected a data response to get")
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	if len(resp.Values) != 1 {
		return nil, protoError(ReasonProtocolMismatch, "server returned more than one value for a single key")
	}
	v := valueFromClassic(resp.Values[0])
	return &v, nil
}

// GetMulti fetches several keys at once with a single "get" command. Keys
// that fail classic key validation (too long, empty, containing whitespace
// or a control byte) are silently filtered out before anything is written;
// they are absent from the wire and so can never appear in the result. A
// reply holding no values at all is reported as a NotFound error.
func (c *Client) GetMulti(ctx context.Context, keys []string) ([]Value, error) {
	line := "get"
	any := false
	for _, k := range keys {
		if validateClassicKey(k) != nil {
			continue
		}
		line += " " + k
		any = true
	}
	if !any {
		return nil, nil
	}
	line += "\r\n"
	if err := c.writeLine([]byte(line)); err != nil {
		return nil, err
	}
	resp, err := c.recvResponse(ctx)
	if err != nil {
		return nil, err
	}
	if resp.Kind != classicproto.KindData {
		return nil, protoError(ReasonProtocolMismatch, "expected a data response to get")
	}
	if len(resp.Values) == 0 {
		return nil, statusError(StatusNotFound)
	}
	values := make([]Value, len(resp.Values))
	for i, v := range resp.Values {
		values[i] = valueFromClassic(v)
	}
	return values, nil
}

// Gat fetches a key and updates its TTL, matching get's silent-miss convention.
func (c *Client) Gat(ctx context.Context, exptime int64, key string) (*Value, error) {
	if err := validateClassicKey(key); err != nil {
		return nil, err
	}
	line := "gat " + strconv.FormatInt(exptime, 10) + " " + key + "\r\n"
	if err := c.writeLine([]byte(line)); err != nil {
		return nil, err
	}
	resp, err := c.recvResponse(ctx)
	if err != nil {
		return nil, err
	}
	if resp.Kind != classicproto.KindData || len(resp.Values) == 0 {
		return nil, nil
	}
	v := valueFromClassic(resp.Values[0])
	return &v, nil
}

func (c *Client) store(ctx context.Context, verb, key string, value AsMemcachedValue, flags uint32, exptime int64) error {
	if err := validateClassicKey(key); err != nil {
		return err
	}
	data := valueBytes(value)
	buf := c.bufPool.Get()
	defer c.bufPool.Put(buf)
	buf.WriteString(verb)
	buf.WriteByte(' ')
	buf.WriteString(key)
	buf.WriteByte(' ')
	buf.WriteString(strconv.FormatUint(uint64(flags), 10))
	buf.WriteByte(' ')
	buf.WriteString(strconv.FormatInt(exptime, 10))
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(len(data)))
	buf.WriteString("\r\n")
	buf.Write(data)
	buf.WriteString("\r\n")
	if err := c.writeLine(buf.Bytes()); err != nil {
		return err
	}
	resp, err := c.recvResponse(ctx)
	if err != nil {
		return err
	}
	if resp.Kind != classicproto.KindStatus || resp.Status != classicproto.Stored {
		return protoError(ReasonProtocolMismatch, "expected STORED")
	}
	return nil
}

// Set unconditionally stores key, overwriting any existing value.
func (c *Client) Set(ctx context.Context, key string, value AsMemcachedValue, flags uint32, exptime int64) error {
	return c.store(ctx, "set", key, value, flags, exptime)
}

// Add stores key only if it does not already exist. IsNotStored(err) is
// true when the key was already present.
func (c *Client) Add(ctx context.Context, key string, value AsMemcachedValue, flags uint32, exptime int64) error {
	return c.store(ctx, "add", key, value, flags, exptime)
}

// Replace stores key only if it already exists.
func (c *Client) Replace(ctx context.Context, key string, value AsMemcachedValue, flags uint32, exptime int64) error {
	return c.store(ctx, "replace", key, value, flags, exptime)
}

// Append appends value to an existing key's data without touching flags or TTL.
func (c *Client) Append(ctx context.Context, key string, value AsMemcachedValue) error {
	return c.store(ctx, "append", key, value, 0, 0)
}

// Prepend prepends value to an existing key's data without touching flags or TTL.
func (c *Client) Prepend(ctx context.Context, key string, value AsMemcachedValue) error {
	return c.store(ctx, "prepend", key, value, 0, 0)
}

// Delete removes key. IsNotFound(err) is true when the key was absent.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := validateClassicKey(key); err != nil {
		return err
	}
	if err := c.writeLine([]byte("delete " + key + "\r\n")); err != nil {
		return err
	}
	_, err := c.recvResponse(ctx)
	return err
}

// DeleteNoReply removes key without waiting for a reply. The caller cannot
// distinguish a hit from a miss, matching the wire's own noreply semantics.
func (c *Client) DeleteNoReply(key string) error {
	if err := validateClassicKey(key); err != nil {
		return err
	}
	return c.writeLine([]byte("delete " + key + " noreply\r\n"))
}

func (c *Client) arithmetic(ctx context.Context, verb, key string, delta uint64) (uint64, error) {
	if err := validateClassicKey(key); err != nil {
		return 0, err
	}
	line := verb + " " + key + " " + strconv.FormatUint(delta, 10) + "\r\n"
	if err := c.writeLine([]byte(line)); err != nil {
		return 0, err
	}
	resp, err := driveReceive(ctx, c.conn, classicproto.ParseResponse)
	if err != nil {
		return 0, err
	}
	switch resp.Kind {
	case classicproto.KindNumber:
		return resp.Number, nil
	case classicproto.KindStatus:
		return 0, statusError(classicLineToStatus(resp.Status))
	case classicproto.KindError:
		return 0, classicErrorToError(resp)
	}
	return 0, protoError(ReasonProtocolMismatch, "expected a numeric reply")
}

// Increment adds delta to key's existing numeric value, returning the new value.
func (c *Client) Increment(ctx context.Context, key string, delta uint64) (uint64, error) {
	return c.arithmetic(ctx, "incr", key, delta)
}

// Decrement subtracts delta from key's existing numeric value, floored at
// zero by the server, returning the new value.
func (c *Client) Decrement(ctx context.Context, key string, delta uint64) (uint64, error) {
	return c.arithmetic(ctx, "decr", key, delta)
}

// IncrementNoReply adds delta to key's value without waiting for a reply.
func (c *Client) IncrementNoReply(key string, delta uint64) error {
	if err := validateClassicKey(key); err != nil {
		return err
	}
	return c.writeLine([]byte("incr " + key + " " + strconv.FormatUint(delta, 10) + " noreply\r\n"))
}

// DecrementNoReply subtracts delta from key's value without waiting for a reply.
func (c *Client) DecrementNoReply(key string, delta uint64) error {
	if err := validateClassicKey(key); err != nil {
		return err
	}
	return c.writeLine([]byte("decr " + key + " " + strconv.FormatUint(delta, 10) + " noreply\r\n"))
}

// Version returns the server's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	if err := c.writeLine([]byte("version\r\n")); err != nil {
		return "", err
	}
	return driveReceive(ctx, c.conn, classicproto.ParseVersion)
}

// FlushAll invalidates all existing items. A delay of 0 flushes immediately.
func (c *Client) FlushAll(ctx context.Context, delay int64) error {
	line := "flush_all"
	if delay > 0 {
		line += " " + strconv.FormatInt(delay, 10)
	}
	line += "\r\n"
	if err := c.writeLine([]byte(line)); err != nil {
		return err
	}
	_, err := driveReceive(ctx, c.conn, func(b []byte) (int, struct{}, error) {
		n, err := classicproto.ParseOK(b)
		return n, struct{}{}, err
	})
	return err
}

// Stats collects the server's `stats` reply into a slice of key/value pairs.
func (c *Client) Stats(ctx context.Context) ([]StatsResponse, error) {
	if err := c.writeLine([]byte("stats\r\n")); err != nil {
		return nil, err
	}
	var out []StatsResponse
	for {
		line, err := driveReceive(ctx, c.conn, classicproto.ParseStats)
		if err != nil {
			return nil, err
		}
		if line.End {
			return out, nil
		}
		out = append(out, StatsResponse{Key: line.Key, Value: line.Value})
	}
}

// MetadumpCursor pulls one `lru_crawler metadump` line at a time rather than
// materializing the whole crawl: a metadump can be unbounded, so the caller
// decides how much of it to read and can stop pulling at any point.
type MetadumpCursor struct {
	client *Client
	done   bool
}

// DumpKeys starts an `lru_crawler metadump` pull for the given slab class
// IDs ("all" dumps every class) and returns a cursor to read it from.
func (c *Client) DumpKeys(classIDs string) (*MetadumpCursor, error) {
	if err := c.writeLine([]byte("lru_crawler metadump " + classIDs + "\r\n")); err != nil {
		return nil, err
	}
	return &MetadumpCursor{client: c}, nil
}

// Next pulls the next metadump line. done is true once the crawl has ended
// (a terminating END or a BadClass line) or a transport/parse error
// occurred; no further call should be made once done is true. A Busy line
// is surfaced like any other entry but does not end the crawl.
func (m *MetadumpCursor) Next(ctx context.Context) (resp MetadumpResponse, done bool, err error) {
	if m.done {
		return MetadumpResponse{}, true, nil
	}
	line, err := driveReceive(ctx, m.client.conn, classicproto.ParseMetadump)
	if err != nil {
		m.done = true
		return MetadumpResponse{}, true, err
	}
	switch line.Kind {
	case classicproto.MetadumpEnd:
		m.done = true
		return MetadumpResponse{Kind: MetadumpEnd}, true, nil
	case classicproto.MetadumpBusy:
		return MetadumpResponse{Kind: MetadumpBusy, Message: line.Message}, false, nil
	case classicproto.MetadumpBadClass:
		m.done = true
		return MetadumpResponse{Kind: MetadumpBadClass, Message: line.Message}, true, nil
	default:
		e := line.Entry
		return MetadumpResponse{Kind: MetadumpEntry, Entry: &KeyMetadata{
			Key: e.Key, Expiration: e.Expiration, LastAccessed: e.LastAccessed,
			CAS: e.CAS, Fetched: e.Fetched, ClassID: e.ClassID, Size: e.Size,
		}}, false, nil
	}
}
