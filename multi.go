package memcache

import (
	"context"
	"strconv"

	"github.com/Shopify/async-memcache/classicproto"
	"github.com/Shopify/async-memcache/metaproto"
)

// StoreItem is one entry of a SetMulti/AddMulti batch.
type StoreItem struct {
	Key     string
	Value   AsMemcachedValue
	Flags   uint32
	Exptime int64
}

// MetaOutcome pairs one key's meta response with the status-derived error a
// single-key call would have returned for it, so a multi-key caller sees
// the same Stored/NotFound/Exists/Protocol distinctions per key instead of
// one error for the whole batch.
type MetaOutcome struct {
	Result MetaResult
	Err    error
}

// writeAll pipelines every request's bytes onto the wire before any
// response is read back. The correlator relies on the server replying to
// pipelined requests strictly in the order they were sent — positional
// zipping of requests to responses is the entire correlation mechanism,
// there is no per-request identifier on the wire for the classic dialect.
func (c *Client) writeAll(lines [][]byte) error {
	for _, line := range lines {
		if _, err := c.conn.w.Write(line); err != nil {
			return ioError(err)
		}
	}
	return ioError2(c.conn.w.Flush())
}

// SetMulti pipelines a "set" for every item with a valid key and returns
// the outcome of each keyed by its key, without waiting for a response
// between writes. Keys that fail classic key validation are filtered out
// before anything is written and are absent from the returned map.
func (c *Client) SetMulti(ctx context.Context, items []StoreItem) (map[string]error, error) {
	return c.storeMulti(ctx, "set", items)
}

// AddMulti pipelines an "add" for every item with a valid key, matching
// SetMulti's filtering and result-mapping behavior.
func (c *Client) AddMulti(ctx context.Context, items []StoreItem) (map[string]error, error) {
	return c.storeMulti(ctx, "add", items)
}

func (c *Client) storeMulti(ctx context.Context, verb string, items []StoreItem) (map[string]error, error) {
	if len(items) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(items))
	lines := make([][]byte, 0, len(items))
	for _, item := range items {
		if err := validateClassicKey(item.Key); err != nil {
			continue
		}
		value := valueBytes(item.Value)
		buf := c.bufPool.Get()
		buf.WriteString(verb)
		buf.WriteByte(' ')
		buf.WriteString(item.Key)
		buf.WriteByte(' ')
		buf.WriteString(strconv.FormatUint(uint64(item.Flags), 10))
		buf.WriteByte(' ')
		buf.WriteString(strconv.FormatInt(item.Exptime, 10))
		buf.WriteByte(' ')
		buf.WriteString(strconv.Itoa(len(value)))
		buf.WriteString("\r\n")
		buf.Write(value)
		buf.WriteString("\r\n")
		keys = append(keys, item.Key)
		lines = append(lines, append([]byte(nil), buf.Bytes()...))
		c.bufPool.Put(buf)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	if err := c.writeAll(lines); err != nil {
		return nil, err
	}
	results := make(map[string]error, len(keys))
	for _, key := range keys {
		resp, err := c.recvResponse(ctx)
		if err != nil && c.conn.Broken() {
			return nil, err
		}
		if err == nil && (resp.Kind != classicproto.KindStatus || resp.Status != classicproto.Stored) {
			err = protoError(ReasonProtocolMismatch, "unexpected response to a store command")
		}
		results[key] = err
	}
	return results, nil
}

// DeleteMultiNoReply pipelines a noreply "delete" for every key that passes
// classic key validation; invalid keys are silently skipped rather than
// aborting the batch. There are no responses to correlate back at all.
func (c *Client) DeleteMultiNoReply(keys []string) error {
	lines := make([][]byte, 0, len(keys))
	for _, key := range keys {
		if err := validateClassicKey(key); err != nil {
			continue
		}
		lines = append(lines, []byte("delete "+key+" noreply\r\n"))
	}
	if len(lines) == 0 {
		return nil
	}
	return c.writeAll(lines)
}

// MetaMultiGet pipelines an mg for each key that passes classic key
// validation and returns the outcome of each keyed by its key.
func (c *Client) MetaMultiGet(ctx context.Context, keys []string, flags ...metaproto.MetaFlag) (map[string]MetaOutcome, error) {
	var reqKeys []string
	var reqs []metaproto.Request
	for _, k := range keys {
		if err := validateClassicKey(k); err != nil {
			continue
		}
		reqKeys = append(reqKeys, k)
		reqs = append(reqs, metaproto.Request{Command: metaproto.CmdGet, Key: []byte(k), Flags: flags})
	}
	return c.metaMulti(ctx, reqKeys, reqs)
}

// MetaSetItem is one entry of a MetaMultiSet batch.
type MetaSetItem struct {
	Key   string
	Value AsMemcachedValue
	Flags []metaproto.MetaFlag
}

// MetaMultiSet pipelines an ms for each item with a valid key and returns
// the outcome of each keyed by its key.
func (c *Client) MetaMultiSet(ctx context.Context, items []MetaSetItem) (map[string]MetaOutcome, error) {
	var reqKeys []string
	var reqs []metaproto.Request
	for _, item := range items {
		if err := validateClassicKey(item.Key); err != nil {
			continue
		}
		reqKeys = append(reqKeys, item.Key)
		reqs = append(reqs, metaproto.Request{Command: metaproto.CmdSet, Key: []byte(item.Key), Flags: item.Flags, Value: valueBytes(item.Value)})
	}
	return c.metaMulti(ctx, reqKeys, reqs)
}

// MetaMultiDelete pipelines an md for each key that passes classic key
// validation and returns the outcome of each keyed by its key.
func (c *Client) MetaMultiDelete(ctx context.Context, keys []string, flags ...metaproto.MetaFlag) (map[string]MetaOutcome, error) {
	var reqKeys []string
	var reqs []metaproto.Request
	for _, k := range keys {
		if err := validateClassicKey(k); err != nil {
			continue
		}
		reqKeys = append(reqKeys, k)
		reqs = append(reqs, metaproto.Request{Command: metaproto.CmdDelete, Key: []byte(k), Flags: flags})
	}
	return c.metaMulti(ctx, reqKeys, reqs)
}

// metaMulti pipelines reqs and assembles a map from reqKeys[i] to the
// outcome of reqs[i]: a Stored-shaped code maps to a nil Err, any other
// status maps to that status's error, and a malformed reply maps to a
// protocol-mismatch error. A transport-level failure aborts the whole call
// and is returned directly rather than folded into the map, since it
// leaves the correlator unable to trust the positions of whatever
// responses remain unread.
func (c *Client) metaMulti(ctx context.Context, reqKeys []string, reqs []metaproto.Request) (map[string]MetaOutcome, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	for _, req := range reqs {
		if err := metaproto.WriteRequest(c.conn.w, req); err != nil {
			return nil, protoError(ReasonGeneric, err.Error())
		}
	}
	if err := ioError2(c.conn.w.Flush()); err != nil {
		return nil, err
	}
	results := make(map[string]MetaOutcome, len(reqs))
	for i := range reqs {
		resp, err := driveReceive(ctx, c.conn, metaproto.ParseResponse)
		if err != nil {
			return nil, err
		}
		status := metaStatusFromCode(resp.Code)
		outcome := MetaOutcome{Result: MetaResult{Code: resp.Code, Data: resp.Data, Flags: resp.Values()}}
		if status == StatusNotFound || status == StatusNotStored || status == StatusExists {
			outcome.Err = statusError(status)
		} else if status != StatusStored && status != StatusNoOp {
			outcome.Err = protoError(ReasonProtocolMismatch, "unexpected meta response shape")
		}
		results[reqKeys[i]] = outcome
	}
	return results, nil
}
