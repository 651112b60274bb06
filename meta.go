package memcache

import (
	"context"

	"github.com/Shopify/async-memcache/metaproto"
)

// MetaResult is the outcome of a single meta-protocol command: the response
// code, any data block (only ever non-nil for a VA reply), and the typed
// flag values the server echoed back.
type MetaResult struct {
	Code  metaproto.Code
	Data  []byte
	Flags metaproto.FlagValues
}

func (c *Client) sendMeta(req metaproto.Request) error {
	for _, f := range req.Flags {
		if len(f) > 1+32 && f[0] == 'O' {
			return protoError(ReasonOpaqueTooLong, "opaque token exceeds 32 bytes")
		}
	}
	if err := metaproto.WriteRequest(c.conn.w, req); err != nil {
		return protoError(ReasonGeneric, err.Error())
	}
	return ioError2(c.conn.w.Flush())
}

func ioError2(err error) error {
	if err == nil {
		return nil
	}
	return ioError(err)
}

func metaStatusFromCode(code metaproto.Code) Status {
	switch code {
	case metaproto.CodeVA, metaproto.CodeHD:
		return StatusStored
	case metaproto.CodeNS:
		return StatusNotStored
	case metaproto.CodeEX:
		return StatusExists
	case metaproto.CodeNF, metaproto.CodeEN:
		return StatusNotFound
	case metaproto.CodeMN:
		return StatusNoOp
	}
	return StatusError
}

func (c *Client) recvMeta(ctx context.Context) (MetaResult, error) {
	resp, err := driveReceive(ctx, c.conn, metaproto.ParseResponse)
	if err != nil {
		return MetaResult{}, err
	}
	status := metaStatusFromCode(resp.Code)
	if status == StatusNotFound || status == StatusNotStored || status == StatusExists {
		return MetaResult{Code: resp.Code, Flags: resp.Values()}, statusError(status)
	}
	return MetaResult{Code: resp.Code, Data: resp.Data, Flags: resp.Values()}, nil
}

// MetaGet issues an mg command.
func (c *Client) MetaGet(ctx context.Context, key string, flags ...metaproto.MetaFlag) (MetaResult, error) {
	if err := validateClassicKey(key); err != nil {
		return MetaResult{}, err
	}
	if err := c.sendMeta(metaproto.Request{Command: metaproto.CmdGet, Key: []byte(key), Flags: flags}); err != nil {
		return MetaResult{}, err
	}
	return c.recvMeta(ctx)
}

// MetaSet issues an ms command.
func (c *Client) MetaSet(ctx context.Context, key string, value AsMemcachedValue, flags ...metaproto.MetaFlag) (MetaResult, error) {
	if err := validateClassicKey(key); err != nil {
		return MetaResult{}, err
	}
	req := metaproto.Request{Command: metaproto.CmdSet, Key: []byte(key), Flags: flags, Value: valueBytes(value)}
	if err := c.sendMeta(req); err != nil {
		return MetaResult{}, err
	}
	return c.recvMeta(ctx)
}

// MetaDelete issues an md command.
func (c *Client) MetaDelete(ctx context.Context, key string, flags ...metaproto.MetaFlag) (MetaResult, error) {
	if err := validateClassicKey(key); err != nil {
		return MetaResult{}, err
	}
	if err := c.sendMeta(metaproto.Request{Command: metaproto.CmdDelete, Key: []byte(key), Flags: flags}); err != nil {
		return MetaResult{}, err
	}
	return c.recvMeta(ctx)
}

// MetaArithmetic issues an ma command: increment/decrement via FlagMode.
func (c *Client) MetaArithmetic(ctx context.Context, key string, flags ...metaproto.MetaFlag) (MetaResult, error) {
	if err := validateClassicKey(key); err != nil {
		return MetaResult{}, err
	}
	if err := c.sendMeta(metaproto.Request{Command: metaproto.CmdArithmetic, Key: []byte(key), Flags: flags}); err != nil {
		return MetaResult{}, err
	}
	return c.recvMeta(ctx)
}

// MetaNoOp issues an mn command, a pipeline-boundary marker: its HD/MN-style
// reply can only arrive after every response queued ahead of it, so a
// caller pipelining several requests can use it to know when it has drained
// them all, without tracking count itself.
func (c *Client) MetaNoOp(ctx context.Context) error {
	if err := c.sendMeta(metaproto.Request{Command: metaproto.CmdNoOp}); err != nil {
		return err
	}
	_, err := driveReceive(ctx, c.conn, metaproto.ParseResponse)
	return err
}

// DebugResult is the outcome of an me (meta debug) command: the raw
// key=value attributes memcached reports for one item, or Hit == false on
// a miss.
type DebugResult struct {
	Hit   bool
	Attrs map[string][]byte
}

// MetaDebug issues an me command, returning raw server-reported item
// attributes as opaque key=value tokens: memcached defines no fixed
// vocabulary for me's reply the way it does for mg/ms/md/ma, and its hit
// line is shaped like a metadump entry rather than a coded VA/HD/NS/EX/NF
// response, so it needs its own parser instead of recvMeta's.
func (c *Client) MetaDebug(ctx context.Context, key string) (DebugResult, error) {
	if err := validateClassicKey(key); err != nil {
		return DebugResult{}, err
	}
	if err := c.sendMeta(metaproto.Request{Command: metaproto.CmdDebug, Key: []byte(key)}); err != nil {
		return DebugResult{}, err
	}
	resp, err := driveReceive(ctx, c.conn, metaproto.ParseDebugResponse)
	if err != nil {
		return DebugResult{}, err
	}
	if !resp.Hit {
		return DebugResult{}, statusError(StatusNotFound)
	}
	return DebugResult{Hit: true, Attrs: resp.Attrs}, nil
}
