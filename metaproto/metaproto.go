// Package metaproto implements a pure, streaming parser and request writer
// for the memcached meta protocol: mg/ms/md/ma/mn/me commands and their
// VA/HD/NS/EX/NF/EN/MN responses.
//
// ParseResponse follows the same contract as the classic-protocol parser it
// sits alongside: a fully parsed Response and the number of bytes consumed,
// ErrNeedMore on a valid but incomplete prefix, or a *ParseError on bytes
// that don't match any recognized shape. Flag tokens are returned as opaque
// (type, token) pairs in wire order; Response.Values turns them into a
// FlagValues holding the typed fields callers actually want.
package metaproto

import (
	"bytes"
	"strconv"

	"github.com/Shopify/async-memcache/internal/wireparse"
)

// ErrNeedMore indicates buf is a valid prefix of a response but does not yet
// contain enough bytes to parse it fully.
var ErrNeedMore = wireparse.ErrNeedMore

// ParseError is returned when buf's leading bytes do not match any
// recognized meta response shape.
type ParseError = wireparse.ParseError

func protocolMismatch(msg string) error { return wireparse.ProtocolMismatch(msg) }

func matchLiteral(buf []byte, lit string) (full, partial bool) {
	return wireparse.MatchLiteral(buf, lit)
}

// Code is a meta response's two-letter status code.
type Code string

const (
	CodeVA Code = "VA" // value follows
	CodeHD Code = "HD" // success, no value
	CodeNS Code = "NS" // not stored
	CodeEX Code = "EX" // cas mismatch / already exists
	CodeNF Code = "NF" // not found
	CodeEN Code = "EN" // miss (legacy mg spelling of NF)
	CodeMN Code = "MN" // end-of-batch marker for mn
)

// Flag is one response flag token: the single-character tag and its
// (possibly empty) value, exactly as the server wrote it.
type Flag struct {
	Type  byte
	Token []byte
}

// Response is everything ParseResponse can produce for a single meta reply.
type Response struct {
	Code  Code
	Size  int // meaningful only when Code == CodeVA
	Data  []byte
	Flags []Flag
}

// FlagValues is the typed projection of a Response's flags, built by
// map_meta_flag's Go equivalent. Fields are nil/zero when their flag was
// absent from the reply, which is how a caller tells "not returned" apart
// from "returned as zero".
type FlagValues struct {
	CAS             *uint64
	ClientFlags     *uint32
	HitBefore       *bool
	Key             []byte
	LastAccessed    *uint64
	OpaqueToken     []byte
	Size            *uint64
	TTLRemaining    *int64
	IsRecacheWinner *bool
	IsStale         bool
}

// Values projects r.Flags into a FlagValues, matching the flag-to-field
// mapping the meta protocol reserves on the response side. Unrecognized
// flag types are ignored, not rejected, so the parser keeps working against
// a server that adds a new flag this client doesn't know about yet.
func (r Response) Values() FlagValues {
	var v FlagValues
	for _, f := range r.Flags {
		switch f.Type {
		case 'c':
			if n, err := strconv.ParseUint(string(f.Token), 10, 64); err == nil {
				v.CAS = &n
			}
		case 'f':
			if n, err := strconv.ParseUint(string(f.Token), 10, 32); err == nil {
				n32 := uint32(n)
				v.ClientFlags = &n32
			}
		case 'h':
			b := len(f.Token) > 0 && f.Token[0] != '0'
			v.HitBefore = &b
		case 'k':
			v.Key = f.Token
		case 'l':
			if n, err := strconv.ParseUint(string(f.Token), 10, 64); err == nil {
				v.LastAccessed = &n
			}
		case 'O':
			v.OpaqueToken = f.Token
		case 's':
			if n, err := strconv.ParseUint(string(f.Token), 10, 64); err == nil {
				v.Size = &n
			}
		case 't':
			if n, err := strconv.ParseInt(string(f.Token), 10, 64); err == nil {
				v.TTLRemaining = &n
			}
		case 'W':
			b := true
			v.IsRecacheWinner = &b
		case 'Z':
			b := false
			v.IsRecacheWinner = &b
		case 'X':
			v.IsStale = true
		}
	}
	return v
}

var responseCodes = [...]Code{CodeVA, CodeHD, CodeNS, CodeEX, CodeNF, CodeEN}

// ParseResponse parses one meta-protocol reply line (plus its data block,
// for VA). It dispatches purely on the two-letter response code; a
// conforming server never sends a body-bearing VA for a request that didn't
// ask for one, so the parser does not need to know what was requested.
func ParseResponse(buf []byte) (int, Response, error) {
	if len(buf) == 0 {
		return 0, Response{}, ErrNeedMore
	}

	if full, partial := matchLiteral(buf, "MN\r\n"); full {
		return len("MN\r\n"), Response{Code: CodeMN}, nil
	} else if partial {
		return 0, Response{}, ErrNeedMore
	}

	var code Code
	found := false
	anyPartial := false
	for _, c := range responseCodes {
		full, partial := matchLiteral(buf, string(c))
		if full {
			code, found = c, true
			break
		}
		if partial {
			anyPartial = true
		}
	}
	if !found {
		if anyPartial {
			return 0, Response{}, ErrNeedMore
		}
		return 0, Response{}, protocolMismatch("unrecognized meta response code")
	}

	rest := buf[2:]
	size := 0
	if code == CodeVA {
		if len(rest) == 0 {
			return 0, Response{}, ErrNeedMore
		}
		if rest[0] != ' ' {
			return 0, Response{}, protocolMismatch("expected size after VA")
		}
		rest = rest[1:]
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i >= len(rest) {
			return 0, Response{}, ErrNeedMore
		}
		if i == 0 {
			return 0, Response{}, protocolMismatch("missing size after VA")
		}
		n, err := strconv.Atoi(string(rest[:i]))
		if err != nil {
			return 0, Response{}, protocolMismatch("invalid VA size")
		}
		size = n
		rest = rest[i:]
	}

	flags, rest, ferr := parseFlags(rest)
	if ferr != nil {
		return 0, Response{}, ferr
	}

	full, partial := matchLiteral(rest, "\r\n")
	if partial {
		return 0, Response{}, ErrNeedMore
	}
	if !full {
		return 0, Response{}, protocolMismatch("expected CRLF after meta response header")
	}
	rest = rest[2:]
	headerLen := len(buf) - len(rest)

	if code != CodeVA {
		return headerLen, Response{Code: code, Flags: flags}, nil
	}

	need := headerLen + size + 2
	if len(buf) < need {
		return 0, Response{}, ErrNeedMore
	}
	if buf[headerLen+size] != '\r' || buf[headerLen+size+1] != '\n' {
		return 0, Response{}, protocolMismatch("missing trailing CRLF after VA body")
	}
	data := append([]byte(nil), buf[headerLen:headerLen+size]...)
	return need, Response{Code: code, Size: size, Data: data, Flags: flags}, nil
}

// DebugResponse is the reply to an me (meta debug) command.
type DebugResponse struct {
	Hit   bool
	Attrs map[string][]byte
}

// ParseDebugResponse parses the reply to an me command. A miss is the bare
// "EN\r\n" the rest of the meta protocol uses for a missing key. A hit is a
// line of space-separated key=value attributes identical in shape to an
// lru_crawler metadump entry, except terminated by "\r\n" instead of a bare
// "\n" — me has no fixed flag vocabulary the way mg/ms/md/ma do, so the
// attributes are returned as raw tokens rather than typed fields.
func ParseDebugResponse(buf []byte) (int, DebugResponse, error) {
	if full, partial := matchLiteral(buf, "EN\r\n"); full {
		return len("EN\r\n"), DebugResponse{}, nil
	} else if partial {
		return 0, DebugResponse{}, ErrNeedMore
	}

	idx := bytes.Index(buf, []byte("\r\n"))
	if idx < 0 {
		return 0, DebugResponse{}, ErrNeedMore
	}
	attrs := make(map[string][]byte)
	for _, field := range bytes.Fields(buf[:idx]) {
		kv := bytes.SplitN(field, []byte("="), 2)
		if len(kv) != 2 {
			continue
		}
		attrs[string(kv[0])] = append([]byte(nil), kv[1]...)
	}
	return idx + 2, DebugResponse{Hit: true, Attrs: attrs}, nil
}

// parseFlags consumes a (possibly empty) run of " <type><token>" pairs from
// buf's head and returns the flags plus whatever remains, starting at the
// terminating "\r\n". It cannot tell "need more" from "malformed" until it
// either finds the '\r' or runs out of buffer, since a token's end is only
// recognizable by the delimiter that follows it.
func parseFlags(buf []byte) ([]Flag, []byte, error) {
	var flags []Flag
	rest := buf
	for {
		if len(rest) == 0 {
			return nil, nil, ErrNeedMore
		}
		if rest[0] == '\r' {
			return flags, rest, nil
		}
		if rest[0] != ' ' {
			return nil, nil, protocolMismatch("expected space before meta flag")
		}
		rest = rest[1:]
		if len(rest) == 0 {
			return nil, nil, ErrNeedMore
		}
		flagType := rest[0]
		rest = rest[1:]
		i := 0
		for i < len(rest) && rest[i] != ' ' && rest[i] != '\r' {
			i++
		}
		if i == len(rest) {
			return nil, nil, ErrNeedMore
		}
		token := append([]byte(nil), rest[:i]...)
		flags = append(flags, Flag{Type: flagType, Token: token})
		rest = rest[i:]
	}
}
