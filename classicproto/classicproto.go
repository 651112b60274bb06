// Package classicproto implements a pure, streaming parser for the classic
// memcached ASCII protocol: status lines, error lines, numeric incr/decr
// replies, VALUE/END data blocks, metadump lines, and stats lines.
//
// Every exported Parse* function has the same contract: given a byte slice
// that may hold a partial response, it returns either a fully parsed value
// and the number of bytes it consumed, ErrNeedMore (the buffer holds a valid
// but incomplete prefix), or a *ParseError (the bytes do not match any
// recognized shape). The functions never read past what they're given and
// never retain a reference into the input buffer's backing array — callers
// are free to discard or reuse buf once a call returns.
package classicproto

import (
	"bytes"
	"strconv"

	"github.com/Shopify/async-memcache/internal/wireparse"
)

// ErrNeedMore indicates buf is a valid prefix of a response but does not yet
// contain enough bytes to parse it fully. Callers append more data and retry
// the same parse; a previous call's bytes must be kept verbatim, since the
// parser is stateless and idempotent on any given prefix.
var ErrNeedMore = wireparse.ErrNeedMore

// ParseError is returned when buf's leading bytes do not match any
// recognized response shape for the dialect in question.
type ParseError = wireparse.ParseError

func protocolMismatch(msg string) error { return wireparse.ProtocolMismatch(msg) }

func matchLiteral(buf []byte, lit string) (full, partial bool) {
	return wireparse.MatchLiteral(buf, lit)
}

var crlf = []byte("\r\n")

// Kind discriminates the shape carried by a Response.
type Kind int

const (
	KindStatus Kind = iota
	KindError
	KindNumber
	KindData
)

// StatusLine enumerates the classic bare status replies.
type StatusLine int

const (
	Stored StatusLine = iota
	NotStored
	Deleted
	Touched
	Exists
	NotFound
)

func (s StatusLine) String() string {
	switch s {
	case Stored:
		return "STORED"
	case NotStored:
		return "NOT_STORED"
	case Deleted:
		return "DELETED"
	case Touched:
		return "TOUCHED"
	case Exists:
		return "EXISTS"
	case NotFound:
		return "NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// ErrorKind distinguishes the three classic error-line shapes.
type ErrorKind int

const (
	NonexistentCommand ErrorKind = iota
	ClientError
	ServerError
)

// Value is one VALUE entry of a get/gets reply.
type Value struct {
	Key   []byte
	Flags uint32
	CAS   *uint64
	Data  []byte
}

// Response is the union of everything ParseResponse can produce.
type Response struct {
	Kind         Kind
	Status       StatusLine
	ErrorKind    ErrorKind
	ErrorMessage string
	Number       uint64
	Values       []Value
}

var statusLiterals = [...]struct {
	text   string
	status StatusLine
}{
	{"STORED\r\n", Stored},
	{"NOT_STORED\r\n", NotStored},
	{"DELETED\r\n", Deleted},
	{"TOUCHED\r\n", Touched},
	{"EXISTS\r\n", Exists},
	{"NOT_FOUND\r\n", NotFound},
}

// ParseResponse parses the reply to any classic command other than a
// metadump or stats pull: status lines, error lines, numeric incr/decr
// replies, and VALUE/END data blocks all dispatch through here, mirroring
// the single alternation the wire grammar itself uses.
func ParseResponse(buf []byte) (int, Response, error) {
	if len(buf) == 0 {
		return 0, Response{}, ErrNeedMore
	}

	anyPartial := false

	for _, lit := range statusLiterals {
		full, partial := matchLiteral(buf, lit.text)
		if full {
			return len(lit.text), Response{Kind: KindStatus, Status: lit.status}, nil
		}
		if partial {
			anyPartial = true
		}
	}

	if n, resp, ok, partial, err := tryErrorLine(buf); ok || err != nil {
		return n, resp, err
	} else if partial {
		anyPartial = true
	}

	if n, resp, ok, partial, err := tryDataBlocks(buf); ok || err != nil {
		return n, resp, err
	} else if partial {
		anyPartial = true
	}

	if n, resp, ok, partial, err := tryNumberLine(buf); ok || err != nil {
		return n, resp, err
	} else if partial {
		anyPartial = true
	}

	if anyPartial {
		return 0, Response{}, ErrNeedMore
	}
	return 0, Response{}, protocolMismatch("unrecognized response")
}

func tryErrorLine(buf []byte) (n int, resp Response, ok bool, partial bool, err error) {
	if full, part := matchLiteral(buf, "ERROR\r\n"); full {
		return len("ERROR\r\n"), Response{Kind: KindError, ErrorKind: NonexistentCommand}, true, false, nil
	} else if part {
		partial = true
	}

	textual := [...]struct {
		prefix string
		kind   ErrorKind
	}{
		{"CLIENT_ERROR ", ClientError},
		{"SERVER_ERROR ", ServerError},
	}

	for _, p := range textual {
		full, part := matchLiteral(buf, p.prefix)
		if part {
			partial = true
			continue
		}
		if !full {
			continue
		}
		rest := buf[len(p.prefix):]
		idx := bytes.Index(rest, crlf)
		if idx < 0 {
			partial = true
			continue
		}
		total := len(p.prefix) + idx + 2
		return total, Response{Kind: KindError, ErrorKind: p.kind, ErrorMessage: string(rest[:idx])}, true, false, nil
	}
	return 0, Response{}, false, partial, nil
}

func tryNumberLine(buf []byte) (n int, resp Response, ok bool, partial bool, err error) {
	i := 0
	for i < len(buf) && buf[i] >= '0' && buf[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, Response{}, false, false, nil
	}
	if i >= len(buf) {
		return 0, Response{}, false, true, nil
	}
	full, part := matchLiteral(buf[i:], "\r\n")
	if part {
		return 0, Response{}, false, true, nil
	}
	if !full {
		return 0, Response{}, false, false, protocolMismatch("malformed numeric reply")
	}
	num, perr := strconv.ParseUint(string(buf[:i]), 10, 64)
	if perr != nil {
		return 0, Response{}, false, false, protocolMismatch("numeric reply overflow")
	}
	return i + 2, Response{Kind: KindNumber, Number: num}, true, false, nil
}

func tryDataBlocks(buf []byte) (n int, resp Response, ok bool, partial bool, err error) {
	pos := 0
	var values []Value
	for {
		remaining := buf[pos:]

		if full, part := matchLiteral(remaining, "END\r\n"); full {
			pos += len("END\r\n")
			return pos, Response{Kind: KindData, Values: values}, true, false, nil
		} else if part {
			return 0, Response{}, false, true, nil
		}

		full, part := matchLiteral(remaining, "VALUE ")
		if part {
			return 0, Response{}, false, true, nil
		}
		if !full {
			if pos == 0 {
				return 0, Response{}, false, false, nil
			}
			return 0, Response{}, false, false, protocolMismatch("expected VALUE or END")
		}

		idx := bytes.Index(remaining, crlf)
		if idx < 0 {
			return 0, Response{}, false, true, nil
		}
		header := remaining[len("VALUE "):idx]
		fields := bytes.Fields(header)
		if len(fields) < 3 {
			return 0, Response{}, false, false, protocolMismatch("malformed VALUE header")
		}
		key := append([]byte(nil), fields[0]...)

		flags64, ferr := strconv.ParseUint(string(fields[1]), 10, 32)
		if ferr != nil {
			return 0, Response{}, false, false, protocolMismatch("invalid flags in VALUE header")
		}
		length, lerr := strconv.ParseUint(string(fields[2]), 10, 64)
		if lerr != nil {
			return 0, Response{}, false, false, protocolMismatch("invalid length in VALUE header")
		}

		var cas *uint64
		if len(fields) >= 4 {
			c, cerr := strconv.ParseUint(string(fields[3]), 10, 64)
			if cerr != nil {
				return 0, Response{}, false, false, protocolMismatch("invalid cas in VALUE header")
			}
			cas = &c
		}

		bodyStart := idx + 2
		need := bodyStart + int(length) + 2
		if len(remaining) < need {
			return 0, Response{}, false, true, nil
		}
		if !bytes.Equal(remaining[bodyStart+int(length):need], crlf) {
			return 0, Response{}, false, false, protocolMismatch("missing trailing CRLF after value data")
		}
		data := append([]byte(nil), remaining[bodyStart:bodyStart+int(length)]...)

		values = append(values, Value{Key: key, Flags: uint32(flags64), CAS: cas, Data: data})
		pos += need
	}
}

// MetadumpKind discriminates a MetadumpLine.
type MetadumpKind int

const (
	MetadumpEntry MetadumpKind = iota
	MetadumpEnd
	MetadumpBusy
	MetadumpBadClass
)

// KeyMetadata is one lru_crawler metadump entry.
type KeyMetadata struct {
	Key          []byte
	Expiration   int64
	LastAccessed uint64
	CAS          uint64
	Fetched      bool
	ClassID      uint32
	Size         uint32
}

// MetadumpLine is one parsed line of a metadump stream.
type MetadumpLine struct {
	Kind    MetadumpKind
	Entry   *KeyMetadata
	Message string
}

// ParseMetadump parses one line of an `lru_crawler metadump` stream. Entry
// lines are terminated by a bare '\n'; End/Busy/BadClass are terminated by
// '\r\n', matching the server's own inconsistency here.
func ParseMetadump(buf []byte) (int, MetadumpLine, error) {
	if len(buf) == 0 {
		return 0, MetadumpLine{}, ErrNeedMore
	}

	if full, part := matchLiteral(buf, "END\r\n"); full {
		return len("END\r\n"), MetadumpLine{Kind: MetadumpEnd}, nil
	} else if part {
		return 0, MetadumpLine{}, ErrNeedMore
	}

	if n, line, ok, partial := tryMetadumpTagged(buf, "BUSY ", MetadumpBusy); ok {
		return n, line, nil
	} else if partial {
		return 0, MetadumpLine{}, ErrNeedMore
	}

	if n, line, ok, partial := tryMetadumpTagged(buf, "BADCLASS ", MetadumpBadClass); ok {
		return n, line, nil
	} else if partial {
		return 0, MetadumpLine{}, ErrNeedMore
	}

	if full, part := matchLiteral(buf, "key="); full {
		return parseMetadumpEntry(buf)
	} else if part {
		return 0, MetadumpLine{}, ErrNeedMore
	}

	return 0, MetadumpLine{}, protocolMismatch("unrecognized metadump line")
}

func tryMetadumpTagged(buf []byte, prefix string, kind MetadumpKind) (int, MetadumpLine, bool, bool) {
	full, part := matchLiteral(buf, prefix)
	if part {
		return 0, MetadumpLine{}, false, true
	}
	if !full {
		return 0, MetadumpLine{}, false, false
	}
	rest := buf[len(prefix):]
	idx := bytes.Index(rest, crlf)
	if idx < 0 {
		return 0, MetadumpLine{}, false, true
	}
	total := len(prefix) + idx + 2
	return total, MetadumpLine{Kind: kind, Message: string(rest[:idx])}, true, false
}

func parseMetadumpEntry(buf []byte) (int, MetadumpLine, error) {
	idx := bytes.IndexByte(buf, '\n')
	if idx < 0 {
		return 0, MetadumpLine{}, ErrNeedMore
	}
	line := bytes.TrimSuffix(buf[:idx], []byte("\r"))

	entry := &KeyMetadata{}
	for _, field := range bytes.Fields(line) {
		kv := bytes.SplitN(field, []byte("="), 2)
		if len(kv) != 2 {
			continue
		}
		val := string(kv[1])
		switch string(kv[0]) {
		case "key":
			entry.Key = []byte(val)
		case "exp":
			v, e := strconv.ParseInt(val, 10, 64)
			if e != nil {
				return 0, MetadumpLine{}, protocolMismatch("invalid exp in metadump entry")
			}
			entry.Expiration = v
		case "la":
			v, e := strconv.ParseUint(val, 10, 64)
			if e != nil {
				return 0, MetadumpLine{}, protocolMismatch("invalid la in metadump entry")
			}
			entry.LastAccessed = v
		case "cas":
			v, e := strconv.ParseUint(val, 10, 64)
			if e != nil {
				return 0, MetadumpLine{}, protocolMismatch("invalid cas in metadump entry")
			}
			entry.CAS = v
		case "fetch":
			entry.Fetched = val == "yes"
		case "cls":
			v, e := strconv.ParseUint(val, 10, 32)
			if e != nil {
				return 0, MetadumpLine{}, protocolMismatch("invalid cls in metadump entry")
			}
			entry.ClassID = uint32(v)
		case "size":
			v, e := strconv.ParseUint(val, 10, 32)
			if e != nil {
				return 0, MetadumpLine{}, protocolMismatch("invalid size in metadump entry")
			}
			entry.Size = uint32(v)
		}
	}
	return idx + 1, MetadumpLine{Kind: MetadumpEntry, Entry: entry}, nil
}

// StatsLine is one parsed line of a `stats` stream.
type StatsLine struct {
	End   bool
	Key   string
	Value string
}

// ParseStats parses one line of a `stats` reply: repeated `STAT k v\r\n`
// entries terminated by a bare `END\r\n`.
func ParseStats(buf []byte) (int, StatsLine, error) {
	if len(buf) == 0 {
		return 0, StatsLine{}, ErrNeedMore
	}

	if full, part := matchLiteral(buf, "END\r\n"); full {
		return len("END\r\n"), StatsLine{End: true}, nil
	} else if part {
		return 0, StatsLine{}, ErrNeedMore
	}

	full, part := matchLiteral(buf, "STAT ")
	if part {
		return 0, StatsLine{}, ErrNeedMore
	}
	if !full {
		return 0, StatsLine{}, protocolMismatch("unrecognized stats line")
	}

	idx := bytes.Index(buf, crlf)
	if idx < 0 {
		return 0, StatsLine{}, ErrNeedMore
	}
	rest := buf[len("STAT "):idx]
	parts := bytes.SplitN(rest, []byte(" "), 2)
	if len(parts) != 2 {
		return 0, StatsLine{}, protocolMismatch("malformed STAT line")
	}
	return idx + 2, StatsLine{Key: string(parts[0]), Value: string(parts[1])}, nil
}

// IsKeyChar reports whether b is a valid classic-protocol key byte: strictly
// greater than 0x20 and strictly less than 0x7F.
func IsKeyChar(b byte) bool {
	return b > 0x20 && b < 0x7F
}

// ParseVersion parses a `version` command's reply: "VERSION <text>\r\n".
func ParseVersion(buf []byte) (int, string, error) {
	full, part := matchLiteral(buf, "VERSION ")
	if part {
		return 0, "", ErrNeedMore
	}
	if !full {
		return 0, "", protocolMismatch("expected VERSION reply")
	}
	idx := bytes.Index(buf, crlf)
	if idx < 0 {
		return 0, "", ErrNeedMore
	}
	return idx + 2, string(buf[len("VERSION "):idx]), nil
}

// ParseOK parses the bare "OK\r\n" reply flush_all gives on success.
func ParseOK(buf []byte) (int, error) {
	full, part := matchLiteral(buf, "OK\r\n")
	if full {
		return len("OK\r\n"), nil
	}
	if part {
		return 0, ErrNeedMore
	}
	return 0, protocolMismatch("expected OK reply")
}
