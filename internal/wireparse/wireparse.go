// Package wireparse holds the primitives shared by the classic and meta
// protocol parsers: the streaming "need more data" sentinel, the structural
// parse-error type, and the literal/prefix matcher both dialects dispatch
// through. Neither dialect's grammar above this point is shared — only the
// low-level byte-matching mechanics are.
package wireparse

import "errors"

// ErrNeedMore indicates the input is a valid prefix of some response but
// does not yet hold enough bytes to parse it fully.
var ErrNeedMore = errors.New("wireparse: need more data")

// ParseError reports that the input's leading bytes do not match any
// recognized response shape.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string { return "wireparse: " + e.Message }

// ProtocolMismatch constructs a *ParseError carrying msg.
func ProtocolMismatch(msg string) error { return &ParseError{Message: msg} }

// MatchLiteral compares buf's head against lit. full reports a complete,
// exact match. partial reports that buf is a (possibly empty) true prefix of
// lit, so more bytes could still complete the match; in that case the
// caller must return ErrNeedMore rather than treat it as a mismatch.
func MatchLiteral(buf []byte, lit string) (full, partial bool) {
	limit := len(buf)
	if len(lit) < limit {
		limit = len(lit)
	}
	for i := 0; i < limit; i++ {
		if buf[i] != lit[i] {
			return false, false
		}
	}
	if len(buf) >= len(lit) {
		return true, false
	}
	return false, true
}
