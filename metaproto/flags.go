package metaproto

import "strconv"

// MetaFlag is a single meta-protocol flag token and its optional argument,
// ready to be joined onto a request line with a leading space.
type MetaFlag string

// Request-side flag helpers. See https://docs.memcached.org/protocols/meta/
// for the full vocabulary; response-only flags (W, X, Z) are not built here
// since a caller never sends them, only reads them back via Response.Values.

// b: interpret key as base64 encoded binary value
func FlagBinary() MetaFlag { return MetaFlag("b") }

// c: return item cas token
func FlagReturnCAS() MetaFlag { return MetaFlag("c") }

// f: return client flags token
func FlagReturnClientFlags() MetaFlag { return MetaFlag("f") }

// h: return whether item has been hit before as a 0 or 1
func FlagReturnHit() MetaFlag { return MetaFlag("h") }

// k: return key as a token
func FlagReturnKey() MetaFlag { return MetaFlag("k") }

// l: return time since item was last accessed in seconds
func FlagReturnLastAccess() MetaFlag { return MetaFlag("l") }

// O(token): opaque value, consumes a token and copies back with response
func FlagOpaque(token string) MetaFlag { return MetaFlag("O" + token) }

// q: use noreply semantics for return codes
func FlagNoReply() MetaFlag { return MetaFlag("q") }

// s: return item size token
func FlagReturnSize() MetaFlag { return MetaFlag("s") }

// t: return item TTL remaining in seconds (-1 for unlimited)
func FlagReturnTTL() MetaFlag { return MetaFlag("t") }

// u: don't bump the item in the LRU
func FlagNoLRUBump() MetaFlag { return MetaFlag("u") }

// v: return item value in the data block
func FlagReturnValue() MetaFlag { return MetaFlag("v") }

// E(token): use token as new CAS value if item is modified
func FlagSetCAS(token string) MetaFlag { return MetaFlag("E" + token) }

// N(token): vivify on miss, takes TTL as an argument
func FlagVivify(ttl int) MetaFlag { return MetaFlag("N" + strconv.Itoa(ttl)) }

// R(token): if remaining TTL is less than token, win for recache
func FlagRecacheIfBelow(ttl int) MetaFlag { return MetaFlag("R" + strconv.Itoa(ttl)) }

// T(token): update remaining TTL (or set TTL for set/delete/arithmetic)
func FlagSetTTL(ttl int) MetaFlag { return MetaFlag("T" + strconv.Itoa(ttl)) }

// C(token): compare CAS value when storing item
func FlagCompareCAS(token string) MetaFlag { return MetaFlag("C" + token) }

// F(token): set client flags to token (32 bit unsigned numeric)
func FlagSetClientFlags(flags uint32) MetaFlag {
	return MetaFlag("F" + strconv.FormatUint(uint64(flags), 10))
}

// I: invalidate, set-to-invalid if supplied CAS is older than item's CAS
func FlagInvalidate() MetaFlag { return MetaFlag("I") }

// S(token): data length for ms (meta set)
func FlagSetDataLength(length int) MetaFlag { return MetaFlag("S" + strconv.Itoa(length)) }

// M(token): mode switch to change behavior (add, replace, append, prepend, set, incr, decr)
func FlagMode(mode byte) MetaFlag { return MetaFlag("M" + string(mode)) }

// x: removes the item value, but leaves the item (meta delete)
func FlagRemoveValue() MetaFlag { return MetaFlag("x") }

// D(token): delta to apply (arithmetic)
func FlagDelta(delta uint64) MetaFlag { return MetaFlag("D" + strconv.FormatUint(delta, 10)) }

// J(token): initial value to use if auto created after miss (arithmetic)
func FlagInitialValue(val uint64) MetaFlag { return MetaFlag("J" + strconv.FormatUint(val, 10)) }

// P(token): proxy hint (ignored by memcached itself, passed through by proxies)
func FlagProxyHint(hint string) MetaFlag { return MetaFlag("P" + hint) }

// L(token): path hint (ignored by memcached itself, passed through by proxies)
func FlagPathHint(hint string) MetaFlag { return MetaFlag("L" + hint) }

// Set/arithmetic mode tokens, for use with FlagMode.
const (
	ModeAppend  = 'A'
	ModePrepend = 'P'
	ModeAdd     = 'E'
	ModeReplace = 'R'
	ModeSet     = 'S'
	ModeIncr    = 'I'
	ModeDecr    = 'D'
	ModeIncrAlt = '+'
	ModeDecrAlt = '-'
)

func FlagModeAppend() MetaFlag  { return FlagMode(ModeAppend) }
func FlagModePrepend() MetaFlag { return FlagMode(ModePrepend) }
func FlagModeAdd() MetaFlag     { return FlagMode(ModeAdd) }
func FlagModeReplace() MetaFlag { return FlagMode(ModeReplace) }
func FlagModeSet() MetaFlag     { return FlagMode(ModeSet) }
func FlagModeIncr() MetaFlag    { return FlagMode(ModeIncr) }
func FlagModeDecr() MetaFlag    { return FlagMode(ModeDecr) }
func FlagModeIncrAlias() MetaFlag { return FlagMode(ModeIncrAlt) }
func FlagModeDecrAlias() MetaFlag { return FlagMode(ModeDecrAlt) }
