package memcache

// Status is the sum of outcomes a wire response can carry. Classic-protocol
// status lines map 1:1 onto these; meta-protocol response codes are
// translated onto the same set by the operation surface so that callers
// branch on one vocabulary regardless of dialect.
type Status int

const (
	StatusStored Status = iota
	StatusNotStored
	StatusDeleted
	StatusTouched
	StatusExists
	StatusNotFound
	StatusValue
	StatusNoOp
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusStored:
		return "STORED"
	case StatusNotStored:
		return "NOT_STORED"
	case StatusDeleted:
		return "DELETED"
	case StatusTouched:
		return "TOUCHED"
	case StatusExists:
		return "EXISTS"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusValue:
		return "VALUE"
	case StatusNoOp:
		return "NOOP"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MetaAttrs carries the meta-protocol observations attached to a Value when
// it was produced by a meta command rather than a classic one.
type MetaAttrs struct {
	Status           Status
	HitBefore        *bool
	LastAccessed     *uint64
	TTLRemaining     *int64
	Size             *uint64
	OpaqueToken      []byte
	IsRecacheWinner  *bool
	IsStale          *bool
}

// Value represents a single cached item retrieved from the server.
type Value struct {
	Key         []byte
	Data        []byte // nil when the caller did not request the payload
	ClientFlags *uint32
	CAS         *uint64
	MetaAttrs   *MetaAttrs // non-nil only for responses produced by a meta command
}

// KeyMetadata is one entry of a metadump (lru_crawler metadump) pass.
type KeyMetadata struct {
	Key          []byte
	Expiration   int64 // -1 means unlimited
	LastAccessed uint64
	CAS          uint64
	Fetched      bool
	ClassID      uint32
	Size         uint32
}

// MetadumpResponse is one parsed line of a metadump stream.
type MetadumpResponse struct {
	Kind    MetadumpKind
	Entry   *KeyMetadata
	Message string // set for Busy and BadClass
}

// MetadumpKind discriminates MetadumpResponse.
type MetadumpKind int

const (
	MetadumpEntry MetadumpKind = iota
	MetadumpEnd
	MetadumpBusy
	MetadumpBadClass
)

// StatsResponse is one parsed line of a stats stream.
type StatsResponse struct {
	End   bool
	Key   string
	Value string
}
