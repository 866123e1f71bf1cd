package accesslist

import "errors"

// Parse/verify failures. These map to the RPC-visible ConflictingData
// failure the frontend reports for checkAccessList (spec §7).
var (
	// ErrMalformedEntry covers bad prefixes, non-zero reserved bytes, a
	// checksum that doesn't match its log hash, or entries out of group
	// order.
	ErrMalformedEntry = errors.New("malformed access-list entry")
	// ErrUnexpectedEnd means the entry list ended with a lookup entry that
	// never got its checksum.
	ErrUnexpectedEnd = errors.New("access list ended mid-group")
)
