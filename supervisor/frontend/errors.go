package frontend

import "errors"

// ErrConflictingData is the umbrella RPC-visible error checkAccessList
// returns, matching the superchain DA spec's ConflictingData wording
// (spec §7). The specific reason is one of the sentinels below, wrapped
// underneath it so callers can still errors.Is against either.
var ErrConflictingData = errors.New("conflicting data")

var (
	// ErrUnknownChain means an access referenced a chain ID absent from
	// the configured dependency set.
	ErrUnknownChain = errors.New("unsupported chain")
	// ErrChecksumMismatch means an access's checksum did not match the
	// log hash this supervisor has indexed for that block and log index.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrSafetyNotReached means the referenced block has not reached the
	// minimum safety level the caller required.
	ErrSafetyNotReached = errors.New("safety level not reached")
	// ErrMessageExpired means the initiating message's age, measured
	// against the descriptor's timestamp, exceeds the initiating chain's
	// configured message expiry window.
	ErrMessageExpired = errors.New("message expired")
	// ErrInvalidTimestampInvariant means the executing timestamp
	// (descriptor.Timestamp) precedes the initiating message's timestamp.
	ErrInvalidTimestampInvariant = errors.New("executing timestamp precedes initiating timestamp")
)
