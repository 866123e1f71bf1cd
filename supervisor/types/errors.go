package types

import "errors"

// Transient conditions (spec §7). They are not translated at the RPC
// boundary: the read API (e.g. FinalizedL1) returns ErrFuture unchanged
// when a requested head has not been reached yet.
var (
	// ErrFuture means the requested data has not been produced yet: "not
	// yet reached", never to be confused with a corrupt or missing record.
	ErrFuture = errors.New("future data")
	// ErrNoBlockToPromote names the case where the upper-bound safety
	// level has not advanced past the current one. The safety promoter
	// reports that case as its "no_block_to_promote" outcome and does not
	// return this error.
	ErrNoBlockToPromote = errors.New("no block to promote")
	// ErrDependencyNotSafe means a referenced chain's head has not yet
	// reached the safety level the cross-chain validator requires.
	ErrDependencyNotSafe = errors.New("dependency not safe")
	// ErrChannelSendFailed wraps a failed non-blocking or timed-out send
	// to an actor's command or event channel.
	ErrChannelSendFailed = errors.New("channel send failed")
)

// Reorg signal: not an error to the caller of save_source_block, but a
// sentinel the origin handler distinguishes from other storage failures.
var ErrBlockOutOfOrder = errors.New("block out of order")

// Integrity errors: critical, terminate the offending actor.
var (
	ErrConflict           = errors.New("conflicting data")
	ErrAlreadyInitialised = errors.New("already initialised")
	ErrLockPoisoned       = errors.New("lock poisoned")
)

// Auth/transport: non-retryable.
var ErrAuthentication = errors.New("authentication error")

// ErrUnknownToNode is returned by a managed node RPC call when the
// requested block number is outside the range the node currently knows
// about (neither reorg'd onto nor yet built). Reset bisection treats this
// the same as an inconsistent block: pull the search range back.
var ErrUnknownToNode = errors.New("block unknown to managed node")

// UnknownToNodeRPCCode is the JSON-RPC error code a managed node uses to
// signal ErrUnknownToNode, distinguishing it from a generic transport or
// decode failure.
const UnknownToNodeRPCCode = -39001

// ValidationError is returned by the cross-chain validator (spec §4.C.5).
// Unlike the transient/integrity sentinels above, it carries the reason a
// specific executing message failed to validate, since that detail is
// logged and (for CrossSafe) forwarded to the invalidation pipeline.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidationError(reason string, cause error) *ValidationError {
	return &ValidationError{Reason: reason, Err: cause}
}

// IsCritical reports whether err is one of the integrity errors that must
// terminate the offending actor and cancel the global token (spec §7),
// rather than being retried or merely logged.
func IsCritical(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyInitialised) || errors.Is(err, ErrLockPoisoned)
}
