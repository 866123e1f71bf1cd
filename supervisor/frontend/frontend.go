package frontend

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/accesslist"
	"github.com/meridian-labs/chainwatch/supervisor/backend/depset"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// SupervisorAPI implements the `supervisor_*` JSON-RPC namespace (spec
// §6); its method names map to the RPC surface by go-ethereum's rpc
// package convention (exported Go method -> lower-camel-case RPC name).
type SupervisorAPI struct {
	backend Backend
}

func NewSupervisorAPI(backend Backend) *SupervisorAPI {
	return &SupervisorAPI{backend: backend}
}

func (a *SupervisorAPI) CrossDerivedToSource(ctx context.Context, chainID eth.ChainID, derived eth.BlockID) (eth.BlockRef, error) {
	return a.backend.CrossDerivedToSource(ctx, chainID, derived)
}

func (a *SupervisorAPI) LocalUnsafe(ctx context.Context, chainID eth.ChainID) (eth.BlockID, error) {
	return a.backend.LocalUnsafe(ctx, chainID)
}

func (a *SupervisorAPI) LocalSafe(ctx context.Context, chainID eth.ChainID) (LocalSafeResponse, error) {
	pair, err := a.backend.LocalSafe(ctx, chainID)
	if err != nil {
		return LocalSafeResponse{}, err
	}
	return LocalSafeResponse{Derived: pair.Derived.ID(), Source: pair.Source.ID()}, nil
}

func (a *SupervisorAPI) CrossSafe(ctx context.Context, chainID eth.ChainID) (CrossSafeResponse, error) {
	pair, err := a.backend.CrossSafe(ctx, chainID)
	if err != nil {
		return CrossSafeResponse{}, err
	}
	return CrossSafeResponse{Safe: pair.Derived.ID(), Source: pair.Source.ID()}, nil
}

func (a *SupervisorAPI) Finalized(ctx context.Context, chainID eth.ChainID) (eth.BlockID, error) {
	return a.backend.Finalized(ctx, chainID)
}

func (a *SupervisorAPI) FinalizedL1(ctx context.Context) (eth.BlockRef, error) {
	return a.backend.FinalizedL1(ctx)
}

func (a *SupervisorAPI) SuperRootAtTimestamp(ctx context.Context, timestamp uint64) (SuperRootResponse, error) {
	result, err := a.backend.SuperRootAtTimestamp(ctx, timestamp)
	if err != nil {
		return SuperRootResponse{}, err
	}
	return newSuperRootResponse(result), nil
}

func (a *SupervisorAPI) SyncStatus(ctx context.Context) (types.SyncStatus, error) {
	return a.backend.SyncStatus(ctx)
}

func (a *SupervisorAPI) AllSafeDerivedAt(ctx context.Context, source eth.BlockID) (map[eth.ChainID]eth.BlockID, error) {
	return a.backend.AllSafeDerivedAt(ctx, source)
}

// DependencySetV1 returns the static view of every chain this supervisor
// tracks. It builds a dedicated wire type rather than returning the
// depset.DependencySet interface directly: the concrete implementation's
// fields are unexported, so JSON reflection over the interface value
// would otherwise marshal to an empty object.
func (a *SupervisorAPI) DependencySetV1(ctx context.Context) (DependencySetResponse, error) {
	depSet := a.backend.DependencySet()
	chains := depSet.Chains()
	entries := make([]DependencySetEntry, 0, len(chains))
	for _, id := range chains {
		activation, err := depSet.ActivationTime(id)
		if err != nil {
			return DependencySetResponse{}, fmt.Errorf("%w: %v", ErrConflictingData, err)
		}
		blockTime, err := depSet.BlockTime(id)
		if err != nil {
			return DependencySetResponse{}, fmt.Errorf("%w: %v", ErrConflictingData, err)
		}
		expiry, err := depSet.MessageExpiryWindow(id)
		if err != nil {
			return DependencySetResponse{}, fmt.Errorf("%w: %v", ErrConflictingData, err)
		}
		entries = append(entries, DependencySetEntry{
			ChainID:             id,
			ActivationTime:      activation,
			BlockTime:           blockTime,
			MessageExpiryWindow: expiry,
		})
	}
	return DependencySetResponse{Chains: entries}, nil
}

// CheckAccessList validates every access in entries against the indexed
// log hash, minimum safety level, and timestamp/expiry invariants (spec
// §6, SPEC_FULL §3). It returns nil on success; any failure is wrapped in
// ErrConflictingData alongside the specific sub-reason.
func (a *SupervisorAPI) CheckAccessList(ctx context.Context, entries []common.Hash, minSafety types.SafetyLevel, descriptor AccessListDescriptor) error {
	accesses, err := accesslist.ParseEntries(entries)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConflictingData, err)
	}

	depSet := a.backend.DependencySet()
	for _, acc := range accesses {
		if err := a.checkOne(ctx, depSet, acc, minSafety, descriptor); err != nil {
			return err
		}
	}
	return nil
}

func (a *SupervisorAPI) checkOne(ctx context.Context, depSet depset.DependencySet, acc accesslist.Access, minSafety types.SafetyLevel, descriptor AccessListDescriptor) error {
	if !depSet.HasChain(acc.ChainID) {
		return fmt.Errorf("%w: %w: chain %s", ErrConflictingData, ErrUnknownChain, acc.ChainID)
	}

	logs, err := a.backend.BlockLogs(ctx, acc.ChainID, acc.BlockNumber)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConflictingData, err)
	}
	var logHash *common.Hash
	for _, l := range logs {
		if l.Index == acc.LogIndex {
			h := l.Hash
			logHash = &h
			break
		}
	}
	if logHash == nil {
		return fmt.Errorf("%w: %w: chain %s block %d log %d not indexed",
			ErrConflictingData, ErrChecksumMismatch, acc.ChainID, acc.BlockNumber, acc.LogIndex)
	}
	if err := acc.VerifyChecksum(*logHash); err != nil {
		return fmt.Errorf("%w: %w", ErrConflictingData, ErrChecksumMismatch)
	}

	if descriptor.Timestamp < acc.Timestamp {
		return fmt.Errorf("%w: %w", ErrConflictingData, ErrInvalidTimestampInvariant)
	}
	if window, err := depSet.MessageExpiryWindow(acc.ChainID); err == nil && window > 0 {
		if descriptor.Timestamp > acc.Timestamp+window {
			return fmt.Errorf("%w: %w", ErrConflictingData, ErrMessageExpired)
		}
	}

	head, err := a.backend.SafetyHead(ctx, acc.ChainID, minSafety)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConflictingData, err)
	}
	if head.Number < acc.BlockNumber {
		return fmt.Errorf("%w: %w: chain %s block %d has not reached %s",
			ErrConflictingData, ErrSafetyNotReached, acc.ChainID, acc.BlockNumber, minSafety)
	}
	return nil
}

func (a *SupervisorAPI) AddL2RPC(ctx context.Context, url string, jwtHex string) error {
	return a.backend.AddL2RPC(ctx, url, jwtHex)
}
