// Package validator implements the cross-chain validator (spec §4.C.5): for
// every executing-message pointer in a candidate block, it confirms the
// referenced initiating message exists, matches, is still within its
// expiry window, and has reached the safety level the promoter requires.
package validator

import (
	"fmt"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/backend/db"
	"github.com/meridian-labs/chainwatch/supervisor/backend/depset"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// Factory is the subset of db.Factory the validator needs: a shared handle
// to any tracked chain's storage, to read the initiating side of a
// cross-chain pointer.
type Factory interface {
	ForChain(chainID eth.ChainID) (*db.DB, error)
}

type Validator struct {
	factory Factory
	depSet  depset.DependencySet
}

func New(factory Factory, depSet depset.DependencySet) *Validator {
	return &Validator{factory: factory, depSet: depSet}
}

// ValidateBlock checks every executing message among logs against its
// initiating chain, requiring that chain's head at lowerBound to have
// already reached the initiating block. timeout, if non-nil, tightens the
// expiry check for a caller with its own deadline (spec §4.C.5 item 4).
func (v *Validator) ValidateBlock(candidate eth.BlockRef, logs []types.Log, lowerBound types.SafetyLevel, timeout *uint64) error {
	for _, l := range logs {
		if l.ExecutingMessage == nil {
			continue
		}
		if err := v.validatePointer(candidate, *l.ExecutingMessage, lowerBound, timeout); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validatePointer(executing eth.BlockRef, ptr types.ExecutingMessage, lowerBound types.SafetyLevel, timeout *uint64) error {
	if !v.depSet.HasChain(ptr.ChainID) {
		return types.NewValidationError("unsupported chain", fmt.Errorf("chain %s not in dependency set", ptr.ChainID))
	}
	initiatingDB, err := v.factory.ForChain(ptr.ChainID)
	if err != nil {
		return fmt.Errorf("open initiating chain %s: %w", ptr.ChainID, err)
	}

	initiatingBlock, err := initiatingDB.GetBlockRef(ptr.BlockNumber)
	if err == types.ErrFuture {
		return types.ErrDependencyNotSafe
	}
	if err != nil {
		return fmt.Errorf("read initiating block %d on chain %s: %w", ptr.BlockNumber, ptr.ChainID, err)
	}
	if initiatingBlock.Time != ptr.Timestamp {
		return types.NewValidationError("initiating timestamp mismatch", fmt.Errorf("want %d, got %d", ptr.Timestamp, initiatingBlock.Time))
	}

	initiatingLogs, err := initiatingDB.GetBlockLogs(ptr.BlockNumber)
	if err != nil {
		return fmt.Errorf("read initiating logs for block %d on chain %s: %w", ptr.BlockNumber, ptr.ChainID, err)
	}
	var initiatingLog *types.Log
	for i := range initiatingLogs {
		if initiatingLogs[i].Index == ptr.LogIndex {
			initiatingLog = &initiatingLogs[i]
			break
		}
	}
	if initiatingLog == nil {
		return types.NewValidationError("initiating log not found", fmt.Errorf("log index %d in block %d", ptr.LogIndex, ptr.BlockNumber))
	}
	if initiatingLog.Hash != ptr.PayloadHash {
		return types.NewValidationError("payload hash mismatch", fmt.Errorf("want %s, got %s", ptr.PayloadHash, initiatingLog.Hash))
	}

	expiry, err := v.depSet.MessageExpiryWindow(ptr.ChainID)
	if err != nil {
		return fmt.Errorf("expiry window for chain %s: %w", ptr.ChainID, err)
	}
	upperBound := initiatingBlock.Time + expiry
	if executing.Time < initiatingBlock.Time || executing.Time > upperBound {
		return types.NewValidationError("interop timestamp invariant violated",
			fmt.Errorf("executing=%d not in [%d, %d]", executing.Time, initiatingBlock.Time, upperBound))
	}
	if timeout != nil && executing.Time+*timeout > upperBound {
		return types.NewValidationError("interop timeout would exceed expiry window",
			fmt.Errorf("executing=%d timeout=%d exceeds %d", executing.Time, *timeout, upperBound))
	}

	boundHead, err := initiatingDB.GetSafetyHeadRef(lowerBound)
	if err == types.ErrFuture {
		return types.ErrDependencyNotSafe
	}
	if err != nil {
		return fmt.Errorf("read %s head on chain %s: %w", lowerBound, ptr.ChainID, err)
	}
	if boundHead.Number < ptr.BlockNumber {
		return types.ErrDependencyNotSafe
	}
	return nil
}
