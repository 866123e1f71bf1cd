package types

import "github.com/meridian-labs/chainwatch/op-service/eth"

// ManagedEvent is a single notification from a managed node's event
// subscription. Exactly one field is set per notification (spec §4.E); the
// managed-node actor fans out on whichever is non-nil.
type ManagedEvent struct {
	Reset                  *string         `json:"reset,omitempty"`
	UnsafeBlock            *eth.BlockRef   `json:"unsafeBlock,omitempty"`
	DerivationUpdate       *DerivedRefPair `json:"derivationUpdate,omitempty"`
	DerivationOriginUpdate *eth.BlockRef   `json:"derivationOriginUpdate,omitempty"`
	ExhaustL1              *eth.BlockRef   `json:"exhaustL1,omitempty"`
	ReplaceBlock           *eth.BlockRef   `json:"replaceBlock,omitempty"`
}

// ManagedNodeCommand is the closed set of commands the command task may
// send to a managed node (spec §4.E). Implementations are small value
// types, carried on the command channel as ManagedNodeCommand values.
type ManagedNodeCommand interface {
	isManagedNodeCommand()
}

type UpdateFinalizedCommand struct{ ID eth.BlockID }
type UpdateCrossUnsafeCommand struct{ ID eth.BlockID }
type UpdateCrossSafeCommand struct{ Source, Derived eth.BlockID }
type ResetCommand struct{}
type InvalidateBlockCommand struct{ Seal BlockSeal }

func (UpdateFinalizedCommand) isManagedNodeCommand()   {}
func (UpdateCrossUnsafeCommand) isManagedNodeCommand() {}
func (UpdateCrossSafeCommand) isManagedNodeCommand()   {}
func (ResetCommand) isManagedNodeCommand()             {}
func (InvalidateBlockCommand) isManagedNodeCommand()   {}
