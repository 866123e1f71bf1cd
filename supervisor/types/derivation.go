package types

import "github.com/meridian-labs/chainwatch/op-service/eth"

// DerivedRefPair ties an L2 block to the L1 block whose batch data it was
// first derived from. Invariant (spec §3): Derived.Time >= Source.Time.
type DerivedRefPair struct {
	Source  eth.BlockRef `json:"source"`
	Derived eth.BlockRef `json:"derived"`
}

// DerivedIDPair is the BlockID-only projection of DerivedRefPair, used where
// only identity (not timestamp/parent) matters, e.g. RPC responses.
type DerivedIDPair struct {
	Source  eth.BlockID `json:"source"`
	Derived eth.BlockID `json:"derived"`
}

func (p DerivedRefPair) IDs() DerivedIDPair {
	return DerivedIDPair{Source: p.Source.ID(), Derived: p.Derived.ID()}
}
