package types

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-labs/chainwatch/op-service/eth"
)

// BlockSeal is the durable, on-disk projection of a BlockRef: number, hash
// and timestamp, without the parent hash. Storage rows are built from
// BlockSeal rather than BlockRef because most tables never need the parent
// hash once contiguity has been checked on write.
type BlockSeal struct {
	Hash      common.Hash `json:"hash"`
	Number    uint64      `json:"number"`
	Timestamp uint64      `json:"timestamp"`
}

func BlockSealFromRef(r eth.BlockRef) BlockSeal {
	return BlockSeal{Hash: r.Hash, Number: r.Number, Timestamp: r.Time}
}

func (s BlockSeal) ID() eth.BlockID {
	return eth.BlockID{Hash: s.Hash, Number: s.Number}
}

func (s BlockSeal) String() string {
	return s.ID().String()
}

// DerivedBlockSealPair is the BlockSeal-only projection of DerivedRefPair,
// stored in the DerivedBlocks table.
type DerivedBlockSealPair struct {
	Source  BlockSeal `json:"source"`
	Derived BlockSeal `json:"derived"`
}

func (p DerivedRefPair) Seals() DerivedBlockSealPair {
	return DerivedBlockSealPair{Source: BlockSealFromRef(p.Source), Derived: BlockSealFromRef(p.Derived)}
}
