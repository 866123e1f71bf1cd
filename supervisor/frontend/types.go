package frontend

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/meridian-labs/chainwatch/op-service/eth"
)

// LocalSafeResponse is localSafe(chain_id)'s payload: {derived, source}.
type LocalSafeResponse struct {
	Derived eth.BlockID `json:"derived"`
	Source  eth.BlockID `json:"source"`
}

// CrossSafeResponse is crossSafe(chain_id)'s payload. The derived ref's
// JSON field is named "safe" rather than "derived" for legacy
// compatibility (spec §6).
type CrossSafeResponse struct {
	Safe   eth.BlockID `json:"safe"`
	Source eth.BlockID `json:"source"`
}

// superRootVersionHex is the even-length lowercase hex encoding of
// types.SuperRootVersion the spec requires ("0x01"), distinct from the
// minimal-width hexutil convention used elsewhere.
const superRootVersionHex = "0x01"

// ChainRootInfoResponse is one entry of superRootAtTimestamp's chains
// array. ChainID uses the quantity (minimal-width hex) encoding, per the
// original's alloy_serde::quantity annotation.
type ChainRootInfoResponse struct {
	ChainID   eth.ChainID   `json:"chainID"`
	Canonical common.Hash   `json:"canonical"`
	Pending   hexutil.Bytes `json:"pending"`
}

// SuperRootResponse is superRootAtTimestamp(ts)'s full payload.
type SuperRootResponse struct {
	CrossSafeDerivedFrom eth.BlockID             `json:"crossSafeDerivedFrom"`
	Timestamp            hexutil.Uint64          `json:"timestamp"`
	SuperRoot            common.Hash             `json:"superRoot"`
	Version              string                  `json:"version"`
	Chains               []ChainRootInfoResponse `json:"chains"`
}

func newSuperRootResponse(r *SuperRootResult) SuperRootResponse {
	chains := make([]ChainRootInfoResponse, len(r.Chains))
	for i, c := range r.Chains {
		chains[i] = ChainRootInfoResponse{
			ChainID:   c.ChainID,
			Canonical: c.Canonical,
			Pending:   c.Pending,
		}
	}
	return SuperRootResponse{
		CrossSafeDerivedFrom: r.CrossSafeDerivedFrom,
		Timestamp:            hexutil.Uint64(r.Timestamp),
		SuperRoot:            r.SuperRoot.Hash(),
		Version:              superRootVersionHex,
		Chains:               chains,
	}
}

// DependencySetEntry is one chain's entry in dependencySetV1()'s payload.
type DependencySetEntry struct {
	ChainID             eth.ChainID `json:"chainID"`
	ActivationTime      uint64      `json:"activationTime"`
	BlockTime           uint64      `json:"blockTime"`
	MessageExpiryWindow uint64      `json:"messageExpiryWindow"`
}

// DependencySetResponse is dependencySetV1()'s payload: the static,
// read-only view of every chain this supervisor tracks.
type DependencySetResponse struct {
	Chains []DependencySetEntry `json:"chains"`
}

// AccessListDescriptor is checkAccessList's third argument: the executing
// transaction's timestamp, an optional validation timeout, and an
// optional executing chain ID. CheckAccessList reads only Timestamp;
// TimeoutMs and ChainID are decoded but do not affect the check.
type AccessListDescriptor struct {
	Timestamp uint64       `json:"timestamp"`
	TimeoutMs uint64       `json:"timeout,omitempty"`
	ChainID   *eth.ChainID `json:"chainID,omitempty"`
}
