package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-labs/chainwatch/op-service/clock"
	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/backend/depset"
	"github.com/meridian-labs/chainwatch/supervisor/backend/syncnode"
	"github.com/meridian-labs/chainwatch/supervisor/frontend"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// chainDB looks up chainID's storage handle, translating the unconfigured
// case into frontend's unknown-chain sentinel rather than depset's.
func (sb *SupervisorBackend) chainDB(chainID eth.ChainID) (interface {
	GetSafetyHeadRef(types.SafetyLevel) (types.BlockSeal, error)
	GetDerivedBlock(uint64) (types.DerivedBlockSealPair, error)
	GetBlockLogs(uint64) ([]types.Log, error)
}, error) {
	actors, ok := sb.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", frontend.ErrUnknownChain, chainID)
	}
	return actors.db, nil
}

func (sb *SupervisorBackend) ChainIDs() []eth.ChainID {
	return sb.depSet.Chains()
}

func (sb *SupervisorBackend) DependencySet() depset.DependencySet {
	return sb.depSet
}

func (sb *SupervisorBackend) LocalUnsafe(ctx context.Context, chainID eth.ChainID) (eth.BlockID, error) {
	d, err := sb.chainDB(chainID)
	if err != nil {
		return eth.BlockID{}, err
	}
	seal, err := d.GetSafetyHeadRef(types.LocalUnsafe)
	if err != nil {
		return eth.BlockID{}, err
	}
	return seal.ID(), nil
}

func (sb *SupervisorBackend) safeDerivedPair(chainID eth.ChainID, level types.SafetyLevel) (types.DerivedBlockSealPair, error) {
	d, err := sb.chainDB(chainID)
	if err != nil {
		return types.DerivedBlockSealPair{}, err
	}
	head, err := d.GetSafetyHeadRef(level)
	if err != nil {
		return types.DerivedBlockSealPair{}, err
	}
	return d.GetDerivedBlock(head.Number)
}

func (sb *SupervisorBackend) LocalSafe(ctx context.Context, chainID eth.ChainID) (types.DerivedBlockSealPair, error) {
	return sb.safeDerivedPair(chainID, types.LocalSafe)
}

func (sb *SupervisorBackend) CrossSafe(ctx context.Context, chainID eth.ChainID) (types.DerivedBlockSealPair, error) {
	return sb.safeDerivedPair(chainID, types.CrossSafe)
}

func (sb *SupervisorBackend) Finalized(ctx context.Context, chainID eth.ChainID) (eth.BlockID, error) {
	d, err := sb.chainDB(chainID)
	if err != nil {
		return eth.BlockID{}, err
	}
	seal, err := d.GetSafetyHeadRef(types.Finalized)
	if err != nil {
		return eth.BlockID{}, err
	}
	return seal.ID(), nil
}

// FinalizedL1 reports the L1 watcher's current finalized reference. Its
// timestamp is unknown to the watcher (it only tracks identity for reorg
// detection), so the returned BlockRef carries a zero Time and ParentHash.
func (sb *SupervisorBackend) FinalizedL1(ctx context.Context) (eth.BlockRef, error) {
	id, ok := sb.watcher.GetFinalizedL1()
	if !ok {
		return eth.BlockRef{}, types.ErrFuture
	}
	return eth.BlockRef{Hash: id.Hash, Number: id.Number}, nil
}

func (sb *SupervisorBackend) CrossDerivedToSource(ctx context.Context, chainID eth.ChainID, derived eth.BlockID) (eth.BlockRef, error) {
	d, err := sb.chainDB(chainID)
	if err != nil {
		return eth.BlockRef{}, err
	}
	pair, err := d.GetDerivedBlock(derived.Number)
	if err != nil {
		return eth.BlockRef{}, err
	}
	if pair.Derived.Hash != derived.Hash {
		return eth.BlockRef{}, types.ErrConflict
	}
	return eth.BlockRef{Hash: pair.Source.Hash, Number: pair.Source.Number, Time: pair.Source.Timestamp}, nil
}

func (sb *SupervisorBackend) SyncStatus(ctx context.Context) (types.SyncStatus, error) {
	status := types.SyncStatus{Chains: make(map[eth.ChainID]types.ChainSyncStatus, len(sb.chains))}
	if finalizedL1, err := sb.FinalizedL1(ctx); err == nil {
		status.MinSyncedL1 = finalizedL1.ID()
	}
	for chainID, actors := range sb.chains {
		localUnsafe, err := actors.db.GetSafetyHeadRef(types.LocalUnsafe)
		if err != nil {
			return types.SyncStatus{}, fmt.Errorf("chain %s local-unsafe: %w", chainID, err)
		}
		crossUnsafe, err := actors.db.GetSafetyHeadRef(types.CrossUnsafe)
		if err != nil {
			return types.SyncStatus{}, fmt.Errorf("chain %s cross-unsafe: %w", chainID, err)
		}
		localSafePair, err := sb.safeDerivedPair(chainID, types.LocalSafe)
		if err != nil {
			return types.SyncStatus{}, fmt.Errorf("chain %s local-safe: %w", chainID, err)
		}
		crossSafePair, err := sb.safeDerivedPair(chainID, types.CrossSafe)
		if err != nil {
			return types.SyncStatus{}, fmt.Errorf("chain %s cross-safe: %w", chainID, err)
		}
		finalized, err := actors.db.GetSafetyHeadRef(types.Finalized)
		if err != nil {
			return types.SyncStatus{}, fmt.Errorf("chain %s finalized: %w", chainID, err)
		}
		status.Chains[chainID] = types.ChainSyncStatus{
			LocalUnsafe: localUnsafe,
			CrossUnsafe: crossUnsafe.ID(),
			LocalSafe:   localSafePair.Derived.ID(),
			CrossSafe:   crossSafePair.Derived.ID(),
			Finalized:   finalized.ID(),
		}
		if finalized.Timestamp > status.FinalizedTimestamp {
			status.FinalizedTimestamp = finalized.Timestamp
		}
		if crossSafePair.Derived.Timestamp > status.CrossSafeTimestamp {
			status.CrossSafeTimestamp = crossSafePair.Derived.Timestamp
		}
	}
	return status, nil
}

func (sb *SupervisorBackend) AllSafeDerivedAt(ctx context.Context, source eth.BlockID) (map[eth.ChainID]eth.BlockID, error) {
	out := make(map[eth.ChainID]eth.BlockID, len(sb.chains))
	for chainID, actors := range sb.chains {
		seal, err := actors.db.GetLatestDerivedAtSource(source.Number)
		if err != nil {
			return nil, fmt.Errorf("chain %s derived at source %d: %w", chainID, source.Number, err)
		}
		out[chainID] = seal.ID()
	}
	return out, nil
}

// SuperRootAtTimestamp builds the super root from each chain's canonical
// output root at timestamp. Each ChainRootInfo carries only the canonical
// root; Pending is left empty.
func (sb *SupervisorBackend) SuperRootAtTimestamp(ctx context.Context, timestamp uint64) (*frontend.SuperRootResult, error) {
	chains := make([]types.ChainRoot, 0, len(sb.chains))
	infos := make([]frontend.ChainRootInfo, 0, len(sb.chains))
	var crossSafeSource eth.BlockID

	for chainID, actors := range sb.chains {
		ref, err := actors.client.L2BlockRefByTimestamp(ctx, timestamp)
		if err != nil {
			return nil, fmt.Errorf("chain %s block at timestamp %d: %w", chainID, timestamp, err)
		}
		if err := actors.db.IsLocalSafe(ref.ID()); err != nil {
			return nil, fmt.Errorf("chain %s block %s not local-safe: %w", chainID, ref, err)
		}
		output, err := actors.client.OutputV0AtTimestamp(ctx, timestamp)
		if err != nil {
			return nil, fmt.Errorf("chain %s output at timestamp %d: %w", chainID, timestamp, err)
		}
		canonical := common.Hash(output.Hash())
		chains = append(chains, types.ChainRoot{ChainID: chainID, OutputRoot: canonical})
		infos = append(infos, frontend.ChainRootInfo{ChainID: chainID, Canonical: canonical})

		pair, err := actors.db.GetDerivedBlock(ref.Number)
		if err == nil && pair.Source.Number > crossSafeSource.Number {
			crossSafeSource = pair.Source.ID()
		}
	}

	return &frontend.SuperRootResult{
		CrossSafeDerivedFrom: crossSafeSource,
		Timestamp:            timestamp,
		SuperRoot:            types.NewSuperRoot(timestamp, chains),
		Chains:               infos,
	}, nil
}

func (sb *SupervisorBackend) BlockLogs(ctx context.Context, chainID eth.ChainID, blockNumber uint64) ([]types.Log, error) {
	d, err := sb.chainDB(chainID)
	if err != nil {
		return nil, err
	}
	return d.GetBlockLogs(blockNumber)
}

func (sb *SupervisorBackend) SafetyHead(ctx context.Context, chainID eth.ChainID, level types.SafetyLevel) (eth.BlockID, error) {
	d, err := sb.chainDB(chainID)
	if err != nil {
		return eth.BlockID{}, err
	}
	seal, err := d.GetSafetyHeadRef(level)
	if err != nil {
		return eth.BlockID{}, err
	}
	return seal.ID(), nil
}

// AddL2RPC dials a new managed node at runtime and wires its actor graph in,
// starting its actors immediately if the service is already running (spec
// §6's admin-gated addL2RPC method).
func (sb *SupervisorBackend) AddL2RPC(ctx context.Context, url string, jwtHex string) error {
	secret, err := (syncnode.CLISyncNodeConfig{URL: url, JWTHex: jwtHex}).Secret()
	if err != nil {
		return fmt.Errorf("jwt secret: %w", err)
	}
	client, err := syncnode.Dial(ctx, url, secret, sb.log)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("query chain id from %s: %w", url, err)
	}
	if !sb.depSet.HasChain(chainID) {
		_ = client.Close()
		return fmt.Errorf("%w: %s", frontend.ErrUnknownChain, chainID)
	}
	if _, exists := sb.chains[chainID]; exists {
		_ = client.Close()
		return fmt.Errorf("chain %s already has a managed node", chainID)
	}

	actors, err := sb.buildChainActors(chainID, client, sb.log)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("wire chain %s: %w", chainID, err)
	}
	sb.chains[chainID] = actors

	if sb.started.Load() && sb.group != nil {
		blockTime, err := sb.depSet.BlockTime(chainID)
		if err != nil {
			return fmt.Errorf("block time for chain %s: %w", chainID, err)
		}
		interval := time.Duration(blockTime) * time.Second
		sb.group.Go(func() error { return actors.node.Run(ctx) })
		sb.group.Go(func() error { return actors.processor.Run(ctx) })
		sb.group.Go(func() error { return actors.crossUnsafe.Run(ctx, clock.SystemClock{}.NewTicker(interval)) })
		sb.group.Go(func() error { return actors.crossSafe.Run(ctx, clock.SystemClock{}.NewTicker(interval)) })
	}
	return nil
}
