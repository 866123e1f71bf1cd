package db

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/log"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// DB is the storage for a single tracked chain: one Pebble instance holding
// every table from the data model, all mutations funneled through a single
// writer mutex so that lattice transitions stay atomic (spec §4.A, §5).
type DB struct {
	chainID eth.ChainID
	log     log.Logger

	pebble *pebble.DB
	wMu    sync.Mutex
}

func Open(chainID eth.ChainID, dir string, logger log.Logger) (*DB, error) {
	p, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open chain db at %s: %w", dir, err)
	}
	return &DB{chainID: chainID, log: logger, pebble: p}, nil
}

func (d *DB) Close() error {
	return d.pebble.Close()
}

func (d *DB) ChainID() eth.ChainID {
	return d.chainID
}

// --- initialisation ---

func (d *DB) tableHasAnyRow(prefix byte) bool {
	iter, _ := d.pebble.NewIter(&pebble.IterOptions{
		LowerBound: []byte{prefix},
		UpperBound: []byte{prefix + 1},
	})
	defer iter.Close()
	return iter.First()
}

func (d *DB) InitialiseLogStorage(activation types.BlockSeal) error {
	d.wMu.Lock()
	defer d.wMu.Unlock()

	if d.tableHasAnyRow(tableBlockRefs) {
		return types.ErrAlreadyInitialised
	}
	b := d.pebble.NewBatch()
	defer b.Close()
	ref := eth.BlockRef{Hash: activation.Hash, Number: activation.Number, Time: activation.Timestamp}
	if err := b.Set(blockRefsKey(activation.Number), encodeBlockRef(ref), nil); err != nil {
		return err
	}
	if err := b.Set(safetyHeadRefKey(types.LocalUnsafe), encodeBlockSeal(activation), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (d *DB) InitialiseDerivationStorage(pair types.DerivedRefPair) error {
	d.wMu.Lock()
	defer d.wMu.Unlock()

	if d.tableHasAnyRow(tableDerivedBlocks) {
		return types.ErrAlreadyInitialised
	}
	seals := pair.Seals()
	b := d.pebble.NewBatch()
	defer b.Close()
	if err := b.Set(derivedBlocksKey(seals.Derived.Number), encodeDerivedPair(seals), nil); err != nil {
		return err
	}
	entry := traversalEntry{Source: seals.Source, DerivedBlockNumbers: []uint64{seals.Derived.Number}}
	if err := b.Set(blockTraversalKey(seals.Source.Number), encodeTraversal(entry), nil); err != nil {
		return err
	}
	if err := b.Set(latestSourceKey(), encodeBlockSeal(seals.Source), nil); err != nil {
		return err
	}
	if err := b.Set(activationBlockKey(), encodeDerivedPair(seals), nil); err != nil {
		return err
	}
	if err := b.Set(safetyHeadRefKey(types.LocalSafe), encodeBlockSeal(seals.Derived), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// --- writes ---

// StoreBlockLogs atomically records a new unsafe L2 block and its full log
// set, advancing LocalUnsafe. block.Number must be exactly the current
// LocalUnsafe number plus one, with a matching parent hash.
func (d *DB) StoreBlockLogs(block eth.BlockRef, logs []types.Log) error {
	d.wMu.Lock()
	defer d.wMu.Unlock()

	current, err := d.getSafetyHeadRefLocked(types.LocalUnsafe)
	if err != nil {
		return err
	}
	if block.Number != current.Number+1 || block.ParentHash != current.Hash {
		return fmt.Errorf("%w: block %s does not extend local-unsafe head %s", types.ErrBlockOutOfOrder, block, current)
	}

	b := d.pebble.NewBatch()
	defer b.Close()
	if err := b.Set(blockRefsKey(block.Number), encodeBlockRef(block), nil); err != nil {
		return err
	}
	for _, l := range logs {
		if err := b.Set(logEntryKey(block.Number, l.Index), encodeLog(l), nil); err != nil {
			return err
		}
	}
	if err := b.Set(safetyHeadRefKey(types.LocalUnsafe), encodeBlockSeal(types.BlockSealFromRef(block)), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// SaveDerivedBlock inserts a new local-safe derivation pair and appends the
// derived block number to its source's traversal entry, advancing LocalSafe.
func (d *DB) SaveDerivedBlock(pair types.DerivedRefPair) error {
	d.wMu.Lock()
	defer d.wMu.Unlock()

	seals := pair.Seals()
	b := d.pebble.NewBatch()
	defer b.Close()
	if err := b.Set(derivedBlocksKey(seals.Derived.Number), encodeDerivedPair(seals), nil); err != nil {
		return err
	}

	entry, err := d.getTraversalLocked(seals.Source.Number)
	if err != nil {
		if err != pebble.ErrNotFound {
			return err
		}
		entry = traversalEntry{Source: seals.Source}
	}
	entry.DerivedBlockNumbers = append(entry.DerivedBlockNumbers, seals.Derived.Number)
	if err := b.Set(blockTraversalKey(seals.Source.Number), encodeTraversal(entry), nil); err != nil {
		return err
	}

	if err := d.updateHeadRefLocked(b, types.LocalSafe, seals.Derived); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// SaveSourceBlock inserts a new L1 source block with an empty derived list.
// Strict monotonicity: source.Number must exceed every previously stored
// source number, or ErrBlockOutOfOrder is returned as the reorg signal.
func (d *DB) SaveSourceBlock(source eth.BlockRef) error {
	d.wMu.Lock()
	defer d.wMu.Unlock()

	latest, ok, err := d.getLatestSourceLocked()
	if err != nil {
		return err
	}
	if ok && source.Number <= latest.Number {
		return fmt.Errorf("%w: source %s does not exceed latest source %s", types.ErrBlockOutOfOrder, source, latest)
	}

	seal := types.BlockSealFromRef(source)
	b := d.pebble.NewBatch()
	defer b.Close()
	entry := traversalEntry{Source: seal}
	if err := b.Set(blockTraversalKey(source.Number), encodeTraversal(entry), nil); err != nil {
		return err
	}
	if err := b.Set(latestSourceKey(), encodeBlockSeal(seal), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (d *DB) UpdateCurrentCrossUnsafe(block types.BlockSeal) error {
	d.wMu.Lock()
	defer d.wMu.Unlock()

	bound, err := d.getSafetyHeadRefLocked(types.LocalUnsafe)
	if err != nil {
		return err
	}
	if block.Number > bound.Number {
		return fmt.Errorf("%w: cross-unsafe candidate %s exceeds local-unsafe bound %s", types.ErrConflict, block, bound)
	}
	b := d.pebble.NewBatch()
	defer b.Close()
	if err := d.updateHeadRefLocked(b, types.CrossUnsafe, block); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// UpdateCurrentCrossSafe moves the cross-safe head and returns the derived
// pair it now points at, so the caller can broadcast a CrossSafeUpdate.
func (d *DB) UpdateCurrentCrossSafe(block types.BlockSeal) (types.DerivedBlockSealPair, error) {
	d.wMu.Lock()
	defer d.wMu.Unlock()

	bound, err := d.getSafetyHeadRefLocked(types.LocalSafe)
	if err != nil {
		return types.DerivedBlockSealPair{}, err
	}
	if block.Number > bound.Number {
		return types.DerivedBlockSealPair{}, fmt.Errorf("%w: cross-safe candidate %s exceeds local-safe bound %s", types.ErrConflict, block, bound)
	}
	pair, err := d.getDerivedPairLocked(block.Number)
	if err != nil {
		return types.DerivedBlockSealPair{}, err
	}
	b := d.pebble.NewBatch()
	defer b.Close()
	if err := d.updateHeadRefLocked(b, types.CrossSafe, block); err != nil {
		return types.DerivedBlockSealPair{}, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return types.DerivedBlockSealPair{}, err
	}
	return pair, nil
}

// UpdateFinalizedUsingSource walks BlockTraversal for every source at or
// before the given L1 source block and writes Finalized to the highest
// derived block number found, returning that block.
func (d *DB) UpdateFinalizedUsingSource(source eth.BlockID) (types.BlockSeal, error) {
	d.wMu.Lock()
	defer d.wMu.Unlock()

	iter, err := d.pebble.NewIter(&pebble.IterOptions{
		LowerBound: []byte{tableBlockTraversal},
		UpperBound: append([]byte{tableBlockTraversal}, eth.BE8(source.Number+1)...),
	})
	if err != nil {
		return types.BlockSeal{}, err
	}
	defer iter.Close()

	var best uint64
	var found bool
	for iter.First(); iter.Valid(); iter.Next() {
		entry, err := decodeTraversal(iter.Value())
		if err != nil {
			return types.BlockSeal{}, err
		}
		for _, n := range entry.DerivedBlockNumbers {
			if !found || n > best {
				best, found = n, true
			}
		}
	}
	if !found {
		return types.BlockSeal{}, types.ErrFuture
	}
	derivedSeal, err := d.getBlockSealFromDerivedLocked(best)
	if err != nil {
		return types.BlockSeal{}, err
	}

	bound, err := d.getSafetyHeadRefLocked(types.CrossSafe)
	if err != nil {
		return types.BlockSeal{}, err
	}
	if derivedSeal.Number > bound.Number {
		return types.BlockSeal{}, fmt.Errorf("%w: finalized candidate %s exceeds cross-safe bound %s", types.ErrConflict, derivedSeal, bound)
	}

	b := d.pebble.NewBatch()
	defer b.Close()
	if err := d.updateHeadRefLocked(b, types.Finalized, derivedSeal); err != nil {
		return types.BlockSeal{}, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return types.BlockSeal{}, err
	}
	return derivedSeal, nil
}

// --- reads ---

func (d *DB) GetSafetyHeadRef(level types.SafetyLevel) (types.BlockSeal, error) {
	return d.getSafetyHeadRefLocked(level)
}

func (d *DB) getSafetyHeadRefLocked(level types.SafetyLevel) (types.BlockSeal, error) {
	v, closer, err := d.pebble.Get(safetyHeadRefKey(level))
	if err == pebble.ErrNotFound {
		return types.BlockSeal{}, types.ErrFuture
	}
	if err != nil {
		return types.BlockSeal{}, err
	}
	defer closer.Close()
	return decodeBlockSeal(v)
}

func (d *DB) GetBlockRef(number uint64) (eth.BlockRef, error) {
	v, closer, err := d.pebble.Get(blockRefsKey(number))
	if err == pebble.ErrNotFound {
		return eth.BlockRef{}, types.ErrFuture
	}
	if err != nil {
		return eth.BlockRef{}, err
	}
	defer closer.Close()
	return decodeBlockRef(v)
}

// GetBlockLogs returns every LogEntries row for the given block number, in
// ascending log-index order.
func (d *DB) GetBlockLogs(number uint64) ([]types.Log, error) {
	prefix := logEntryBlockPrefix(number)
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	iter, err := d.pebble.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: append([]byte{tableLogEntries}, eth.BE8(number+1)...),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []types.Log
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		index := uint32FromBE(key[9:13])
		l, err := decodeLog(index, iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func uint32FromBE(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func (d *DB) getDerivedPairLocked(derivedNumber uint64) (types.DerivedBlockSealPair, error) {
	v, closer, err := d.pebble.Get(derivedBlocksKey(derivedNumber))
	if err == pebble.ErrNotFound {
		return types.DerivedBlockSealPair{}, types.ErrFuture
	}
	if err != nil {
		return types.DerivedBlockSealPair{}, err
	}
	defer closer.Close()
	return decodeDerivedPair(v)
}

func (d *DB) GetDerivedBlock(derivedNumber uint64) (types.DerivedBlockSealPair, error) {
	return d.getDerivedPairLocked(derivedNumber)
}

// ActivationBlock returns the first source/derived pair recorded for this
// chain, i.e. the block at which interop activated. ErrFuture if derivation
// storage has not been initialised yet.
func (d *DB) ActivationBlock() (types.DerivedBlockSealPair, error) {
	v, closer, err := d.pebble.Get(activationBlockKey())
	if err == pebble.ErrNotFound {
		return types.DerivedBlockSealPair{}, types.ErrFuture
	}
	if err != nil {
		return types.DerivedBlockSealPair{}, err
	}
	defer closer.Close()
	return decodeDerivedPair(v)
}

// IsLocalSafe reports whether block is the local-safe derived block at its
// number: ErrFuture if the local-safe chain hasn't reached it yet, ErrConflict
// if a different hash is recorded there (reset bisection's signal that the
// managed node has diverged from the stored derivation chain).
func (d *DB) IsLocalSafe(block eth.BlockID) error {
	pair, err := d.getDerivedPairLocked(block.Number)
	if err != nil {
		return err
	}
	if pair.Derived.Hash != block.Hash {
		return types.ErrConflict
	}
	return nil
}

func (d *DB) getBlockSealFromDerivedLocked(derivedNumber uint64) (types.BlockSeal, error) {
	pair, err := d.getDerivedPairLocked(derivedNumber)
	if err != nil {
		return types.BlockSeal{}, err
	}
	return pair.Derived, nil
}

// GetSourceAtNumber returns the L1 source block recorded at the given
// number, ErrFuture if this chain has no source block there. Used by the
// L1 watcher's reorg handler to find the common ancestor across chains.
func (d *DB) GetSourceAtNumber(number uint64) (types.BlockSeal, error) {
	entry, err := d.getTraversalLocked(number)
	if err == pebble.ErrNotFound {
		return types.BlockSeal{}, types.ErrFuture
	}
	if err != nil {
		return types.BlockSeal{}, err
	}
	return entry.Source, nil
}

// GetLatestDerivedAtSource returns the newest derived block recorded as
// having come from the given L1 source number, ErrFuture if this chain has
// no traversal entry there. Used by AllSafeDerivedAt to answer "what was
// this chain's derived head as of L1 block X" across every tracked chain.
func (d *DB) GetLatestDerivedAtSource(sourceNumber uint64) (types.BlockSeal, error) {
	entry, err := d.getTraversalLocked(sourceNumber)
	if err == pebble.ErrNotFound {
		return types.BlockSeal{}, types.ErrFuture
	}
	if err != nil {
		return types.BlockSeal{}, err
	}
	if len(entry.DerivedBlockNumbers) == 0 {
		return types.BlockSeal{}, types.ErrFuture
	}
	return d.getBlockSealFromDerivedLocked(entry.DerivedBlockNumbers[len(entry.DerivedBlockNumbers)-1])
}

func (d *DB) getTraversalLocked(sourceNumber uint64) (traversalEntry, error) {
	v, closer, err := d.pebble.Get(blockTraversalKey(sourceNumber))
	if err != nil {
		return traversalEntry{}, err
	}
	defer closer.Close()
	return decodeTraversal(v)
}

func (d *DB) getLatestSourceLocked() (types.BlockSeal, bool, error) {
	v, closer, err := d.pebble.Get(latestSourceKey())
	if err == pebble.ErrNotFound {
		return types.BlockSeal{}, false, nil
	}
	if err != nil {
		return types.BlockSeal{}, false, err
	}
	defer closer.Close()
	seal, err := decodeBlockSeal(v)
	return seal, true, err
}

func (d *DB) GetLatestSource() (types.BlockSeal, bool, error) {
	return d.getLatestSourceLocked()
}

// updateHeadRefLocked applies the head-ref update policy: a no-op if the
// incoming block is behind the current head, an overwrite otherwise. Caller
// holds wMu and provides the batch to commit.
func (d *DB) updateHeadRefLocked(b *pebble.Batch, level types.SafetyLevel, incoming types.BlockSeal) error {
	current, err := d.getSafetyHeadRefLocked(level)
	if err != nil && err != types.ErrFuture {
		return err
	}
	if err == nil && incoming.Number < current.Number {
		return nil
	}
	return b.Set(safetyHeadRefKey(level), encodeBlockSeal(incoming), nil)
}

// resetSafetyHeadRefIfAhead is the rewind-time inverse of the head-ref
// update policy: only writes target if the current head is at or past it,
// and tolerates the head not existing yet.
func (d *DB) resetSafetyHeadRefIfAhead(b *pebble.Batch, level types.SafetyLevel, target types.BlockSeal) error {
	current, err := d.getSafetyHeadRefLocked(level)
	if err == types.ErrFuture {
		return nil
	}
	if err != nil {
		return err
	}
	if current.Number < target.Number {
		return nil
	}
	return b.Set(safetyHeadRefKey(level), encodeBlockSeal(target), nil)
}

// --- rewinds ---

// Rewind truncates BlockRefs above the given block and resets LocalUnsafe
// and CrossUnsafe down to it if they were ahead.
func (d *DB) Rewind(to eth.BlockID) error {
	d.wMu.Lock()
	defer d.wMu.Unlock()

	b := d.pebble.NewBatch()
	defer b.Close()
	start, end := rangeAbove(tableBlockRefs, to.Number)
	if err := b.DeleteRange(start, end, nil); err != nil {
		return err
	}
	target := types.BlockSeal{Hash: to.Hash, Number: to.Number}
	if err := d.resetSafetyHeadRefIfAhead(b, types.LocalUnsafe, target); err != nil {
		return err
	}
	if err := d.resetSafetyHeadRefIfAhead(b, types.CrossUnsafe, target); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// RewindLogStorage truncates LogEntries above the given block, independent
// of BlockRefs and the safety heads.
func (d *DB) RewindLogStorage(to eth.BlockID) error {
	d.wMu.Lock()
	defer d.wMu.Unlock()

	b := d.pebble.NewBatch()
	defer b.Close()
	start, end := rangeAbove(tableLogEntries, to.Number)
	if err := b.DeleteRange(start, end, nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// RewindToSource truncates DerivedBlocks and BlockTraversal above the given
// L1 source block, resets LocalSafe/CrossSafe/Finalized if they were ahead,
// and returns the new latest source, if any remains.
func (d *DB) RewindToSource(to eth.BlockID) (types.BlockSeal, bool, error) {
	d.wMu.Lock()
	defer d.wMu.Unlock()

	b := d.pebble.NewBatch()
	defer b.Close()

	derivedStart, derivedEnd := rangeAbove(tableDerivedBlocks, to.Number)
	if err := b.DeleteRange(derivedStart, derivedEnd, nil); err != nil {
		return types.BlockSeal{}, false, err
	}
	traversalStart, traversalEnd := rangeAbove(tableBlockTraversal, to.Number)
	if err := b.DeleteRange(traversalStart, traversalEnd, nil); err != nil {
		return types.BlockSeal{}, false, err
	}

	target := types.BlockSeal{Hash: to.Hash, Number: to.Number}
	for _, level := range []types.SafetyLevel{types.LocalSafe, types.CrossSafe, types.Finalized} {
		if err := d.resetSafetyHeadRefIfAhead(b, level, target); err != nil {
			return types.BlockSeal{}, false, err
		}
	}

	// The rewind target is itself the new latest source if a traversal row
	// for it survived truncation; otherwise nothing remains.
	_, err := d.getTraversalLocked(to.Number)
	hasRemaining := err == nil
	if err != nil && err != pebble.ErrNotFound {
		return types.BlockSeal{}, false, err
	}
	if hasRemaining {
		if err := b.Set(latestSourceKey(), encodeBlockSeal(target), nil); err != nil {
			return types.BlockSeal{}, false, err
		}
	} else {
		if err := b.Delete(latestSourceKey(), nil); err != nil {
			return types.BlockSeal{}, false, err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return types.BlockSeal{}, false, err
	}
	return target, hasRemaining, nil
}
