package db

import (
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/op-service/locks"
)

// Factory owns every chain's database and is safe for concurrent callers
// across chains. Handles are cached behind a read-mostly map with
// double-checked locking on open, so two goroutines racing to open the same
// chain's first handle only pay the Pebble-open cost once (spec §5).
type Factory struct {
	dataDir string
	log     log.Logger
	dbs     locks.RWMap[eth.ChainID, *DB]
}

func NewFactory(dataDir string, logger log.Logger) *Factory {
	return &Factory{dataDir: dataDir, log: logger}
}

// ForChain returns the shared handle for chainID, opening it on first use.
func (f *Factory) ForChain(chainID eth.ChainID) (*DB, error) {
	return f.dbs.GetOrInsert(chainID, func() (*DB, error) {
		dir := filepath.Join(f.dataDir, chainID.String())
		db, err := Open(chainID, dir, f.log.New("chain", chainID))
		if err != nil {
			return nil, fmt.Errorf("open db for chain %s: %w", chainID, err)
		}
		return db, nil
	})
}

// Close closes every opened chain database, returning the first error
// encountered while still attempting to close the rest.
func (f *Factory) Close() error {
	var firstErr error
	f.dbs.Range(func(_ eth.ChainID, db *DB) bool {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}
