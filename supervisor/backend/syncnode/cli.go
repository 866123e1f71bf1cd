package syncnode

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/meridian-labs/chainwatch/op-service/eth"
)

// ErrNoSyncSources is returned by CLISyncNodes.Check when no managed-node
// endpoints were configured at all.
var ErrNoSyncSources = errors.New("no managed-node sync sources configured")

// CLISyncNodeConfig is one managed node's dial parameters as loaded from
// configuration: a URL and the shared-secret JWT used to authenticate
// every request (spec §4.E, §6).
type CLISyncNodeConfig struct {
	URL    string `json:"url"`
	JWTHex string `json:"jwtSecret"`
}

func (c CLISyncNodeConfig) Secret() (eth.Bytes32, error) {
	h := strings.TrimPrefix(c.JWTHex, "0x")
	b, err := hex.DecodeString(h)
	if err != nil {
		return eth.Bytes32{}, fmt.Errorf("decode JWT secret for %s: %w", c.URL, err)
	}
	if len(b) != 32 {
		return eth.Bytes32{}, fmt.Errorf("JWT secret for %s must be 32 bytes, got %d", c.URL, len(b))
	}
	var secret eth.Bytes32
	copy(secret[:], b)
	return secret, nil
}

// CLISyncNodes is the supervisor-wide list of managed-node endpoints,
// keyed by the chain each one serves.
type CLISyncNodes struct {
	Nodes map[eth.ChainID]CLISyncNodeConfig
}

func (c *CLISyncNodes) Check() error {
	if c == nil || len(c.Nodes) == 0 {
		return ErrNoSyncSources
	}
	for id, node := range c.Nodes {
		if node.URL == "" {
			return fmt.Errorf("%w: chain %s has an empty URL", ErrNoSyncSources, id)
		}
		if _, err := node.Secret(); err != nil {
			return err
		}
	}
	return nil
}

// LoadSyncNodesFromFile reads the supervisor-wide managed-node list from a
// JSON file shaped as {"chainID": {"url": ..., "jwtSecret": ...}, ...} —
// the on-disk format the --l2-consensus-nodes-config flag (spec §6)
// points at.
func LoadSyncNodesFromFile(path string) (*CLISyncNodes, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sync nodes config %s: %w", path, err)
	}
	var nodes map[eth.ChainID]CLISyncNodeConfig
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("parse sync nodes config %s: %w", path, err)
	}
	return &CLISyncNodes{Nodes: nodes}, nil
}
