// Package config holds the supervisor process's top-level configuration:
// everything service.go needs to construct the actor graph, plus the
// ambient metrics/pprof/RPC listen settings every op-* binary in this
// ecosystem carries.
package config

import (
	"errors"
	"fmt"

	"github.com/meridian-labs/chainwatch/op-service/metrics"
	"github.com/meridian-labs/chainwatch/op-service/oppprof"
	"github.com/meridian-labs/chainwatch/op-service/rpc"
	"github.com/meridian-labs/chainwatch/supervisor/backend/depset"
	"github.com/meridian-labs/chainwatch/supervisor/backend/syncnode"
)

var (
	ErrMissingSyncSources   = errors.New("no managed-node sync sources configured")
	ErrMissingDependencySet = errors.New("no dependency set configured")
	ErrMissingDatadir       = errors.New("no datadir configured")
)

// Config is the single configuration object spec §6's "Environment / CLI"
// section calls for: L1 RPC URL, per-chain managed-node configs, datadir,
// RPC bind address, admin-enabled flag, and the dependency set. Loading
// and parsing (CLI flags, env vars, config file) are external to this
// struct; Check only validates internal consistency.
type Config struct {
	L1RPC string

	SyncSources         *syncnode.CLISyncNodes
	DependencySetSource depset.DependencySet

	Datadir string

	MetricsConfig metrics.CLIConfig
	PprofConfig   oppprof.CLIConfig
	RPC           rpc.CLIConfig
}

func NewConfig(l1RPC string, syncSources *syncnode.CLISyncNodes, depSet depset.DependencySet, datadir string) *Config {
	return &Config{
		L1RPC:               l1RPC,
		SyncSources:         syncSources,
		DependencySetSource: depSet,
		Datadir:             datadir,
		MetricsConfig:       metrics.DefaultCLIConfig(),
		PprofConfig:         oppprof.DefaultCLIConfig(),
		RPC:                 rpc.DefaultCLIConfig(),
	}
}

// Check validates the configuration is internally consistent and
// sufficient to start the service. It does not dial any endpoint or read
// the datadir from disk; those failures surface at startup instead.
func (c *Config) Check() error {
	if c.SyncSources == nil {
		return ErrMissingSyncSources
	}
	if c.DependencySetSource == nil {
		return ErrMissingDependencySet
	}
	if c.Datadir == "" {
		return ErrMissingDatadir
	}
	if err := c.MetricsConfig.Check(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	if err := c.PprofConfig.Check(); err != nil {
		return fmt.Errorf("pprof config: %w", err)
	}
	if err := c.RPC.Check(); err != nil {
		return fmt.Errorf("rpc config: %w", err)
	}
	return nil
}
