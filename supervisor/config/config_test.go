package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/op-service/metrics"
	"github.com/meridian-labs/chainwatch/op-service/oppprof"
	"github.com/meridian-labs/chainwatch/op-service/rpc"
	"github.com/meridian-labs/chainwatch/supervisor/backend/depset"
	"github.com/meridian-labs/chainwatch/supervisor/backend/syncnode"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, cfg.Check())
}

func TestRequireSyncSources(t *testing.T) {
	cfg := validConfig(t)
	cfg.SyncSources = nil
	require.ErrorIs(t, cfg.Check(), ErrMissingSyncSources)
}

func TestRequireDependencySet(t *testing.T) {
	cfg := validConfig(t)
	cfg.DependencySetSource = nil
	require.ErrorIs(t, cfg.Check(), ErrMissingDependencySet)
}

func TestRequireDatadir(t *testing.T) {
	cfg := validConfig(t)
	cfg.Datadir = ""
	require.ErrorIs(t, cfg.Check(), ErrMissingDatadir)
}

func TestValidateMetricsConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.MetricsConfig.Enabled = true
	cfg.MetricsConfig.ListenPort = -1
	require.ErrorIs(t, cfg.Check(), metrics.ErrInvalidPort)
}

func TestValidatePprofConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.PprofConfig.ListenEnabled = true
	cfg.PprofConfig.ListenPort = -1
	require.ErrorIs(t, cfg.Check(), oppprof.ErrInvalidPort)
}

func TestValidateRPCConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.RPC.ListenPort = -1
	require.ErrorIs(t, cfg.Check(), rpc.ErrInvalidPort)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	depSet, err := depset.NewStaticConfigDependencySet(map[eth.ChainID]*depset.StaticConfigDependency{
		eth.ChainIDFromUInt64(900): {
			ChainIndex:     900,
			ActivationTime: 0,
			HistoryMinTime: 0,
		},
	})
	require.NoError(t, err)
	// Should be valid using only the required arguments passed in via the constructor.
	return NewConfig("http://localhost:8545", &syncnode.CLISyncNodes{}, depSet, "./supervisor_testdir")
}
