// Package flags defines the supervisor binary's command-line surface
// (spec §6, "Environment / CLI"): L1 RPC endpoint, the managed-node and
// dependency-set config files, the datadir, and the ambient RPC/metrics/
// pprof listen settings every op-* binary in this tree exposes the same
// way.
package flags

import (
	"github.com/urfave/cli/v2"
)

const envPrefix = "SUPERVISOR"

var (
	L1RPCFlag = &cli.StringFlag{
		Name:     "l1-rpc",
		Usage:    "RPC endpoint of an L1 node used to track the canonical chain and finality",
		EnvVars:  []string{envPrefix + "_L1_RPC"},
		Required: true,
	}
	SyncNodesFlag = &cli.StringFlag{
		Name:     "l2-consensus-nodes-config",
		Usage:    "Path to a JSON file mapping chain ID to {url, jwtSecret} for each managed node",
		EnvVars:  []string{envPrefix + "_L2_CONSENSUS_NODES_CONFIG"},
		Required: true,
	}
	DependencySetFlag = &cli.StringFlag{
		Name:     "dependency-set",
		Usage:    "Path to a JSON file describing the tracked chains' interop parameters",
		EnvVars:  []string{envPrefix + "_DEPENDENCY_SET"},
		Required: true,
	}
	DatadirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "Directory holding each tracked chain's log and derivation database",
		EnvVars:  []string{envPrefix + "_DATADIR"},
		Required: true,
	}
	RPCListenAddrFlag = &cli.StringFlag{
		Name:    "rpc.addr",
		Usage:   "RPC listening address for the supervisor_* namespace",
		EnvVars: []string{envPrefix + "_RPC_ADDR"},
		Value:   "0.0.0.0",
	}
	RPCListenPortFlag = &cli.IntFlag{
		Name:    "rpc.port",
		Usage:   "RPC listening port for the supervisor_* namespace",
		EnvVars: []string{envPrefix + "_RPC_PORT"},
		Value:   7545,
	}
	RPCEnableAdminFlag = &cli.BoolFlag{
		Name:    "rpc.enable-admin",
		Usage:   "Registers the admin_* namespace (addL2RPC) alongside supervisor_*",
		EnvVars: []string{envPrefix + "_RPC_ENABLE_ADMIN"},
	}
	MetricsEnabledFlag = &cli.BoolFlag{
		Name:    "metrics.enabled",
		Usage:   "Serves Prometheus metrics",
		EnvVars: []string{envPrefix + "_METRICS_ENABLED"},
	}
	MetricsAddrFlag = &cli.StringFlag{
		Name:    "metrics.addr",
		Usage:   "Metrics listening address",
		EnvVars: []string{envPrefix + "_METRICS_ADDR"},
		Value:   "0.0.0.0",
	}
	MetricsPortFlag = &cli.IntFlag{
		Name:    "metrics.port",
		Usage:   "Metrics listening port",
		EnvVars: []string{envPrefix + "_METRICS_PORT"},
		Value:   7300,
	}
	PprofEnabledFlag = &cli.BoolFlag{
		Name:    "pprof.enabled",
		Usage:   "Serves net/http/pprof profiling endpoints",
		EnvVars: []string{envPrefix + "_PPROF_ENABLED"},
	}
	PprofAddrFlag = &cli.StringFlag{
		Name:    "pprof.addr",
		Usage:   "Pprof listening address",
		EnvVars: []string{envPrefix + "_PPROF_ADDR"},
		Value:   "0.0.0.0",
	}
	PprofPortFlag = &cli.IntFlag{
		Name:    "pprof.port",
		Usage:   "Pprof listening port",
		EnvVars: []string{envPrefix + "_PPROF_PORT"},
		Value:   6060,
	}
	LogFormatFlag = &cli.StringFlag{
		Name:    "log.format",
		Usage:   "Log output format: text or json",
		EnvVars: []string{envPrefix + "_LOG_FORMAT"},
		Value:   "text",
	}
)

// Flags is the full flag set registered on the app, in the order they're
// listed in --help.
var Flags = []cli.Flag{
	L1RPCFlag,
	SyncNodesFlag,
	DependencySetFlag,
	DatadirFlag,
	RPCListenAddrFlag,
	RPCListenPortFlag,
	RPCEnableAdminFlag,
	MetricsEnabledFlag,
	MetricsAddrFlag,
	MetricsPortFlag,
	PprofEnabledFlag,
	PprofAddrFlag,
	PprofPortFlag,
	LogFormatFlag,
}
