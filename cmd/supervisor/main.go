// Command supervisor runs the multi-chain rollup supervisor: it dials L1
// and every configured managed node, tracks each chain's safety lattice,
// and serves the supervisor_* (and optionally admin_*) JSON-RPC surface
// described in spec §6.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/meridian-labs/chainwatch/cmd/supervisor/flags"
	"github.com/meridian-labs/chainwatch/op-service/metrics"
	"github.com/meridian-labs/chainwatch/op-service/oplog"
	"github.com/meridian-labs/chainwatch/op-service/oppprof"
	"github.com/meridian-labs/chainwatch/supervisor/backend"
	"github.com/meridian-labs/chainwatch/supervisor/backend/depset"
	"github.com/meridian-labs/chainwatch/supervisor/backend/syncnode"
	"github.com/meridian-labs/chainwatch/supervisor/config"
	"github.com/meridian-labs/chainwatch/supervisor/frontend"
	supervisormetrics "github.com/meridian-labs/chainwatch/supervisor/metrics"
)

var (
	Version   = "v0.0.0"
	GitCommit = ""
	GitDate   = ""
)

// shutdownTimeout bounds how long graceful shutdown waits for the actor
// group and RPC server to drain after a signal.
const shutdownTimeout = 10 * time.Second

func main() {
	app := cli.NewApp()
	app.Flags = flags.Flags
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "supervisor"
	app.Usage = "Multi-chain rollup supervisor"
	app.Description = "Tracks cross-chain safety for a configured set of OP Stack chains and serves the supervisor_* JSON-RPC surface"
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "application failed:", err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	format := oplog.Format(cliCtx.String(flags.LogFormatFlag.Name))
	logger := oplog.NewLogger(os.Stderr, format, log.LevelInfo)

	depSet, err := depset.LoadFromFile(cliCtx.String(flags.DependencySetFlag.Name))
	if err != nil {
		return fmt.Errorf("load dependency set: %w", err)
	}
	syncNodes, err := syncnode.LoadSyncNodesFromFile(cliCtx.String(flags.SyncNodesFlag.Name))
	if err != nil {
		return fmt.Errorf("load sync nodes config: %w", err)
	}

	cfg := config.NewConfig(
		cliCtx.String(flags.L1RPCFlag.Name),
		syncNodes,
		depSet,
		cliCtx.String(flags.DatadirFlag.Name),
	)
	cfg.RPC.ListenAddr = cliCtx.String(flags.RPCListenAddrFlag.Name)
	cfg.RPC.ListenPort = cliCtx.Int(flags.RPCListenPortFlag.Name)
	cfg.RPC.EnableAdmin = cliCtx.Bool(flags.RPCEnableAdminFlag.Name)
	cfg.MetricsConfig.Enabled = cliCtx.Bool(flags.MetricsEnabledFlag.Name)
	cfg.MetricsConfig.ListenAddr = cliCtx.String(flags.MetricsAddrFlag.Name)
	cfg.MetricsConfig.ListenPort = cliCtx.Int(flags.MetricsPortFlag.Name)
	cfg.PprofConfig.ListenEnabled = cliCtx.Bool(flags.PprofEnabledFlag.Name)
	cfg.PprofConfig.ListenAddr = cliCtx.String(flags.PprofAddrFlag.Name)
	cfg.PprofConfig.ListenPort = cliCtx.Int(flags.PprofPortFlag.Name)
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := supervisormetrics.NewMetrics()
	m.RecordInfo(Version)

	sb, err := backend.NewSupervisorBackend(ctx, logger, m, cfg)
	if err != nil {
		return fmt.Errorf("construct supervisor backend: %w", err)
	}
	if err := sb.Start(ctx); err != nil {
		return fmt.Errorf("start supervisor backend: %w", err)
	}

	api := frontend.NewSupervisorAPI(sb)
	rpcServer, err := frontend.NewServer(cfg.RPC, api)
	if err != nil {
		return fmt.Errorf("construct rpc server: %w", err)
	}
	if err := rpcServer.Start(); err != nil {
		return fmt.Errorf("start rpc server: %w", err)
	}
	logger.Info("rpc server listening", "addr", rpcServer.Addr())

	if cfg.MetricsConfig.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsConfig, m.Registry(), logger.New("component", "metrics")); err != nil {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
	}
	if cfg.PprofConfig.ListenEnabled {
		go func() {
			if err := oppprof.Serve(ctx, cfg.PprofConfig, logger.New("component", "pprof")); err != nil {
				logger.Error("pprof server stopped", "err", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rpcServer.Stop(stopCtx); err != nil {
		logger.Error("rpc server shutdown error", "err", err)
	}
	if err := sb.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop supervisor backend: %w", err)
	}
	return nil
}
