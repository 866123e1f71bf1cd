// Package oppprof wires the stdlib net/http/pprof handlers behind a config
// flag, the way every op-* binary in the teacher's ecosystem exposes a
// profiling endpoint without importing net/http/pprof directly into main.
package oppprof

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/ethereum/go-ethereum/log"
)

// ErrInvalidPort is returned by CLIConfig.Check when profiling is enabled
// but the configured listen port cannot possibly be bound.
var ErrInvalidPort = errors.New("invalid pprof listen port")

type CLIConfig struct {
	ListenEnabled bool
	ListenAddr    string
	ListenPort    int
}

func DefaultCLIConfig() CLIConfig {
	return CLIConfig{ListenEnabled: false, ListenAddr: "0.0.0.0", ListenPort: 6060}
}

func (c CLIConfig) Check() error {
	if !c.ListenEnabled {
		return nil
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.ListenPort)
	}
	return nil
}

// Serve starts the pprof HTTP server, returning once ctx is cancelled.
func Serve(ctx context.Context, cfg CLIConfig, logger log.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	addr := net.JoinHostPort(cfg.ListenAddr, fmt.Sprintf("%d", cfg.ListenPort))
	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	logger.Info("pprof server listening", "addr", addr)

	select {
	case <-ctx.Done():
		return server.Close()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("pprof server: %w", err)
		}
		return nil
	}
}
