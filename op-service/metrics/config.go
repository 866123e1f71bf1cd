package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ErrInvalidPort is returned by CLIConfig.Check when metrics are enabled
// but the configured listen port cannot possibly be bound.
var ErrInvalidPort = errors.New("invalid metrics listen port")

// CLIConfig is the subset of a process's configuration that controls
// whether and where it serves a Prometheus scrape endpoint.
type CLIConfig struct {
	Enabled    bool
	ListenAddr string
	ListenPort int
}

func DefaultCLIConfig() CLIConfig {
	return CLIConfig{Enabled: false, ListenAddr: "0.0.0.0", ListenPort: 7300}
}

func (c CLIConfig) Check() error {
	if !c.Enabled {
		return nil
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.ListenPort)
	}
	return nil
}

// Serve starts an HTTP server exposing registry on /metrics, returning
// once ctx is cancelled.
func Serve(ctx context.Context, cfg CLIConfig, registry *prometheus.Registry, logger log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	addr := net.JoinHostPort(cfg.ListenAddr, fmt.Sprintf("%d", cfg.ListenPort))
	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	logger.Info("metrics server listening", "addr", addr)

	select {
	case <-ctx.Done():
		return server.Close()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}
