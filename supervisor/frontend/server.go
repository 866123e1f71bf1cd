package frontend

import (
	"context"
	"fmt"
	"net"
	"net/http"

	gethrpc "github.com/ethereum/go-ethereum/rpc"

	oprpc "github.com/meridian-labs/chainwatch/op-service/rpc"
)

// Server hosts SupervisorAPI over JSON-RPC/HTTP under the "supervisor_*"
// namespace named in spec §6, plus the admin-gated AddL2RPC method under
// "admin_*" when cfg.EnableAdmin is set.
type Server struct {
	rpc  *gethrpc.Server
	http *http.Server
	ln   net.Listener
}

// NewServer registers api and, if cfg.EnableAdmin, an admin namespace
// wrapping api.AddL2RPC, but does not start listening; call Start.
func NewServer(cfg oprpc.CLIConfig, api *SupervisorAPI) (*Server, error) {
	rpcServer := gethrpc.NewServer()
	if err := rpcServer.RegisterName("supervisor", api); err != nil {
		return nil, fmt.Errorf("register supervisor namespace: %w", err)
	}
	if cfg.EnableAdmin {
		if err := rpcServer.RegisterName("admin", &adminAPI{api: api}); err != nil {
			return nil, fmt.Errorf("register admin namespace: %w", err)
		}
	}
	return &Server{
		rpc:  rpcServer,
		http: &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.ListenAddr, cfg.ListenPort), Handler: rpcServer},
	}, nil
}

// Start binds the configured listen address and begins serving in the
// background; it returns once the listener is open, not once serving
// stops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	s.ln = ln
	go func() {
		_ = s.http.Serve(ln)
	}()
	return nil
}

func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Stop gracefully shuts down the HTTP server and the underlying RPC
// server's pending subscriptions.
func (s *Server) Stop(ctx context.Context) error {
	s.rpc.Stop()
	return s.http.Shutdown(ctx)
}

// adminAPI exposes AddL2RPC under the "admin_*" namespace so it can be
// gated independently of the read-only "supervisor_*" surface (spec §6).
type adminAPI struct {
	api *SupervisorAPI
}

func (a *adminAPI) AddL2RPC(ctx context.Context, url string, jwtHex string) error {
	return a.api.AddL2RPC(ctx, url, jwtHex)
}
