package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCLIConfigCheck(t *testing.T) {
	cfg := DefaultCLIConfig()
	require.NoError(t, cfg.Check())

	cfg.ListenPort = -1
	require.ErrorIs(t, cfg.Check(), ErrInvalidPort)

	cfg.ListenPort = 70000
	require.ErrorIs(t, cfg.Check(), ErrInvalidPort)
}
