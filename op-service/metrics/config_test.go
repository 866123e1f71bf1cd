package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCLIConfigCheck(t *testing.T) {
	cfg := DefaultCLIConfig()
	require.NoError(t, cfg.Check())

	cfg.Enabled = true
	require.NoError(t, cfg.Check())

	cfg.ListenPort = -1
	require.ErrorIs(t, cfg.Check(), ErrInvalidPort)

	// Disabled configs skip validation entirely, even with a bad port.
	cfg.Enabled = false
	require.NoError(t, cfg.Check())
}
