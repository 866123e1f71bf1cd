package oppprof

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCLIConfigCheck(t *testing.T) {
	cfg := DefaultCLIConfig()
	require.NoError(t, cfg.Check())

	cfg.ListenEnabled = true
	require.NoError(t, cfg.Check())

	cfg.ListenPort = -1
	require.ErrorIs(t, cfg.Check(), ErrInvalidPort)

	cfg.ListenEnabled = false
	require.NoError(t, cfg.Check())
}
