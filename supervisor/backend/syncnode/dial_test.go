package syncnode

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/op-service/testlog"
)

func TestDialWithRetryGivesUpWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(5*time.Millisecond), 1)
	_, err := DialWithRetry(ctx, "ws://127.0.0.1:1/unreachable", eth.Bytes32{}, testlog.Logger(t, 0), limiter)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
