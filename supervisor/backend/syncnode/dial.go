package syncnode

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/time/rate"

	"github.com/meridian-labs/chainwatch/op-service/eth"
)

const defaultReconnectInterval = 2 * time.Second

// DefaultReconnectLimiter paces managed-node dial retries: a managed node
// that is down is retried at most once per defaultReconnectInterval.
func DefaultReconnectLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(defaultReconnectInterval), 1)
}

// DialWithRetry dials a managed node, retrying under limiter's pace until
// ctx is cancelled or its deadline passes, so a persistently unreachable
// node cannot busy-loop the caller. The orchestrator calls it once per
// managed node at startup; a connection that drops later is not redialed.
func DialWithRetry(ctx context.Context, url string, jwtSecret eth.Bytes32, logger log.Logger, limiter *rate.Limiter) (*Client, error) {
	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() == nil {
				// Wait refuses up front when the next attempt would fall
				// past ctx's deadline; report that as the deadline itself.
				err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
			}
			return nil, fmt.Errorf("dial %s: %w", url, err)
		}
		client, err := Dial(ctx, url, jwtSecret, logger)
		if err == nil {
			return client, nil
		}
		logger.Warn("managed node dial failed, retrying", "url", url, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
}
