// Package promoter implements the safety promoter (spec §4.G): one
// long-running job per chain per target level (CrossUnsafe, CrossSafe)
// that advances the target one block at a time, validating cross-chain
// dependencies before each promotion.
package promoter

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/meridian-labs/chainwatch/op-service/clock"
	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/backend/db"
	"github.com/meridian-labs/chainwatch/supervisor/backend/superevents"
	"github.com/meridian-labs/chainwatch/supervisor/backend/validator"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// Metricer is the slice of supervisor/metrics.Metricer the promoter needs.
type Metricer interface {
	RecordPromotionAttempt(chainID string, level string, outcome string)
	RecordSafetyHead(chainID string, level string, blockNumber float64)
}

// Promoter drives one safety level for one chain. target is the level it
// advances; upperBound is the level on the SAME chain that bounds how far
// it may advance (LocalUnsafe for CrossUnsafe, LocalSafe for CrossSafe).
type Promoter struct {
	chainID    eth.ChainID
	target     types.SafetyLevel
	upperBound types.SafetyLevel

	db        *db.DB
	validator *validator.Validator
	events    chan<- superevents.ChainEvent

	metrics Metricer
	log     log.Logger
}

func New(chainID eth.ChainID, target, upperBound types.SafetyLevel, database *db.DB, v *validator.Validator,
	events chan<- superevents.ChainEvent, metrics Metricer, logger log.Logger) *Promoter {
	return &Promoter{
		chainID: chainID, target: target, upperBound: upperBound,
		db: database, validator: v, events: events,
		metrics: metrics, log: logger.New("target", target),
	}
}

// Run ticks once per blockTime until ctx is cancelled.
func (p *Promoter) Run(ctx context.Context, blockTime clock.Ticker) error {
	defer blockTime.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-blockTime.Ch():
			p.tick(ctx)
		}
	}
}

func (p *Promoter) tick(ctx context.Context) {
	outcome, err := p.tryPromote(ctx)
	p.metrics.RecordPromotionAttempt(p.chainID.String(), p.target.String(), outcome)
	if err != nil {
		p.log.Warn("promotion attempt failed", "outcome", outcome, "err", err)
	}
}

func (p *Promoter) tryPromote(ctx context.Context) (string, error) {
	current, err := p.db.GetSafetyHeadRef(p.target)
	if err == types.ErrFuture {
		return "no_block_to_promote", nil
	}
	if err != nil {
		return "error", err
	}

	upper, err := p.db.GetSafetyHeadRef(p.upperBound)
	if err == types.ErrFuture || (err == nil && current.Number >= upper.Number) {
		return "no_block_to_promote", nil
	}
	if err != nil {
		return "error", err
	}

	candidate, err := p.db.GetBlockRef(current.Number + 1)
	if err == types.ErrFuture {
		return "no_block_to_promote", nil
	}
	if err != nil {
		return "error", err
	}

	logs, err := p.db.GetBlockLogs(candidate.Number)
	if err != nil {
		return "error", err
	}

	if err := p.validator.ValidateBlock(candidate, logs, p.target, nil); err != nil {
		var verr *types.ValidationError
		if errors.Is(err, types.ErrDependencyNotSafe) {
			return "dependency_not_safe", nil
		}
		if errors.As(err, &verr) {
			if p.target == types.CrossSafe {
				seal := types.BlockSealFromRef(candidate)
				p.broadcast(superevents.InvalidateBlockEvent{Block: seal})
			}
			return "validation_error", err
		}
		return "error", err
	}

	seal := types.BlockSealFromRef(candidate)
	switch p.target {
	case types.CrossUnsafe:
		if err := p.db.UpdateCurrentCrossUnsafe(seal); err != nil {
			return "error", err
		}
		p.broadcast(superevents.CrossUnsafeUpdateEvent{Block: seal})
	case types.CrossSafe:
		pair, err := p.db.UpdateCurrentCrossSafe(seal)
		if err != nil {
			return "error", err
		}
		p.broadcast(superevents.CrossSafeUpdateEvent{Pair: pair})
	default:
		return "error", fmt.Errorf("promoter configured with unsupported target level %s", p.target)
	}
	p.metrics.RecordSafetyHead(p.chainID.String(), p.target.String(), float64(seal.Number))
	return "promoted", nil
}

func (p *Promoter) broadcast(ev superevents.ChainEvent) {
	select {
	case p.events <- ev:
	default:
		p.log.Warn("chain events channel full, dropping broadcast", "event", fmt.Sprintf("%T", ev))
	}
}
