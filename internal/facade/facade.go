// Package facade exposes the simplified estimation entry points used by the
// CLI, the API server and the scheduler.
package facade

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/surveyprogress/internal/contracts"
)

// Estimator runs one estimation call (implemented by coordinator.Coordinator)
type Estimator interface {
	Estimate(ctx context.Context, req contracts.Request) (*contracts.CompositeResult, error)
}

// BatchRequest one item of a batch
type BatchRequest struct {
	ItemID        string   `json:"item_id"`
	TargetPoints  float64  `json:"target_points"`
	CurrentPoints *float64 `json:"current_points,omitempty"`
}

// Facade simplified entry points over an Estimator
type Facade struct {
	estimator  Estimator
	batchLimit int
	log        zerolog.Logger
}

// Option configures a Facade
type Option func(*Facade)

// WithBatchLimit caps concurrent estimations in Batch (기본: 4)
func WithBatchLimit(n int) Option {
	return func(f *Facade) {
		if n > 0 {
			f.batchLimit = n
		}
	}
}

// New creates a facade
func New(est Estimator, log zerolog.Logger, opts ...Option) *Facade {
	f := &Facade{
		estimator:  est,
		batchLimit: 4,
		log:        log.With().Str("component", "facade").Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Estimate dispatches a fully specified request on its mode
func (f *Facade) Estimate(ctx context.Context, req contracts.Request) (*contracts.CompositeResult, error) {
	switch req.Mode {
	case contracts.ModeRealTime:
		return f.RealTime(ctx, req)
	case contracts.ModeMapsheet:
		if req.ItemID == "" {
			return nil, fmt.Errorf("mapsheet estimate: %w", contracts.ErrItemRequired)
		}
	}
	return f.estimator.Estimate(ctx, req)
}

// Quick basic-mode estimate for the whole project
func (f *Facade) Quick(ctx context.Context, target float64, current *float64) (*contracts.CompositeResult, error) {
	return f.estimator.Estimate(ctx, contracts.Request{
		TargetPoints:  target,
		CurrentPoints: current,
		Mode:          contracts.ModeBasic,
	})
}

// Advanced full estimate with artifacts; unset request fields use the
// configured defaults
func (f *Facade) Advanced(ctx context.Context, req contracts.Request) (*contracts.CompositeResult, error) {
	req.Mode = contracts.ModeAdvanced
	return f.estimator.Estimate(ctx, req)
}

// Mapsheet estimate scoped to one work item
func (f *Facade) Mapsheet(ctx context.Context, itemID string, target float64, current *float64) (*contracts.CompositeResult, error) {
	if itemID == "" {
		return nil, fmt.Errorf("mapsheet estimate: %w", contracts.ErrItemRequired)
	}
	return f.estimator.Estimate(ctx, contracts.Request{
		TargetPoints:  target,
		CurrentPoints: current,
		Mode:          contracts.ModeMapsheet,
		ItemID:        itemID,
	})
}

// RealTime recomputes without touching the cache
func (f *Facade) RealTime(ctx context.Context, req contracts.Request) (*contracts.CompositeResult, error) {
	req.Mode = contracts.ModeRealTime
	req.BypassCache = true
	return f.estimator.Estimate(ctx, req)
}

// Batch estimates every item with bounded parallelism. Per-item failures are
// reported in the item's Error field; only cancellation fails the batch.
// Results keep the request order.
func (f *Facade) Batch(ctx context.Context, reqs []BatchRequest) ([]contracts.BatchItem, error) {
	items := make([]contracts.BatchItem, len(reqs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(f.batchLimit)

	var mu sync.Mutex
	failed := 0

	for i, r := range reqs {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			item := contracts.BatchItem{ItemID: r.ItemID, TargetPoints: r.TargetPoints}
			result, err := f.Mapsheet(gCtx, r.ItemID, r.TargetPoints, r.CurrentPoints)
			if err != nil {
				item.Error = err.Error()
				mu.Lock()
				failed++
				mu.Unlock()
				f.log.Warn().Err(err).Str("item_id", r.ItemID).Msg("batch item failed")
			} else {
				item.Result = result
			}

			items[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch estimate: %w", err)
	}

	f.log.Info().Int("items", len(reqs)).Int("failed", failed).Msg("batch estimate completed")
	return items, nil
}
