// Package pipeline turns a domain.Pipeline into an executable stage chain:
// forward order is the pipeline's declared stage order (used while writing
// a .adapipe container), reverse order undoes it in the opposite direction
// (used while restoring one). A stage marked not parallel-safe serializes
// its own calls behind a per-stage mutex so the engine's worker pool can
// still run chunks concurrently through the rest of the chain.
package pipeline

import (
	"context"
	"sync"

	"github.com/adapipe/adapipe/internal/domain"
	"github.com/adapipe/adapipe/internal/stage"
)

// Chain is a built, ready-to-run stage sequence for one Pipeline.
type Chain struct {
	stages []stage.Impl
	locks  []*sync.Mutex // nil entry for a parallel-safe stage
}

// Build constructs a Chain from p's enabled stages, in declared order.
func Build(p *domain.Pipeline, opts stage.BuildOptions) (*Chain, error) {
	declared := p.Stages()
	stages := make([]stage.Impl, 0, len(declared))
	locks := make([]*sync.Mutex, 0, len(declared))

	for _, ps := range declared {
		if !ps.Enabled {
			continue
		}
		impl, err := stage.Build(ps, opts)
		if err != nil {
			return nil, err
		}
		stages = append(stages, impl)
		if ps.ParallelSafe {
			locks = append(locks, nil)
		} else {
			locks = append(locks, &sync.Mutex{})
		}
	}
	return &Chain{stages: stages, locks: locks}, nil
}

// BuildFromDescriptors reconstructs a restore-side Chain directly from a
// container footer's recorded StageDescriptors (§4.4), without needing the
// original Pipeline aggregate: a restoring caller only ever has the
// container in hand, not the Pipeline that produced it.
func BuildFromDescriptors(descriptors []domain.StageDescriptor, opts stage.BuildOptions) (*Chain, error) {
	stages := make([]stage.Impl, len(descriptors))
	locks := make([]*sync.Mutex, len(descriptors))

	for i, d := range descriptors {
		ps := domain.PipelineStage{
			Name:         d.Name,
			Type:         d.Type,
			Algorithm:    d.Algorithm,
			Enabled:      true,
			Order:        i,
			ParallelSafe: d.ParallelSafe,
			Params:       d.Params,
		}
		impl, err := stage.Build(ps, opts)
		if err != nil {
			return nil, err
		}
		stages[i] = impl
		if !d.ParallelSafe {
			locks[i] = &sync.Mutex{}
		}
	}
	return &Chain{stages: stages, locks: locks}, nil
}

// Forward runs chunk through every stage in declared order.
func (c *Chain) Forward(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error) {
	cur := chunk
	for i, s := range c.stages {
		next, err := c.callLocked(ctx, i, s.Forward, cur)
		if err != nil {
			return domain.FileChunk{}, err
		}
		cur = next
	}
	return cur, nil
}

// Reverse undoes the chain in the opposite order, restoring the original
// chunk from its forward-transformed form.
func (c *Chain) Reverse(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error) {
	cur := chunk
	for i := len(c.stages) - 1; i >= 0; i-- {
		next, err := c.callLocked(ctx, i, c.stages[i].Reverse, cur)
		if err != nil {
			return domain.FileChunk{}, err
		}
		cur = next
	}
	return cur, nil
}

type stageFunc func(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error)

func (c *Chain) callLocked(ctx context.Context, i int, fn stageFunc, chunk domain.FileChunk) (domain.FileChunk, error) {
	if lock := c.locks[i]; lock != nil {
		lock.Lock()
		defer lock.Unlock()
	}
	return fn(ctx, chunk)
}

// Descriptors returns the restoration plan, one StageDescriptor per stage
// in forward order, for recording in the container footer (§4.4).
func (c *Chain) Descriptors() []domain.StageDescriptor {
	out := make([]domain.StageDescriptor, len(c.stages))
	for i, s := range c.stages {
		out[i] = s.Descriptor()
	}
	return out
}

// Len reports the number of enabled stages in the chain.
func (c *Chain) Len() int { return len(c.stages) }
