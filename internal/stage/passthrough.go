package stage

import (
	"context"

	"github.com/adapipe/adapipe/internal/domain"
)

// passThroughStage implements the PassThrough StageType: identity in both
// directions. It exists so a pipeline can reserve a stage slot (for
// ordering or configuration reasons) without applying any transform.
type passThroughStage struct {
	ps domain.PipelineStage
}

func newPassThroughStage(ps domain.PipelineStage) *passThroughStage {
	return &passThroughStage{ps: ps}
}

func (s *passThroughStage) Forward(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error) {
	return chunk, nil
}

func (s *passThroughStage) Reverse(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error) {
	return chunk, nil
}

func (s *passThroughStage) EstimateOutputSize(inputSize int) int { return inputSize }

func (s *passThroughStage) Descriptor() domain.StageDescriptor { return descriptorFor(s.ps) }

// transformStage implements the Transform StageType: the engine's one open
// extension point (§9), dispatching to a caller-registered forward/reverse
// function pair rather than a built-in algorithm.
type transformStage struct {
	ps domain.PipelineStage
	t  Transform
}

func newTransformStage(ps domain.PipelineStage, t Transform) *transformStage {
	return &transformStage{ps: ps, t: t}
}

func (s *transformStage) Forward(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error) {
	return s.t.Forward(ctx, chunk)
}

func (s *transformStage) Reverse(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error) {
	return s.t.Reverse(ctx, chunk)
}

func (s *transformStage) EstimateOutputSize(inputSize int) int { return inputSize }

func (s *transformStage) Descriptor() domain.StageDescriptor { return descriptorFor(s.ps) }
