package stage

import (
	"context"
	"io"

	"github.com/adapipe/adapipe/internal/apperr"
	"github.com/adapipe/adapipe/internal/domain"
)

// teeStage implements the Tee StageType (§3.3): every chunk's payload is
// written to a side sink as a debug copy, then passed through unchanged on
// the main path. The sink is caller-supplied; no naming or rotation policy
// is implemented (out of scope per §9).
type teeStage struct {
	ps   domain.PipelineStage
	sink io.Writer
}

func newTeeStage(ps domain.PipelineStage, sink io.Writer) (*teeStage, error) {
	if sink == nil {
		return nil, apperr.New(apperr.Validation, "tee stage \""+ps.Name+"\" has no sink configured")
	}
	return &teeStage{ps: ps, sink: sink}, nil
}

func (s *teeStage) Forward(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error) {
	if _, err := s.sink.Write(chunk.Payload); err != nil {
		return domain.FileChunk{}, apperr.WrapStage(apperr.Io, s.ps.Name, chunk.Sequence, "write tee sink", err)
	}
	return chunk, nil
}

// Reverse is identity: the Tee sink is a write-time side effect only and
// plays no role in restoring a chunk.
func (s *teeStage) Reverse(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error) {
	return chunk, nil
}

func (s *teeStage) EstimateOutputSize(inputSize int) int { return inputSize }

func (s *teeStage) Descriptor() domain.StageDescriptor { return descriptorFor(s.ps) }
