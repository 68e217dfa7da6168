// Package stage implements the tagged-variant StageImpl dispatch of §9:
// a closed set of built-in stage kinds (Compression, Encryption, Checksum,
// Tee, PassThrough) plus one open registration point (Transform), each
// applying a forward transform on write and a reverse transform on
// restore.
package stage

import (
	"context"
	"io"

	"github.com/adapipe/adapipe/internal/apperr"
	"github.com/adapipe/adapipe/internal/domain"
)

// Impl is the contract every stage variant satisfies. Forward runs while
// writing a .adapipe container; Reverse runs while restoring one. Both
// preserve a chunk's Sequence/Offset/IsFinal identity (domain.FileChunk.
// WithPayload) and only ever change Payload/Checksum.
type Impl interface {
	Forward(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error)
	Reverse(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error)
	// EstimateOutputSize bounds the forward-transformed size of an input of
	// inputSize bytes. It is an upper bound, not an exact prediction:
	// compression in particular can't be known ahead of time. The container
	// writer does not use it; it gathers variable-length output at Finalize.
	EstimateOutputSize(inputSize int) int
	Descriptor() domain.StageDescriptor
}

// KeyProvider resolves the already-derived symmetric key for an encryption
// stage by name. The engine never derives or stores keys itself (§6.2).
type KeyProvider interface {
	KeyFor(stageName string) ([]byte, error)
}

// TransformFunc is the function type of a registered Transform stage's
// forward implementation and of the reverse one that undoes it. Both must
// be pure functions of their chunk.
type TransformFunc func(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error)

// Transform bundles a registered Transform stage's forward/reverse pair.
type Transform struct {
	Forward TransformFunc
	Reverse TransformFunc
}

// BuildOptions supplies the out-of-band state Build needs beyond a
// PipelineStage's own fields: algorithm registry, encryption keys, Tee
// sinks, and registered Transform implementations.
type BuildOptions struct {
	Registry   *domain.Registry
	Keys       KeyProvider
	TeeSinks   map[string]io.Writer
	Transforms map[domain.AlgorithmTag]Transform
}

// Build validates a PipelineStage's algorithm tag against opts.Registry and
// constructs its Impl. It is the engine's single stage-construction path;
// no stage is built any other way.
func Build(ps domain.PipelineStage, opts BuildOptions) (Impl, error) {
	registry := opts.Registry
	if registry == nil {
		registry = domain.NewRegistry()
	}
	if err := registry.Validate(ps.Type, ps.Algorithm); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "validate stage algorithm", err)
	}

	switch ps.Type {
	case domain.StageCompression:
		return newCompressionStage(ps)
	case domain.StageEncryption:
		return newEncryptionStage(ps, opts.Keys)
	case domain.StageChecksum:
		return newChecksumStage(ps)
	case domain.StageTee:
		return newTeeStage(ps, opts.TeeSinks[ps.Name])
	case domain.StagePassThrough:
		return newPassThroughStage(ps), nil
	case domain.StageTransform:
		t, ok := opts.Transforms[ps.Algorithm]
		if !ok {
			return nil, apperr.New(apperr.Validation, "no transform registered for tag "+string(ps.Algorithm))
		}
		return newTransformStage(ps, t), nil
	default:
		return nil, apperr.New(apperr.Validation, "unknown stage type "+string(ps.Type))
	}
}

func descriptorFor(ps domain.PipelineStage) domain.StageDescriptor {
	return domain.StageDescriptor{
		Name:         ps.Name,
		Type:         ps.Type,
		Algorithm:    ps.Algorithm,
		Params:       ps.Params,
		ParallelSafe: ps.ParallelSafe,
	}
}
