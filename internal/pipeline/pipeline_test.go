package pipeline_test

import (
	"context"
	"sync"
	"testing"

	"github.com/adapipe/adapipe/internal/domain"
	"github.com/adapipe/adapipe/internal/pipeline"
	"github.com/adapipe/adapipe/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildStage(name string, order int, stageType domain.StageType, tag domain.AlgorithmTag, parallelSafe bool) domain.PipelineStage {
	return domain.PipelineStage{
		ID: domain.NewStageID(), Name: name, Type: stageType, Algorithm: tag,
		Enabled: true, Order: order, ParallelSafe: parallelSafe,
	}
}

func TestChainForwardThenReverseRoundTrips(t *testing.T) {
	p, err := domain.NewPipeline("roundtrip", []domain.PipelineStage{
		buildStage("compress", 0, domain.StageCompression, domain.CompressionZstd, true),
		buildStage("checksum", 1, domain.StageChecksum, domain.ChecksumSHA256, true),
	}, nil)
	require.NoError(t, err)

	chain, err := pipeline.Build(p, stage.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, chain.Len())

	payload := []byte("round trip through compress then checksum")
	chunk, err := domain.NewFileChunk(0, 0, payload, true, uint64(len(payload)))
	require.NoError(t, err)

	forward, err := chain.Forward(context.Background(), chunk)
	require.NoError(t, err)
	assert.NotEqual(t, payload, forward.Payload)
	assert.NotEmpty(t, forward.Checksum)

	back, err := chain.Reverse(context.Background(), forward)
	require.NoError(t, err)
	assert.Equal(t, payload, back.Payload)
}

func TestChainSkipsDisabledStages(t *testing.T) {
	stages := []domain.PipelineStage{
		buildStage("compress", 0, domain.StageCompression, domain.CompressionZstd, true),
		buildStage("checksum", 1, domain.StageChecksum, domain.ChecksumSHA256, true),
	}
	stages[1].Enabled = false
	p, err := domain.NewPipeline("partial", stages, nil)
	require.NoError(t, err)

	chain, err := pipeline.Build(p, stage.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, chain.Len())
}

func TestChainSerializesNonParallelSafeStage(t *testing.T) {
	tag := domain.AlgorithmTag("transform:counter")
	registry := domain.NewRegistry()
	registry.RegisterTransform(tag)

	var mu sync.Mutex
	count := 0
	maxConcurrent := 0
	current := 0

	counting := func(ctx context.Context, c domain.FileChunk) (domain.FileChunk, error) {
		mu.Lock()
		current++
		if current > maxConcurrent {
			maxConcurrent = current
		}
		count++
		mu.Unlock()

		defer func() {
			mu.Lock()
			current--
			mu.Unlock()
		}()
		return c, nil
	}

	p, err := domain.NewPipeline("serial", []domain.PipelineStage{
		buildStage("counter", 0, domain.StageTransform, tag, false),
	}, nil)
	require.NoError(t, err)

	chain, err := pipeline.Build(p, stage.BuildOptions{
		Registry:   registry,
		Transforms: map[domain.AlgorithmTag]stage.Transform{tag: {Forward: counting, Reverse: counting}},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			chunk, _ := domain.NewFileChunk(seq, 0, nil, true, 0)
			_, _ = chain.Forward(context.Background(), chunk)
		}(uint64(i))
	}
	wg.Wait()

	assert.Equal(t, 8, count)
	assert.Equal(t, 1, maxConcurrent)
}

func TestChainDescriptorsMatchForwardOrder(t *testing.T) {
	p, err := domain.NewPipeline("descriptors", []domain.PipelineStage{
		buildStage("compress", 0, domain.StageCompression, domain.CompressionZstd, true),
		buildStage("checksum", 1, domain.StageChecksum, domain.ChecksumSHA256, true),
	}, nil)
	require.NoError(t, err)

	chain, err := pipeline.Build(p, stage.BuildOptions{})
	require.NoError(t, err)

	descriptors := chain.Descriptors()
	require.Len(t, descriptors, 2)
	assert.Equal(t, domain.StageCompression, descriptors[0].Type)
	assert.Equal(t, domain.StageChecksum, descriptors[1].Type)
}
