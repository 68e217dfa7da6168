package stage_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/adapipe/adapipe/internal/domain"
	"github.com/adapipe/adapipe/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressionStage(t *testing.T, tag domain.AlgorithmTag) stage.Impl {
	t.Helper()
	ps := domain.PipelineStage{Name: "compress", Type: domain.StageCompression, Algorithm: tag, Enabled: true}
	impl, err := stage.Build(ps, stage.BuildOptions{})
	require.NoError(t, err)
	return impl
}

func roundTrip(t *testing.T, impl stage.Impl, payload []byte) {
	t.Helper()
	chunk, err := domain.NewFileChunk(0, 0, payload, true, uint64(len(payload)))
	require.NoError(t, err)

	forward, err := impl.Forward(context.Background(), chunk)
	require.NoError(t, err)

	back, err := impl.Reverse(context.Background(), forward)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, back.Payload))
	assert.Equal(t, chunk.Sequence, back.Sequence)
	assert.Equal(t, chunk.Offset, back.Offset)
}

func TestCompressionRoundTripZstd(t *testing.T) {
	roundTrip(t, compressionStage(t, domain.CompressionZstd), bytes.Repeat([]byte("payload-"), 1000))
}

func TestCompressionRoundTripGzip(t *testing.T) {
	roundTrip(t, compressionStage(t, domain.CompressionGzip), bytes.Repeat([]byte("payload-"), 1000))
}

func TestCompressionRoundTripLZ4(t *testing.T) {
	roundTrip(t, compressionStage(t, domain.CompressionLZ4), bytes.Repeat([]byte("payload-"), 1000))
}

func TestCompressionRoundTripEmptyPayload(t *testing.T) {
	roundTrip(t, compressionStage(t, domain.CompressionZstd), []byte{})
}

func TestCompressionBrotliRejectedAtConstruction(t *testing.T) {
	ps := domain.PipelineStage{Name: "compress", Type: domain.StageCompression, Algorithm: domain.CompressionBrotli, Enabled: true}
	_, err := stage.Build(ps, stage.BuildOptions{})
	require.Error(t, err)
}
