package stage_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/adapipe/adapipe/internal/domain"
	"github.com/adapipe/adapipe/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeeWritesSideSinkAndPassesThroughPayload(t *testing.T) {
	var sink bytes.Buffer
	ps := domain.PipelineStage{Name: "debug-tee", Type: domain.StageTee, Enabled: true}

	impl, err := stage.Build(ps, stage.BuildOptions{TeeSinks: map[string]io.Writer{"debug-tee": &sink}})
	require.NoError(t, err)

	payload := []byte("observed bytes")
	chunk, err := domain.NewFileChunk(0, 0, payload, true, uint64(len(payload)))
	require.NoError(t, err)

	forward, err := impl.Forward(context.Background(), chunk)
	require.NoError(t, err)
	assert.Equal(t, payload, forward.Payload)
	assert.Equal(t, payload, sink.Bytes())
}

func TestTeeRequiresSinkConfigured(t *testing.T) {
	ps := domain.PipelineStage{Name: "debug-tee", Type: domain.StageTee, Enabled: true}
	_, err := stage.Build(ps, stage.BuildOptions{})
	require.Error(t, err)
}
