package stage_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/adapipe/adapipe/internal/apperr"
	"github.com/adapipe/adapipe/internal/domain"
	"github.com/adapipe/adapipe/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedKeyProvider struct{ key []byte }

func (p fixedKeyProvider) KeyFor(name string) ([]byte, error) { return p.key, nil }

func encryptionStage(t *testing.T, tag domain.AlgorithmTag, key []byte) stage.Impl {
	t.Helper()
	ps := domain.PipelineStage{Name: "encrypt", Type: domain.StageEncryption, Algorithm: tag, Enabled: true}
	impl, err := stage.Build(ps, stage.BuildOptions{Keys: fixedKeyProvider{key: key}})
	require.NoError(t, err)
	return impl
}

func TestEncryptionRoundTripAES256GCM(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	impl := encryptionStage(t, domain.EncryptionAES256GCM, key)

	payload := []byte("top secret chunk payload")
	chunk, err := domain.NewFileChunk(1, 10, payload, false, 1000)
	require.NoError(t, err)

	forward, err := impl.Forward(context.Background(), chunk)
	require.NoError(t, err)
	assert.NotEqual(t, payload, forward.Payload)

	back, err := impl.Reverse(context.Background(), forward)
	require.NoError(t, err)
	assert.Equal(t, payload, back.Payload)
}

func TestEncryptionRoundTripAES128GCM(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 16)
	impl := encryptionStage(t, domain.EncryptionAES128GCM, key)

	payload := []byte("another chunk")
	chunk, err := domain.NewFileChunk(0, 0, payload, true, uint64(len(payload)))
	require.NoError(t, err)

	forward, err := impl.Forward(context.Background(), chunk)
	require.NoError(t, err)
	back, err := impl.Reverse(context.Background(), forward)
	require.NoError(t, err)
	assert.Equal(t, payload, back.Payload)
}

func TestEncryptionRoundTripChaCha20Poly1305(t *testing.T) {
	key := bytes.Repeat([]byte{0x7A}, 32)
	impl := encryptionStage(t, domain.EncryptionChaCha, key)

	payload := []byte("chacha chunk payload")
	chunk, err := domain.NewFileChunk(0, 0, payload, true, uint64(len(payload)))
	require.NoError(t, err)

	forward, err := impl.Forward(context.Background(), chunk)
	require.NoError(t, err)
	back, err := impl.Reverse(context.Background(), forward)
	require.NoError(t, err)
	assert.Equal(t, payload, back.Payload)
}

func TestEncryptionTamperDetection(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	impl := encryptionStage(t, domain.EncryptionAES256GCM, key)

	payload := []byte("authenticated payload")
	chunk, err := domain.NewFileChunk(0, 0, payload, true, uint64(len(payload)))
	require.NoError(t, err)

	forward, err := impl.Forward(context.Background(), chunk)
	require.NoError(t, err)

	tampered := make([]byte, len(forward.Payload))
	copy(tampered, forward.Payload)
	tampered[len(tampered)-1] ^= 0xFF
	forward = forward.WithPayload(tampered)

	_, err = impl.Reverse(context.Background(), forward)
	require.Error(t, err)
	assert.Equal(t, apperr.Integrity, apperr.KindOf(err))
}

func TestEncryptionRejectsWrongKeySize(t *testing.T) {
	ps := domain.PipelineStage{Name: "encrypt", Type: domain.StageEncryption, Algorithm: domain.EncryptionAES256GCM, Enabled: true}
	_, err := stage.Build(ps, stage.BuildOptions{Keys: fixedKeyProvider{key: []byte("too-short")}})
	require.Error(t, err)
}
