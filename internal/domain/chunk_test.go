package domain_test

import (
	"testing"

	"github.com/adapipe/adapipe/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunkSizeRange(t *testing.T) {
	_, err := domain.NewChunkSize(0)
	assert.Error(t, err)

	_, err = domain.NewChunkSize(513 * 1024 * 1024)
	assert.Error(t, err)

	size, err := domain.NewChunkSize(64 * 1024)
	require.NoError(t, err)
	assert.Equal(t, uint64(64*1024), size.Bytes())
}

func TestNewFileChunkRejectsOverflowingOffset(t *testing.T) {
	_, err := domain.NewFileChunk(0, 10, []byte("12345"), true, 12)
	assert.Error(t, err)
}

func TestFileChunkWithPayloadPreservesIdentity(t *testing.T) {
	chunk, err := domain.NewFileChunk(3, 0, []byte("abc"), false, 100)
	require.NoError(t, err)

	next := chunk.WithPayload([]byte("xyz12"))
	assert.Equal(t, chunk.Sequence, next.Sequence)
	assert.Equal(t, chunk.Offset, next.Offset)
	assert.Equal(t, chunk.IsFinal, next.IsFinal)
	assert.Equal(t, 5, next.Size())
	assert.Empty(t, next.Checksum)
}
