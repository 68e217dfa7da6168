package container_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adapipe/adapipe/internal/apperr"
	"github.com/adapipe/adapipe/internal/container"
	"github.com/adapipe/adapipe/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha256OfTest(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

func writeRaw(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func testHeader(checksumPresent bool) container.Header {
	h := container.Header{
		ChunkSize:        mustChunkSize(64 * 1024),
		PerChunkChecksum: checksumPresent,
		CreatedAt:        time.Now().UTC(),
	}
	if checksumPresent {
		h.ChecksumAlgo = "sha-256"
	}
	return h
}

func mustChunkSize(n uint64) domain.ChunkSize {
	cs, err := domain.NewChunkSize(n)
	if err != nil {
		panic(err)
	}
	return cs
}

func TestWriterReaderRoundTripsPayloadsOutOfOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.adapipe")
	header := testHeader(false)

	w, err := container.Create(path, header)
	require.NoError(t, err)

	records := []domain.ProcessedChunkRecord{
		{Sequence: 0, Payload: []byte("first chunk payload")},
		{Sequence: 1, Payload: []byte("second chunk payload, a bit longer")},
		{Sequence: 2, Payload: []byte("third")},
	}

	// Write out of order: the engine's worker pool does not guarantee
	// sequence order, only the writer's Finalize gather does.
	require.NoError(t, w.WriteChunk(context.Background(), records[2]))
	require.NoError(t, w.WriteChunk(context.Background(), records[0]))
	require.NoError(t, w.WriteChunk(context.Background(), records[1]))

	meta := domain.ContainerMetadata{
		OriginalFilename: "input.bin",
		OriginalSize:     uint64(len(records[0].Payload) + len(records[1].Payload) + len(records[2].Payload)),
		ChunkSize:        header.ChunkSize,
		Stages: []domain.StageDescriptor{
			{Type: domain.StageCompression, Algorithm: domain.CompressionZstd, Params: map[string]string{"level": "3"}},
		},
		Version: domain.CurrentFormatVersion,
	}
	require.NoError(t, w.Finalize(meta))

	r, err := container.Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, header.ChunkSize, r.Header.ChunkSize)
	assert.Equal(t, uint64(3), r.Footer.ChunkCount)
	assert.Equal(t, "input.bin", r.Footer.OriginalFilename)

	var got []container.Frame
	for {
		f, err := r.Next()
		if err != nil {
			break
		}
		got = append(got, f)
	}
	require.Len(t, got, 3)
	assert.Equal(t, records[0].Payload, got[0].Payload)
	assert.Equal(t, records[1].Payload, got[1].Payload)
	assert.Equal(t, records[2].Payload, got[2].Payload)
	for _, f := range got {
		assert.Nil(t, f.Checksum)
	}
}

func TestWriterReaderRoundTripsChecksums(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checksummed.adapipe")
	header := testHeader(true)

	w, err := container.Create(path, header)
	require.NoError(t, err)

	records := []domain.ProcessedChunkRecord{
		{Sequence: 0, Payload: []byte("alpha"), Checksum: sha256OfTest("alpha")},
		{Sequence: 1, Payload: []byte("beta"), Checksum: sha256OfTest("beta")},
	}
	for _, rec := range records {
		require.NoError(t, w.WriteChunk(context.Background(), rec))
	}

	meta := domain.ContainerMetadata{
		OriginalFilename: "input.bin",
		OriginalSize:     uint64(len(records[0].Payload) + len(records[1].Payload)),
		ChunkSize:        header.ChunkSize,
		Version:          domain.CurrentFormatVersion,
	}
	require.NoError(t, w.Finalize(meta))

	r, err := container.Open(path)
	require.NoError(t, err)
	defer r.Close()

	for i, rec := range records {
		f, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, rec.Payload, f.Payload)
		assert.Equal(t, rec.Checksum, f.Checksum, "frame %d", i)
	}
}

func TestReaderDetectsTamperedPerChunkChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tampered.adapipe")
	header := testHeader(true)

	w, err := container.Create(path, header)
	require.NoError(t, err)
	require.NoError(t, w.WriteChunk(context.Background(), domain.ProcessedChunkRecord{
		Sequence: 0, Payload: []byte("alpha"), Checksum: sha256OfTest("alpha"),
	}))
	meta := domain.ContainerMetadata{
		OriginalFilename: "input.bin",
		OriginalSize:     5,
		ChunkSize:        header.ChunkSize,
		Version:          domain.CurrentFormatVersion,
	}
	require.NoError(t, w.Finalize(meta))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip a payload byte in place, leaving the stored checksum stale.
	idx := bytes.LastIndex(raw, []byte("alpha"))
	require.GreaterOrEqual(t, idx, 0)
	raw[idx] ^= 0xFF
	require.NoError(t, writeRaw(path, raw))

	r, err := container.Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.Error(t, err)
	assert.Equal(t, apperr.Integrity, apperr.KindOf(err))
}

func TestWriteChunkRejectsDuplicateSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.adapipe")
	w, err := container.Create(path, testHeader(false))
	require.NoError(t, err)

	require.NoError(t, w.WriteChunk(context.Background(), domain.ProcessedChunkRecord{Sequence: 0, Payload: []byte("a")}))
	err = w.WriteChunk(context.Background(), domain.ProcessedChunkRecord{Sequence: 0, Payload: []byte("b")})
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}

func TestFinalizeRejectsGapInSequences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gap.adapipe")
	w, err := container.Create(path, testHeader(false))
	require.NoError(t, err)

	require.NoError(t, w.WriteChunk(context.Background(), domain.ProcessedChunkRecord{Sequence: 0, Payload: []byte("a")}))
	require.NoError(t, w.WriteChunk(context.Background(), domain.ProcessedChunkRecord{Sequence: 2, Payload: []byte("c")}))

	err = w.Finalize(domain.ContainerMetadata{OriginalFilename: "input.bin", Version: domain.CurrentFormatVersion})
	require.Error(t, err)
	assert.Equal(t, apperr.Integrity, apperr.KindOf(err))
}

func TestReaderRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.adapipe")
	require.NoError(t, writeRaw(path, []byte("NOTADPI and then garbage bytes that are at least long enough")))

	_, err := container.Open(path)
	assert.Error(t, err)
}

func TestAbortLeavesNoDestinationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aborted.adapipe")

	w, err := container.Create(path, testHeader(false))
	require.NoError(t, err)
	require.NoError(t, w.WriteChunk(context.Background(), domain.ProcessedChunkRecord{Sequence: 0, Payload: []byte("x")}))
	require.NoError(t, w.Abort())

	_, err = container.Open(path)
	assert.Error(t, err)
}
