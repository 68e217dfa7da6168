// Package chunker implements the Chunker/Reader component of spec §4.1:
// it turns a file path and a chunk-size policy into a lazy, ordered
// sequence of domain.FileChunk values, tagged with sequence number, byte
// offset, and is-final flag.
package chunker

import (
	"context"
	"io"
	"os"

	"github.com/adapipe/adapipe/internal/apperr"
	"github.com/adapipe/adapipe/internal/domain"
	"github.com/adapipe/adapipe/internal/resource"

	resticchunker "github.com/restic/chunker"
)

// Algorithm selects how file bytes are divided into chunks. Fixed is the
// engine's primary algorithm, driven by the §4.1 chunk-size table; FastCDC
// is an optional content-defined alternative for callers who want
// deduplication-friendly boundaries instead of fixed offsets.
type Algorithm string

const (
	AlgorithmFixed   Algorithm = "fixed"
	AlgorithmFastCDC Algorithm = "fastcdc"
)

// Chunker produces a file's chunks in ascending sequence order. Next
// returns (_, false, nil) once the stream is exhausted. Close must be
// called exactly once to release the chunker's I/O token and open file.
type Chunker interface {
	Next(ctx context.Context) (domain.FileChunk, bool, error)
	Close() error
}

// Open acquires one I/O token for the chunker's lifetime, plans the chunk
// size for path per policy, and returns a Chunker using algo.
func Open(ctx context.Context, path string, algo Algorithm, policy domain.ChunkSizePolicy, tokens *resource.Manager) (Chunker, error) {
	permit, err := tokens.AcquireIO(ctx)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		permit.Release()
		return nil, apperr.Wrap(apperr.Io, "open input file", err)
	}
	info, err := f.Stat()
	if err != nil {
		permit.Release()
		_ = f.Close()
		return nil, apperr.Wrap(apperr.Io, "stat input file", err)
	}

	size, err := Plan(uint64(info.Size()), policy)
	if err != nil {
		permit.Release()
		_ = f.Close()
		return nil, err
	}

	switch algo {
	case AlgorithmFastCDC:
		return newFastCDCChunker(f, permit, uint64(info.Size()), size), nil
	case AlgorithmFixed, "":
		return &fixedChunker{
			file:         f,
			permit:       permit,
			originalSize: uint64(info.Size()),
			chunkSize:    size,
		}, nil
	default:
		permit.Release()
		_ = f.Close()
		return nil, apperr.New(apperr.Validation, "unknown chunking algorithm: "+string(algo))
	}
}

// fixedChunker is the primary, fixed-offset implementation (§4.1).
type fixedChunker struct {
	file         *os.File
	permit       *resource.Permit
	originalSize uint64
	chunkSize    domain.ChunkSize

	sequence uint64
	offset   uint64
	done     bool
}

func (c *fixedChunker) Next(ctx context.Context) (domain.FileChunk, bool, error) {
	if c.done {
		return domain.FileChunk{}, false, nil
	}
	select {
	case <-ctx.Done():
		return domain.FileChunk{}, false, apperr.Wrap(apperr.Cancelled, "chunker.Next cancelled", ctx.Err())
	default:
	}

	buf := make([]byte, c.chunkSize.Bytes())
	n, err := io.ReadFull(c.file, buf)
	switch {
	case err == io.EOF:
		c.done = true
		return domain.FileChunk{}, false, nil
	case err == io.ErrUnexpectedEOF:
		c.done = true
		chunk, mkErr := domain.NewFileChunk(c.sequence, c.offset, buf[:n], true, c.originalSize)
		if mkErr != nil {
			return domain.FileChunk{}, false, apperr.Wrap(apperr.Internal, "build final chunk", mkErr)
		}
		return chunk, true, nil
	case err != nil:
		return domain.FileChunk{}, false, apperr.Wrap(apperr.Io, "read input file", err)
	}

	isFinal := c.offset+uint64(n) >= c.originalSize
	chunk, mkErr := domain.NewFileChunk(c.sequence, c.offset, buf[:n], isFinal, c.originalSize)
	if mkErr != nil {
		return domain.FileChunk{}, false, apperr.Wrap(apperr.Internal, "build chunk", mkErr)
	}

	c.sequence++
	c.offset += uint64(n)
	if isFinal {
		c.done = true
	}
	return chunk, true, nil
}

func (c *fixedChunker) Close() error {
	c.permit.Release()
	return c.file.Close()
}

// fastCDCChunker wraps github.com/restic/chunker for the optional
// content-defined boundary algorithm. The size chosen by Plan sets its
// bounds: chunks are at least a quarter and at most four times that size,
// with boundaries in between picked by content.
type fastCDCChunker struct {
	file    *os.File
	permit  *resource.Permit
	chunker *resticchunker.Chunker
	buf     []byte

	sequence     uint64
	offset       uint64
	originalSize uint64
	done         bool
}

func newFastCDCChunker(f *os.File, permit *resource.Permit, originalSize uint64, avg domain.ChunkSize) Chunker {
	minSize := avg.Bytes() / 4
	if minSize < 1 {
		minSize = 1
	}
	maxSize := avg.Bytes() * 4
	pol, _ := resticchunker.RandomPolynomial()
	return &fastCDCChunker{
		file:         f,
		permit:       permit,
		chunker:      resticchunker.NewWithBoundaries(f, pol, uint(minSize), uint(maxSize)),
		buf:          make([]byte, maxSize),
		originalSize: originalSize,
	}
}

func (c *fastCDCChunker) Next(ctx context.Context) (domain.FileChunk, bool, error) {
	if c.done {
		return domain.FileChunk{}, false, nil
	}
	select {
	case <-ctx.Done():
		return domain.FileChunk{}, false, apperr.Wrap(apperr.Cancelled, "chunker.Next cancelled", ctx.Err())
	default:
	}

	piece, err := c.chunker.Next(c.buf)
	if err == io.EOF {
		c.done = true
		return domain.FileChunk{}, false, nil
	}
	if err != nil {
		return domain.FileChunk{}, false, apperr.Wrap(apperr.Io, "fastcdc chunking", err)
	}

	data := make([]byte, piece.Length)
	copy(data, piece.Data)

	isFinal := c.offset+uint64(len(data)) >= c.originalSize
	chunk, mkErr := domain.NewFileChunk(c.sequence, c.offset, data, isFinal, c.originalSize)
	if mkErr != nil {
		return domain.FileChunk{}, false, apperr.Wrap(apperr.Internal, "build chunk", mkErr)
	}

	c.sequence++
	c.offset += uint64(len(data))
	if isFinal {
		c.done = true
	}
	return chunk, true, nil
}

func (c *fastCDCChunker) Close() error {
	c.permit.Release()
	return c.file.Close()
}
