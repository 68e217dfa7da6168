package stage

import (
	"bytes"
	"context"
	"io"
	"strconv"

	"github.com/adapipe/adapipe/internal/apperr"
	"github.com/adapipe/adapipe/internal/domain"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/lz4"
	"github.com/klauspost/compress/zstd"
)

// compressionStage implements the Compression StageType (§3.3, §4.2):
// forward replaces a chunk's payload with its compressed form, reverse
// restores the original bytes. Each chunk is compressed independently so
// chunks stay decodable out of order.
type compressionStage struct {
	ps       domain.PipelineStage
	codec    compressionCodec
}

type compressionCodec interface {
	compress(data []byte) ([]byte, error)
	decompress(data []byte) ([]byte, error)
}

func newCompressionStage(ps domain.PipelineStage) (*compressionStage, error) {
	codec, err := newCompressionCodec(ps)
	if err != nil {
		return nil, err
	}
	return &compressionStage{ps: ps, codec: codec}, nil
}

func newCompressionCodec(ps domain.PipelineStage) (compressionCodec, error) {
	switch ps.Algorithm {
	case domain.CompressionZstd:
		return newZstdCodec(levelParam(ps, 3))
	case domain.CompressionGzip:
		return newGzipCodec(levelParam(ps, gzip.DefaultCompression))
	case domain.CompressionLZ4:
		return newLZ4Codec(levelParam(ps, 0))
	case domain.CompressionBrotli:
		return nil, apperr.New(apperr.Validation, "brotli compression is not implemented in this build")
	default:
		return nil, apperr.New(apperr.Validation, "unsupported compression algorithm "+string(ps.Algorithm))
	}
}

func levelParam(ps domain.PipelineStage, fallback int) int {
	if ps.Params == nil {
		return fallback
	}
	raw, ok := ps.Params["level"]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func (s *compressionStage) Forward(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error) {
	out, err := s.codec.compress(chunk.Payload)
	if err != nil {
		return domain.FileChunk{}, apperr.WrapStage(apperr.Compression, s.ps.Name, chunk.Sequence, "compress chunk", err)
	}
	return chunk.WithPayload(out), nil
}

func (s *compressionStage) Reverse(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error) {
	out, err := s.codec.decompress(chunk.Payload)
	if err != nil {
		return domain.FileChunk{}, apperr.WrapStage(apperr.Decompression, s.ps.Name, chunk.Sequence, "decompress chunk", err)
	}
	return chunk.WithPayload(out), nil
}

func (s *compressionStage) EstimateOutputSize(inputSize int) int {
	// Worst case: incompressible data plus frame overhead.
	return inputSize + inputSize/8 + 256
}

func (s *compressionStage) Descriptor() domain.StageDescriptor { return descriptorFor(s.ps) }

// zstdCodec compresses/decompresses whole chunks via klauspost/compress/zstd's
// one-shot EncodeAll/DecodeAll API.
type zstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstdCodec(level int) (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &zstdCodec{encoder: enc, decoder: dec}, nil
}

func (c *zstdCodec) compress(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func (c *zstdCodec) decompress(data []byte) ([]byte, error) {
	return c.decoder.DecodeAll(data, nil)
}

// gzipCodec wraps klauspost/compress/gzip, a drop-in faster gzip.
type gzipCodec struct {
	level int
}

func newGzipCodec(level int) (*gzipCodec, error) { return &gzipCodec{level: level}, nil }

func (c *gzipCodec) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *gzipCodec) decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// lz4Codec wraps klauspost/compress/lz4's streaming Writer/Reader.
type lz4Codec struct {
	level lz4.CompressionLevel
}

func newLZ4Codec(level int) (*lz4Codec, error) { return &lz4Codec{level: lz4.CompressionLevel(level)}, nil }

func (c *lz4Codec) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if c.level != 0 {
		_ = w.Apply(lz4.CompressionLevelOption(c.level))
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *lz4Codec) decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	return io.ReadAll(r)
}
