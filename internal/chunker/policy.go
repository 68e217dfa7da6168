package chunker

import (
	"github.com/adapipe/adapipe/internal/apperr"
	"github.com/adapipe/adapipe/internal/domain"
)

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
)

// sizeBand is one row of the §4.1 fixed-offset chunk-size table: files of
// at most upTo bytes get size bytes per chunk.
type sizeBand struct {
	upTo uint64
	size uint64
}

// table is ordered ascending by upTo; files larger than the last row's
// upTo fall through to overflowChunkSize in OptimalForFileSize.
var table = []sizeBand{
	{upTo: 1 * mib, size: 64 * kib},
	{upTo: 10 * mib, size: 256 * kib},
	{upTo: 50 * mib, size: 2 * mib},
	{upTo: 500 * mib, size: 16 * mib},
	{upTo: 2048 * mib, size: 64 * mib},
}

const overflowChunkSize = 128 * mib

// OptimalForFileSize is a pure function mapping a file's byte size to its
// fixed chunk size per the §4.1 table. It never allocates, blocks, or
// depends on process state, so it is safe to call from anywhere,
// including concurrently.
func OptimalForFileSize(fileSize uint64) domain.ChunkSize {
	for _, band := range table {
		if fileSize <= band.upTo {
			return domain.ChunkSize(band.size)
		}
	}
	return domain.ChunkSize(overflowChunkSize)
}

// optimalBounded clamps OptimalForFileSize's result to
// max(1 MiB, floor(memory/parallelism)) per §4.1's bounded variant. Because
// of the 1 MiB floor, a budget that leaves less than 1 MiB per worker still
// gets 1 MiB chunks.
func optimalBounded(fileSize uint64, memory uint64, degree int) domain.ChunkSize {
	optimal := OptimalForFileSize(fileSize)
	if degree < 1 {
		degree = 1
	}
	bound := uint64(1 * mib)
	if memory > 0 {
		if b := memory / uint64(degree); b > bound {
			bound = b
		}
	}
	if optimal.Bytes() > bound {
		return domain.ChunkSize(bound)
	}
	return optimal
}

// Plan resolves a chunk-size policy to a concrete ChunkSize for a file of
// fileSize bytes.
func Plan(fileSize uint64, policy domain.ChunkSizePolicy) (domain.ChunkSize, error) {
	switch policy.Kind {
	case domain.PolicyFixed:
		if policy.Fixed == 0 {
			return domain.NewChunkSize(domain.DefaultChunkSize.Bytes())
		}
		return domain.NewChunkSize(policy.Fixed.Bytes())
	case domain.PolicyOptimal, "":
		return domain.NewChunkSize(OptimalForFileSize(fileSize).Bytes())
	case domain.PolicyOptimalBounded:
		return domain.NewChunkSize(optimalBounded(fileSize, policy.Memory, policy.Degree).Bytes())
	default:
		return 0, apperr.New(apperr.Validation, "unknown chunk size policy: "+string(policy.Kind))
	}
}
