// Package container implements the .adapipe binary container of §4.4/§6.1:
// a magic-prefixed, versioned format with a JSON header, a sequence of
// length-prefixed chunk frames, and a JSON footer located by seeking from
// EOF, so a reader never needs to scan the whole file to recover metadata.
package container

import (
	"time"

	"github.com/adapipe/adapipe/internal/domain"
)

// magic identifies an .adapipe container. It is the first four bytes of
// every file this package writes.
var magic = [4]byte{'A', 'D', 'P', 'I'}

// checksumSize is the fixed width of a chunk frame's optional per-chunk
// checksum (§4.4: "fixed 32 bytes if present"). It holds a SHA-256 digest
// of the chunk's final, post-stage-chain payload regardless of whether
// the pipeline also ran a Checksum stage for its own integrity purposes;
// the two are independent (§3.3 vs §4.4).
const checksumSize = 32

// Header is written once, immediately after the magic/version bytes,
// before any chunk is known to exist: exactly the field set §6.1 names
// (chunk_size, per_chunk_checksum, checksum_algo, created_at). Final
// counts, the restoration plan, and the whole-file checksum belong in
// the footer (domain.ContainerMetadata), which isn't known until the run
// completes. PerChunkChecksum governs every chunk frame uniformly:
// either all frames carry the fixed 32-byte checksum or none do.
type Header struct {
	ChunkSize        domain.ChunkSize `json:"chunk_size"`
	PerChunkChecksum bool             `json:"per_chunk_checksum"`
	ChecksumAlgo     string           `json:"checksum_algo,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}
