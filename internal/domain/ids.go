// Package domain holds the engine's entities and value objects: Pipeline,
// PipelineStage, FileChunk, ProcessingContext, ProcessedChunkRecord, and
// ContainerMetadata, plus the value objects (ChunkSize, the sortable ID
// types, algorithm tags, and FilePath) that carry their invariants.
package domain

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// idEntropy is a process-wide monotonic ULID entropy source. ULID values
// must be strictly increasing for a given timestamp to stay sortable under
// concurrent construction, so the generator is guarded by a mutex.
var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

func newULID() ulid.ULID {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), idEntropy)
}

// PipelineID is a sortable, timestamp-prefixed identifier for a Pipeline.
type PipelineID string

// NewPipelineID returns a new, immutable PipelineID.
func NewPipelineID() PipelineID { return PipelineID(newULID().String()) }

func (id PipelineID) String() string { return string(id) }

// StageID is a sortable identifier for a PipelineStage, unique within its
// owning Pipeline.
type StageID string

// NewStageID returns a new StageID.
func NewStageID() StageID { return StageID(newULID().String()) }

func (id StageID) String() string { return string(id) }

// ChunkID is a sortable identifier for a FileChunk.
type ChunkID string

// NewChunkID returns a new ChunkID.
func NewChunkID() ChunkID { return ChunkID(newULID().String()) }

func (id ChunkID) String() string { return string(id) }
