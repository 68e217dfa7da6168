package domain

import (
	"sync/atomic"
	"time"
)

// ProcessingContext is the per-file mutable scratchpad threaded through
// stage execution (§3.1). It is exclusively owned by the worker currently
// executing a chunk; per-file aggregate counters are merged at completion
// using atomics so a final read never races the workers that updated them.
type ProcessingContext struct {
	PipelineID  PipelineID
	ChunkPolicy ChunkSizePolicy

	bytesProcessed uint64
	errorCount     uint64
	warningCount   uint64

	stageDurations map[string]time.Duration
}

// NewProcessingContext returns a context for one run of pipelineID.
func NewProcessingContext(pipelineID PipelineID, policy ChunkSizePolicy) *ProcessingContext {
	return &ProcessingContext{
		PipelineID:     pipelineID,
		ChunkPolicy:    policy,
		stageDurations: make(map[string]time.Duration),
	}
}

// AddBytesProcessed atomically accumulates cumulative bytes processed.
func (pc *ProcessingContext) AddBytesProcessed(n uint64) {
	atomic.AddUint64(&pc.bytesProcessed, n)
}

// BytesProcessed returns the cumulative bytes processed so far.
func (pc *ProcessingContext) BytesProcessed() uint64 {
	return atomic.LoadUint64(&pc.bytesProcessed)
}

// IncrError/IncrWarning bump the per-file error/warning counters.
func (pc *ProcessingContext) IncrError()   { atomic.AddUint64(&pc.errorCount, 1) }
func (pc *ProcessingContext) IncrWarning() { atomic.AddUint64(&pc.warningCount, 1) }

func (pc *ProcessingContext) ErrorCount() uint64   { return atomic.LoadUint64(&pc.errorCount) }
func (pc *ProcessingContext) WarningCount() uint64 { return atomic.LoadUint64(&pc.warningCount) }

// ChunkSizePolicy names the §4.1 `plan` policy selected for a run.
type ChunkSizePolicy struct {
	Kind   ChunkSizePolicyKind
	Fixed  ChunkSize // used when Kind == PolicyFixed
	Memory uint64    // used when Kind == PolicyOptimalBounded
	Degree int       // parallelism, used when Kind == PolicyOptimalBounded
}

type ChunkSizePolicyKind string

const (
	PolicyFixed           ChunkSizePolicyKind = "fixed"
	PolicyOptimal         ChunkSizePolicyKind = "optimal"
	PolicyOptimalBounded  ChunkSizePolicyKind = "optimal_bounded"
)
