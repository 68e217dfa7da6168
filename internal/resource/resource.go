// Package resource implements the process-wide CPU/I/O token manager of
// spec §4.5: two counting semaphores (CPU tokens, I/O tokens) handed out
// as cancellable, RAII-style permits, plus a best-effort memory gauge.
//
// It is explicit-init/explicit-teardown state (§9's "process-wide state S,
// not ambient singleton"): callers construct one Manager per process (or
// per test) and pass a handle to the engine rather than reaching for a
// package-level global.
package resource

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/adapipe/adapipe/internal/apperr"
)

// StorageClass selects the default I/O token count when IOTokens is unset.
type StorageClass string

const (
	StorageNVMe    StorageClass = "nvme"
	StorageSSD     StorageClass = "ssd"
	StorageHDD     StorageClass = "hdd"
	StorageUnknown StorageClass = "unknown"
)

var defaultIOTokens = map[StorageClass]int{
	StorageNVMe:    24,
	StorageSSD:     12,
	StorageHDD:     4,
	StorageUnknown: 12,
}

// Config seeds a Manager. Zero values select the package's defaults.
type Config struct {
	CPUTokens    int          // 0 => max(1, cores-1)
	IOTokens     int          // 0 => defaultIOTokens[StorageClass]
	StorageClass StorageClass // "" => StorageUnknown
	MemoryBudget uint64       // informational only; 0 => untracked
}

// Manager hands out CPU/IO permits and tracks (without enforcing) memory
// use. The zero value is not usable; construct with New.
type Manager struct {
	cpu chan struct{}
	io  chan struct{}

	cpuCapacity int
	ioCapacity  int

	memoryBudget uint64
	memoryInUse  int64 // atomic
}

// New constructs a Manager per cfg, applying the package's defaults for
// any zero field.
func New(cfg Config) *Manager {
	cpuCapacity := cfg.CPUTokens
	if cpuCapacity <= 0 {
		cpuCapacity = runtime.NumCPU() - 1
		if cpuCapacity < 1 {
			cpuCapacity = 1
		}
	}
	ioCapacity := cfg.IOTokens
	if ioCapacity <= 0 {
		class := cfg.StorageClass
		if class == "" {
			class = StorageUnknown
		}
		ioCapacity = defaultIOTokens[class]
	}
	return &Manager{
		cpu:          make(chan struct{}, cpuCapacity),
		io:           make(chan struct{}, ioCapacity),
		cpuCapacity:  cpuCapacity,
		ioCapacity:   ioCapacity,
		memoryBudget: cfg.MemoryBudget,
	}
}

// Permit is a released-once RAII-style token; Release is safe to call
// from a defer immediately after a successful Acquire*.
type Permit struct {
	release func()
}

// Release returns the permit to its semaphore. Calling Release more than
// once is a no-op after the first call.
func (p *Permit) Release() {
	if p == nil || p.release == nil {
		return
	}
	p.release()
	p.release = nil
}

// AcquireCPU blocks until a CPU token is available or ctx is cancelled.
func (m *Manager) AcquireCPU(ctx context.Context) (*Permit, error) {
	return acquire(ctx, m.cpu)
}

// AcquireIO blocks until an I/O token is available or ctx is cancelled.
func (m *Manager) AcquireIO(ctx context.Context) (*Permit, error) {
	return acquire(ctx, m.io)
}

func acquire(ctx context.Context, sem chan struct{}) (*Permit, error) {
	select {
	case sem <- struct{}{}:
		return &Permit{release: func() { <-sem }}, nil
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.ResourceExhausted, "token acquisition cancelled", ctx.Err())
	}
}

// RegisterMemory/DeregisterMemory adjust the best-effort memory gauge.
// Tracking is informational only in this version; it is never enforced.
func (m *Manager) RegisterMemory(bytes int64)   { atomic.AddInt64(&m.memoryInUse, bytes) }
func (m *Manager) DeregisterMemory(bytes int64) { atomic.AddInt64(&m.memoryInUse, -bytes) }

// Snapshot reports current availability and saturation.
type Snapshot struct {
	CPUInUse, CPUCapacity int
	IOInUse, IOCapacity   int
	MemoryInUse           int64
	MemoryBudget          uint64
}

// CPUSaturationPct and IOSaturationPct return 0-100 saturation.
func (s Snapshot) CPUSaturationPct() float64 { return saturationPct(s.CPUInUse, s.CPUCapacity) }
func (s Snapshot) IOSaturationPct() float64  { return saturationPct(s.IOInUse, s.IOCapacity) }

func saturationPct(inUse, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return 100 * float64(inUse) / float64(capacity)
}

// Snapshot returns the manager's current state.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		CPUInUse:     len(m.cpu),
		CPUCapacity:  m.cpuCapacity,
		IOInUse:      len(m.io),
		IOCapacity:   m.ioCapacity,
		MemoryInUse:  atomic.LoadInt64(&m.memoryInUse),
		MemoryBudget: m.memoryBudget,
	}
}
