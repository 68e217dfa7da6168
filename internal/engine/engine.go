// Package engine implements the worker pool and run orchestration of
// spec §4.3: a reader goroutine feeding a bounded backpressure queue, a
// per-file semaphore bounding in-flight chunks, and global CPU tokens
// from the resource manager gating stage-chain execution so concurrent
// runs in the same process share one CPU budget.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/adapipe/adapipe/internal/apperr"
	"github.com/adapipe/adapipe/internal/chunker"
	"github.com/adapipe/adapipe/internal/container"
	"github.com/adapipe/adapipe/internal/domain"
	"github.com/adapipe/adapipe/internal/metrics"
	"github.com/adapipe/adapipe/internal/pipeline"
	"github.com/adapipe/adapipe/internal/resource"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// defaultChannelDepth is the reader→worker queue's default depth (§4.3,
// and DESIGN.md's Open Question #3).
const defaultChannelDepth = 4

// defaultConcurrency bounds in-flight chunks for one file when Options
// doesn't set one.
const defaultConcurrency = 4

// Options configures one Run or Restore.
type Options struct {
	Concurrency  int  // per-file in-flight chunk bound; <= 0 => defaultConcurrency
	ChannelDepth int  // reader→worker queue depth; <= 0 => defaultChannelDepth
	Checksum     bool // whether to compute and store a per-chunk SHA-256 in the container
}

// Stats summarizes a completed Run or Restore.
type Stats struct {
	ChunksProcessed  uint64
	BytesProcessed   uint64
	OriginalChecksum string // SHA-256 hex of the original file
	Duration         time.Duration
}

// Run drives one file through reader, chain, and writer: the reader's
// chunks flow through a bounded queue into a pool of per-chunk
// goroutines bounded by a per-file semaphore, each acquiring a global CPU
// token before running the stage chain and releasing it before writing
// its result. The first worker error cancels every other worker via the
// shared errgroup context; the writer is then aborted and no partial
// output is left at its destination (§4.3's failure semantics).
func Run(ctx context.Context, reader chunker.Chunker, chain *pipeline.Chain, writer *container.Writer, tokens *resource.Manager, mp metrics.Port, opts Options) (Stats, error) {
	if mp == nil {
		mp = metrics.NoOp{}
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	depth := opts.ChannelDepth
	if depth <= 0 {
		depth = defaultChannelDepth
	}

	start := time.Now()
	queue := make(chan domain.FileChunk, depth)
	fileSem := semaphore.NewWeighted(int64(concurrency))
	hasher := sha256.New()

	group, groupCtx := errgroup.WithContext(ctx)

	// The reader is the only goroutine that touches hasher, and it reads
	// chunks in strict ascending sequence order, so no lock is needed to
	// keep the whole-file digest correct despite workers finishing out
	// of order downstream.
	group.Go(func() error {
		defer close(queue)
		for {
			chunk, ok, err := reader.Next(groupCtx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			hasher.Write(chunk.Payload)
			mp.GaugeSet("queue_depth", float64(len(queue)), nil)
			select {
			case queue <- chunk:
			case <-groupCtx.Done():
				return apperr.Wrap(apperr.Cancelled, "enqueue chunk cancelled", groupCtx.Err())
			}
		}
	})

	var chunksProcessed, bytesProcessed uint64
	var activeWorkers int64

	group.Go(func() error {
		for chunk := range queue {
			chunk := chunk
			if err := fileSem.Acquire(groupCtx, 1); err != nil {
				return nil // groupCtx is already cancelled; Wait() reports the real cause
			}
			group.Go(func() error {
				defer fileSem.Release(1)
				atomic.AddInt64(&activeWorkers, 1)
				mp.GaugeSet("active_workers", float64(atomic.LoadInt64(&activeWorkers)), nil)
				defer func() {
					atomic.AddInt64(&activeWorkers, -1)
					mp.GaugeSet("active_workers", float64(atomic.LoadInt64(&activeWorkers)), nil)
				}()

				reportResourceSnapshot(tokens, mp)
				if err := processChunk(groupCtx, chunk, chain, writer, tokens, mp, opts.Checksum); err != nil {
					return err
				}
				atomic.AddUint64(&chunksProcessed, 1)
				atomic.AddUint64(&bytesProcessed, uint64(chunk.Size()))
				return nil
			})
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		_ = writer.Abort()
		return Stats{}, err
	}

	return Stats{
		ChunksProcessed:  atomic.LoadUint64(&chunksProcessed),
		BytesProcessed:   atomic.LoadUint64(&bytesProcessed),
		OriginalChecksum: hex.EncodeToString(hasher.Sum(nil)),
		Duration:         time.Since(start),
	}, nil
}

func processChunk(ctx context.Context, chunk domain.FileChunk, chain *pipeline.Chain, writer *container.Writer, tokens *resource.Manager, mp metrics.Port, checksum bool) error {
	permit, err := tokens.AcquireCPU(ctx)
	if err != nil {
		return newRunError(chunk.Sequence, err)
	}
	out, err := chain.Forward(ctx, chunk)
	permit.Release()
	if err != nil {
		return newRunError(chunk.Sequence, err)
	}

	record := domain.ProcessedChunkRecord{
		Sequence:       out.Sequence,
		Payload:        out.Payload,
		OriginalOffset: chunk.Offset,
		OriginalSize:   uint64(chunk.Size()),
	}
	if checksum {
		sum := sha256.Sum256(out.Payload)
		record.Checksum = sum[:]
	}

	if err := writer.WriteChunk(ctx, record); err != nil {
		return newRunError(chunk.Sequence, err)
	}

	mp.CounterAdd("chunks_processed_total", 1, nil)
	mp.CounterAdd("bytes_processed_total", float64(chunk.Size()), nil)
	return nil
}

// Restore reassembles the original file at destPath from an open
// container: every frame's per-chunk checksum is already verified by
// container.Reader.Next as it's read, each frame's chunk is pushed
// through the chain in reverse (AEAD tamper detection surfaces here as
// Integrity, §8), and the destination file is only created once every
// chunk has passed its reverse transform — so a corrupt container never
// produces a partial output file (§8 scenario 4).
func Restore(ctx context.Context, r *container.Reader, chain *pipeline.Chain, destPath string, tokens *resource.Manager, mp metrics.Port, opts Options) (Stats, error) {
	if mp == nil {
		mp = metrics.NoOp{}
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	start := time.Now()

	type frame struct {
		sequence uint64
		payload  []byte
	}

	var frames []frame
	for {
		f, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Stats{}, newRunError(uint64(len(frames)), err)
		}
		frames = append(frames, frame{sequence: uint64(len(frames)), payload: f.Payload})
	}

	results := make([][]byte, len(frames))
	group, groupCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(concurrency))

	var chunksProcessed, bytesProcessed uint64
	var activeWorkers int64

	for _, fr := range frames {
		fr := fr
		if err := sem.Acquire(groupCtx, 1); err != nil {
			break
		}
		group.Go(func() error {
			defer sem.Release(1)
			atomic.AddInt64(&activeWorkers, 1)
			mp.GaugeSet("active_workers", float64(atomic.LoadInt64(&activeWorkers)), nil)
			defer func() {
				atomic.AddInt64(&activeWorkers, -1)
				mp.GaugeSet("active_workers", float64(atomic.LoadInt64(&activeWorkers)), nil)
			}()

			reportResourceSnapshot(tokens, mp)
			permit, err := tokens.AcquireCPU(groupCtx)
			if err != nil {
				return newRunError(fr.sequence, err)
			}
			chunk := domain.FileChunk{ID: domain.NewChunkID(), Sequence: fr.sequence, Payload: fr.payload}
			out, err := chain.Reverse(groupCtx, chunk)
			permit.Release()
			if err != nil {
				return newRunError(fr.sequence, err)
			}

			results[fr.sequence] = out.Payload
			atomic.AddUint64(&chunksProcessed, 1)
			atomic.AddUint64(&bytesProcessed, uint64(len(out.Payload)))
			mp.CounterAdd("chunks_restored_total", 1, nil)
			mp.CounterAdd("bytes_restored_total", float64(len(out.Payload)), nil)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return Stats{}, err
	}

	out, err := os.Create(destPath)
	if err != nil {
		return Stats{}, apperr.Wrap(apperr.Io, "create restore destination", err)
	}
	defer out.Close()

	hasher := sha256.New()
	for _, payload := range results {
		if _, err := out.Write(payload); err != nil {
			return Stats{}, apperr.Wrap(apperr.Io, "write restored bytes", err)
		}
		hasher.Write(payload)
	}

	return Stats{
		ChunksProcessed:  atomic.LoadUint64(&chunksProcessed),
		BytesProcessed:   atomic.LoadUint64(&bytesProcessed),
		OriginalChecksum: hex.EncodeToString(hasher.Sum(nil)),
		Duration:         time.Since(start),
	}, nil
}

// reportResourceSnapshot pushes the resource manager's current
// CPU/IO saturation to mp (§4.6). It is called from worker goroutines so
// the gauges track load as it actually happens, not on a separate timer.
func reportResourceSnapshot(tokens *resource.Manager, mp metrics.Port) {
	if tokens == nil {
		return
	}
	snap := tokens.Snapshot()
	mp.GaugeSet("cpu_saturation_pct", snap.CPUSaturationPct(), nil)
	mp.GaugeSet("io_saturation_pct", snap.IOSaturationPct(), nil)
}
