// cmd/adapipe/main.go
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adapipe/adapipe/internal/apperr"
	"github.com/adapipe/adapipe/internal/chunker"
	"github.com/adapipe/adapipe/internal/config"
	"github.com/adapipe/adapipe/internal/container"
	"github.com/adapipe/adapipe/internal/domain"
	"github.com/adapipe/adapipe/internal/engine"
	"github.com/adapipe/adapipe/internal/metrics"
	"github.com/adapipe/adapipe/internal/pipeline"
	"github.com/adapipe/adapipe/internal/resource"
	"github.com/adapipe/adapipe/internal/stage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// envKeyProvider resolves encryption keys from base64 values in the
// process environment, keyed by ADAPIPE_KEY_<stage name, uppercased>. The
// engine never derives or stores keys itself (§6.2); this is as far as
// the CLI goes toward "already-derived key material".
type envKeyProvider struct{}

func (envKeyProvider) KeyFor(stageName string) ([]byte, error) {
	envVar := "ADAPIPE_KEY_" + upper(stageName)
	raw := os.Getenv(envVar)
	if raw == "" {
		return nil, apperr.New(apperr.Validation, fmt.Sprintf("no key material in %s", envVar))
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "decode key material", err)
	}
	return key, nil
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	restore := flag.Bool("restore", false, "restore an .adapipe container back to its original file instead of creating one")
	inputPath := flag.String("in", "", "input file path (or source .adapipe container with -restore)")
	outputPath := flag.String("out", "", "destination .adapipe path (or restored file path with -restore)")
	presetName := flag.String("preset", "balanced", "pipeline preset: balanced, archive, passthrough")
	runConfigPath := flag.String("run-config", "", "path to a RunConfig YAML file (optional)")
	resourceConfigPath := flag.String("resource-config", "", "path to a ResourceConfig YAML file (optional)")
	flag.Parse()

	if *inputPath == "" || *outputPath == "" {
		logger.Fatal("both -in and -out are required")
	}

	runID := uuid.New().String()
	logger = logger.With(zap.String("run_id", runID))

	resourceCfg, err := config.LoadResourceConfig(*resourceConfigPath)
	if err != nil {
		logger.Fatal("load resource config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx = engine.WithRunID(ctx, runID)
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("signal received, cancelling run")
		cancel()
		time.AfterFunc(30*time.Second, func() {
			logger.Fatal("grace period exceeded, forcing exit")
		})
	}()
	defer cancel()

	tokens := resource.New(resourceCfg.ToResourceConfig())
	mp := metrics.NewPrometheus(nil)

	if *restore {
		runRestore(ctx, logger, *inputPath, *outputPath, tokens, mp)
		return
	}

	runCfg, err := config.LoadRunConfig(*runConfigPath)
	if err != nil {
		logger.Fatal("load run config", zap.Error(err))
	}

	chunkPolicy, err := runCfg.ChunkSizePolicy.ToDomain()
	if err != nil {
		logger.Fatal("invalid chunk size policy", zap.Error(err))
	}

	p, err := domain.BuildPreset(domain.Preset(*presetName))
	if err != nil {
		logger.Fatal("build preset", zap.Error(err))
	}

	chain, err := pipeline.Build(p, stage.BuildOptions{Keys: envKeyProvider{}})
	if err != nil {
		logger.Fatal("build stage chain", zap.Error(err))
	}

	info, err := os.Stat(*inputPath)
	if err != nil {
		logger.Fatal("stat input", zap.Error(err))
	}
	chunkSize, err := chunker.Plan(uint64(info.Size()), chunkPolicy)
	if err != nil {
		logger.Fatal("plan chunk size", zap.Error(err))
	}

	ch, err := chunker.Open(ctx, *inputPath, chunker.AlgorithmFixed, chunkPolicy, tokens)
	if err != nil {
		logger.Fatal("open input", zap.Error(err))
	}
	defer ch.Close()

	header := container.Header{
		ChunkSize:        chunkSize,
		PerChunkChecksum: runCfg.PerChunkChecksum,
		CreatedAt:        time.Now().UTC(),
	}
	if runCfg.PerChunkChecksum {
		header.ChecksumAlgo = runCfg.ChecksumAlgo
	}
	writer, err := container.Create(*outputPath, header)
	if err != nil {
		logger.Fatal("create container", zap.Error(err))
	}

	start := time.Now()
	stats, err := engine.Run(ctx, ch, chain, writer, tokens, mp, engine.Options{
		Concurrency:  runCfg.WorkerConcurrency,
		ChannelDepth: runCfg.ChannelDepth,
		Checksum:     runCfg.PerChunkChecksum,
	})
	if err != nil {
		logger.Fatal("run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
	}

	meta := domain.ContainerMetadata{
		OriginalFilename: info.Name(),
		OriginalSize:     uint64(info.Size()),
		OriginalChecksum: stats.OriginalChecksum,
		ChunkSize:        chunkSize,
		Stages:           chain.Descriptors(),
		Version:          domain.CurrentFormatVersion,
		CompletedAt:      time.Now().UTC(),
	}
	if err := writer.Finalize(meta); err != nil {
		logger.Fatal("finalize container", zap.Error(err))
	}

	logger.Info("run complete",
		zap.Uint64("chunks", stats.ChunksProcessed),
		zap.Uint64("bytes", stats.BytesProcessed),
		zap.Duration("duration", stats.Duration),
		zap.String("checksum", shortChecksum(stats.OriginalChecksum)),
	)
}

func shortChecksum(sum string) string {
	if len(sum) <= 12 {
		return sum
	}
	return sum[:12]
}

// runRestore opens an .adapipe container at inputPath, rebuilds its stage
// chain from the footer's recorded StageDescriptors, and reassembles the
// original file at outputPath. It never uses -preset: the container's own
// footer is the restoration plan (§4.4), not the caller's current guess at
// what produced it.
func runRestore(ctx context.Context, logger *zap.Logger, inputPath, outputPath string, tokens *resource.Manager, mp *metrics.Prometheus) {
	r, err := container.Open(inputPath)
	if err != nil {
		logger.Fatal("open container", zap.Error(err))
	}
	defer r.Close()

	chain, err := pipeline.BuildFromDescriptors(r.Footer.Stages, stage.BuildOptions{Keys: envKeyProvider{}})
	if err != nil {
		logger.Fatal("build restore chain", zap.Error(err))
	}

	start := time.Now()
	stats, err := engine.Restore(ctx, r, chain, outputPath, tokens, mp, engine.Options{})
	if err != nil {
		logger.Fatal("restore failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
	}

	if stats.OriginalChecksum != r.Footer.OriginalChecksum {
		logger.Fatal("restored file checksum does not match container footer",
			zap.String("got", shortChecksum(stats.OriginalChecksum)),
			zap.String("want", shortChecksum(r.Footer.OriginalChecksum)),
		)
	}

	logger.Info("restore complete",
		zap.Uint64("chunks", stats.ChunksProcessed),
		zap.Uint64("bytes", stats.BytesProcessed),
		zap.Duration("duration", stats.Duration),
		zap.String("checksum", shortChecksum(stats.OriginalChecksum)),
	)
}
