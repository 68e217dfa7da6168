// Package config loads the process-level surface §6.2 says the engine
// consumes from its caller: a ResourceConfig describing the machine the
// process runs on, and a RunConfig describing how one pipeline run should
// be executed. Both are plain YAML-tagged structs; defaults are applied
// explicitly in Go rather than via a reflection-based tag library.
package config

import (
	"os"

	"github.com/adapipe/adapipe/internal/apperr"
	"github.com/adapipe/adapipe/internal/domain"
	"github.com/adapipe/adapipe/internal/resource"
	"gopkg.in/yaml.v3"
)

// ResourceConfig seeds the process-wide resource.Manager (§4.5). A nil
// pointer field means "let the resource manager pick its own default",
// matching resource.Config's own zero-value-means-default convention.
type ResourceConfig struct {
	CPUTokens    *int                  `yaml:"cpu_tokens,omitempty"`
	IOTokens     *int                  `yaml:"io_tokens,omitempty"`
	StorageClass resource.StorageClass `yaml:"storage_class,omitempty"`
	MemoryBudget *uint64               `yaml:"memory_budget,omitempty"`
}

// ToResourceConfig converts the loaded surface into resource.Config,
// collapsing the Option-shaped pointer fields into resource.Config's
// zero-value-means-default fields.
func (r ResourceConfig) ToResourceConfig() resource.Config {
	cfg := resource.Config{StorageClass: r.StorageClass}
	if r.CPUTokens != nil {
		cfg.CPUTokens = *r.CPUTokens
	}
	if r.IOTokens != nil {
		cfg.IOTokens = *r.IOTokens
	}
	if r.MemoryBudget != nil {
		cfg.MemoryBudget = *r.MemoryBudget
	}
	return cfg
}

// RunConfig describes how one pipeline run is carried out: worker pool
// shape, chunking policy, and whether the container records a per-chunk
// checksum (§6.1, §6.2).
type RunConfig struct {
	WorkerConcurrency int                 `yaml:"worker_concurrency" default:"4"`
	ChannelDepth      int                 `yaml:"channel_depth" default:"4"`
	ChunkSizePolicy   ChunkSizePolicyYAML `yaml:"chunk_size_policy"`
	PerChunkChecksum  bool                `yaml:"per_chunk_checksum" default:"false"`
	ChecksumAlgo      string              `yaml:"checksum_algo,omitempty" default:"sha-256"`
}

// ChunkSizePolicyYAML mirrors domain.ChunkSizePolicy in a form that reads
// naturally from YAML: {kind: fixed, fixed: 65536}, {kind: optimal}, or
// {kind: optimal_bounded, memory: ..., degree: ...}.
type ChunkSizePolicyYAML struct {
	Kind   domain.ChunkSizePolicyKind `yaml:"kind"`
	Fixed  uint64                     `yaml:"fixed,omitempty"`
	Memory uint64                     `yaml:"memory,omitempty"`
	Degree int                        `yaml:"degree,omitempty"`
}

// ToDomain converts the YAML-shaped policy into domain.ChunkSizePolicy,
// validating the Fixed size through domain.NewChunkSize when the policy
// kind requires one.
func (p ChunkSizePolicyYAML) ToDomain() (domain.ChunkSizePolicy, error) {
	policy := domain.ChunkSizePolicy{Kind: p.Kind, Memory: p.Memory, Degree: p.Degree}
	if p.Kind == domain.PolicyFixed {
		cs, err := domain.NewChunkSize(p.Fixed)
		if err != nil {
			return domain.ChunkSizePolicy{}, err
		}
		policy.Fixed = cs
	}
	return policy, nil
}

// DefaultRunConfig returns the RunConfig the engine runs with when the
// caller supplies none, matching the `default:"..."` tags above and the
// engine package's own internal fallbacks (§4.3).
func DefaultRunConfig() RunConfig {
	return RunConfig{
		WorkerConcurrency: 4,
		ChannelDepth:      4,
		ChunkSizePolicy:   ChunkSizePolicyYAML{Kind: domain.PolicyOptimal},
		PerChunkChecksum:  false,
		ChecksumAlgo:      "sha-256",
	}
}

// LoadRunConfig reads a RunConfig from a YAML file at path, filling any
// field the file omits with DefaultRunConfig's value, then applying the
// ADAPIPE_WORKER_COUNT environment override per §6.2 (the only
// environment variable the core itself recognizes; everything else flows
// through RunConfig).
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	if path != "" {
		loaded := DefaultRunConfig()
		body, err := os.ReadFile(path)
		if err != nil {
			return RunConfig{}, apperr.Wrap(apperr.Io, "read run config", err)
		}
		if err := yaml.Unmarshal(body, &loaded); err != nil {
			return RunConfig{}, apperr.Wrap(apperr.Validation, "parse run config YAML", err)
		}
		cfg = loaded
	}
	applyWorkerCountOverride(&cfg)
	return cfg, nil
}

// LoadResourceConfig reads a ResourceConfig from a YAML file at path. An
// empty path returns the zero value, which resource.New treats as "pick
// every default".
func LoadResourceConfig(path string) (ResourceConfig, error) {
	var cfg ResourceConfig
	if path == "" {
		return cfg, nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return ResourceConfig{}, apperr.Wrap(apperr.Io, "read resource config", err)
	}
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		return ResourceConfig{}, apperr.Wrap(apperr.Validation, "parse resource config YAML", err)
	}
	return cfg, nil
}
