package domain

import (
	"fmt"
	"sort"
	"time"
)

// PipelineStage is an entity local to a Pipeline (§3.1).
type PipelineStage struct {
	ID                StageID
	Name              string
	Type              StageType
	Algorithm         AlgorithmTag
	Enabled           bool
	Order             int
	ParallelSafe      bool
	ChunkSizeOverride *ChunkSize
	Params            map[string]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Pipeline is the aggregate root of §3.1: a stable identifier, a unique
// name, a non-empty ordered sequence of Stages, opaque configuration, and
// lifecycle flags. It is constructed by NewPipeline (which enforces
// invariants) and mutated only through its intent methods.
type Pipeline struct {
	ID        PipelineID
	Name      string
	stages    []PipelineStage
	Config    map[string]string
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatorID string // optional
}

// NewPipeline constructs a Pipeline, enforcing: non-empty stages, 0-based
// contiguous order indices, and unique stage names.
func NewPipeline(name string, stages []PipelineStage, config map[string]string) (*Pipeline, error) {
	if name == "" {
		return nil, fmt.Errorf("pipeline name must not be empty")
	}
	if err := validateStages(stages); err != nil {
		return nil, err
	}
	now := time.Now()
	ordered := make([]PipelineStage, len(stages))
	copy(ordered, stages)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })
	return &Pipeline{
		ID:        NewPipelineID(),
		Name:      name,
		stages:    ordered,
		Config:    config,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func validateStages(stages []PipelineStage) error {
	if len(stages) == 0 {
		return fmt.Errorf("pipeline must have at least one stage")
	}
	seenNames := make(map[string]struct{}, len(stages))
	seenOrders := make(map[int]struct{}, len(stages))
	for _, s := range stages {
		if _, dup := seenNames[s.Name]; dup {
			return fmt.Errorf("duplicate stage name %q", s.Name)
		}
		seenNames[s.Name] = struct{}{}
		if _, dup := seenOrders[s.Order]; dup {
			return fmt.Errorf("duplicate stage order %d", s.Order)
		}
		seenOrders[s.Order] = struct{}{}
	}
	for i := 0; i < len(stages); i++ {
		if _, ok := seenOrders[i]; !ok {
			return fmt.Errorf("stage orders must be 0-based and contiguous, missing %d", i)
		}
	}
	return nil
}

// Stages returns the pipeline's stages in forward (declared) order.
func (p *Pipeline) Stages() []PipelineStage {
	out := make([]PipelineStage, len(p.stages))
	copy(out, p.stages)
	return out
}

// AddStage appends a stage, re-validating invariants; the new stage's
// Order must be the next contiguous index.
func (p *Pipeline) AddStage(stage PipelineStage) error {
	candidate := append(p.Stages(), stage)
	if err := validateStages(candidate); err != nil {
		return err
	}
	p.stages = candidate
	p.UpdatedAt = time.Now()
	return nil
}

// RemoveStage removes the stage with the given ID and re-indexes the
// remaining stages' Order to stay 0-based and contiguous.
func (p *Pipeline) RemoveStage(id StageID) error {
	out := make([]PipelineStage, 0, len(p.stages))
	for _, s := range p.stages {
		if s.ID != id {
			out = append(out, s)
		}
	}
	if len(out) == len(p.stages) {
		return fmt.Errorf("stage %s not found", id)
	}
	for i := range out {
		out[i].Order = i
	}
	if err := validateStages(out); err != nil {
		return err
	}
	p.stages = out
	p.UpdatedAt = time.Now()
	return nil
}

// ReorderStage moves the stage with the given ID to newOrder, shifting
// the others to keep a contiguous 0-based sequence.
func (p *Pipeline) ReorderStage(id StageID, newOrder int) error {
	if newOrder < 0 || newOrder >= len(p.stages) {
		return fmt.Errorf("new order %d out of range [0, %d)", newOrder, len(p.stages))
	}
	var moving PipelineStage
	rest := make([]PipelineStage, 0, len(p.stages)-1)
	found := false
	for _, s := range p.stages {
		if s.ID == id {
			moving = s
			found = true
			continue
		}
		rest = append(rest, s)
	}
	if !found {
		return fmt.Errorf("stage %s not found", id)
	}
	out := make([]PipelineStage, 0, len(p.stages))
	out = append(out, rest[:newOrder]...)
	out = append(out, moving)
	out = append(out, rest[newOrder:]...)
	for i := range out {
		out[i].Order = i
	}
	p.stages = out
	p.UpdatedAt = time.Now()
	return nil
}

// Archive marks the pipeline archived; it keeps its identity and history.
// Only the flag is set: pipeline.Build and the engine do not check it, so
// an archived pipeline can still be built and run.
func (p *Pipeline) Archive() {
	p.Archived = true
	p.UpdatedAt = time.Now()
}

// Restore un-archives the pipeline.
func (p *Pipeline) Restore() {
	p.Archived = false
	p.UpdatedAt = time.Now()
}
