package domain_test

import (
	"testing"

	"github.com/adapipe/adapipe/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stage(name string, order int) domain.PipelineStage {
	return domain.PipelineStage{
		ID:           domain.NewStageID(),
		Name:         name,
		Type:         domain.StagePassThrough,
		Enabled:      true,
		Order:        order,
		ParallelSafe: true,
	}
}

func TestNewPipelineRejectsEmptyStages(t *testing.T) {
	_, err := domain.NewPipeline("p", nil, nil)
	require.Error(t, err)
}

func TestNewPipelineRejectsDuplicateNames(t *testing.T) {
	_, err := domain.NewPipeline("p", []domain.PipelineStage{
		stage("a", 0),
		stage("a", 1),
	}, nil)
	require.Error(t, err)
}

func TestNewPipelineRejectsNonContiguousOrder(t *testing.T) {
	_, err := domain.NewPipeline("p", []domain.PipelineStage{
		stage("a", 0),
		stage("b", 2),
	}, nil)
	require.Error(t, err)
}

func TestNewPipelineValid(t *testing.T) {
	p, err := domain.NewPipeline("p", []domain.PipelineStage{stage("a", 0), stage("b", 1)}, nil)
	require.NoError(t, err)
	assert.Len(t, p.Stages(), 2)
	assert.NotEmpty(t, p.ID.String())
}

func TestPipelineAddRemoveReorderStage(t *testing.T) {
	p, err := domain.NewPipeline("p", []domain.PipelineStage{stage("a", 0), stage("b", 1)}, nil)
	require.NoError(t, err)

	c := stage("c", 2)
	require.NoError(t, p.AddStage(c))
	assert.Len(t, p.Stages(), 3)

	require.NoError(t, p.ReorderStage(c.ID, 0))
	assert.Equal(t, "c", p.Stages()[0].Name)

	require.NoError(t, p.RemoveStage(c.ID))
	assert.Len(t, p.Stages(), 2)
	for i, s := range p.Stages() {
		assert.Equal(t, i, s.Order)
	}
}

func TestPipelineArchiveRestore(t *testing.T) {
	p, err := domain.NewPipeline("p", []domain.PipelineStage{stage("a", 0)}, nil)
	require.NoError(t, err)

	p.Archive()
	assert.True(t, p.Archived)
	p.Restore()
	assert.False(t, p.Archived)
}
