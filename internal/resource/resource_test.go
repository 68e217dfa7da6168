package resource_test

import (
	"context"
	"testing"
	"time"

	"github.com/adapipe/adapipe/internal/apperr"
	"github.com/adapipe/adapipe/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseCPU(t *testing.T) {
	m := resource.New(resource.Config{CPUTokens: 1})

	permit, err := m.AcquireCPU(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, m.Snapshot().CPUInUse)

	permit.Release()
	assert.Equal(t, 0, m.Snapshot().CPUInUse)

	// Double release must not panic or double-free the slot.
	permit.Release()
	assert.Equal(t, 0, m.Snapshot().CPUInUse)
}

func TestAcquireBlocksUntilCapacity(t *testing.T) {
	m := resource.New(resource.Config{CPUTokens: 1})

	first, err := m.AcquireCPU(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = m.AcquireCPU(ctx)
	require.Error(t, err)
	assert.Equal(t, apperr.ResourceExhausted, apperr.KindOf(err))

	first.Release()
}

func TestAcquireIOStorageClassDefaults(t *testing.T) {
	nvme := resource.New(resource.Config{StorageClass: resource.StorageNVMe})
	assert.Equal(t, 24, nvme.Snapshot().IOCapacity)

	hdd := resource.New(resource.Config{StorageClass: resource.StorageHDD})
	assert.Equal(t, 4, hdd.Snapshot().IOCapacity)
}

func TestMemoryGaugeInformationalOnly(t *testing.T) {
	m := resource.New(resource.Config{CPUTokens: 1})

	m.RegisterMemory(1024)
	assert.EqualValues(t, 1024, m.Snapshot().MemoryInUse)

	m.DeregisterMemory(512)
	assert.EqualValues(t, 512, m.Snapshot().MemoryInUse)
}

func TestSaturationPct(t *testing.T) {
	m := resource.New(resource.Config{CPUTokens: 4})
	p1, _ := m.AcquireCPU(context.Background())
	p2, _ := m.AcquireCPU(context.Background())

	snap := m.Snapshot()
	assert.Equal(t, 50.0, snap.CPUSaturationPct())

	p1.Release()
	p2.Release()
}
