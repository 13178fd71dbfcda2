package pipeline

import (
	"production-service/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeOutputReworkableRecoversUnits(t *testing.T) {
	entries := []model.DefectEntry{
		{Quantity: 10, QuantityRework: 4, Reworkable: true},
	}
	assert.Equal(t, 94, ComputeOutput(100, entries))
}

func TestComputeOutputNonReworkableLosesFullQuantity(t *testing.T) {
	entries := []model.DefectEntry{
		{Quantity: 10, QuantityRework: 4, Reworkable: false},
	}
	assert.Equal(t, 90, ComputeOutput(100, entries))
}

func TestComputeOutputReplacementsRestoreCount(t *testing.T) {
	entries := []model.DefectEntry{
		{Quantity: 10, QuantityRework: 4, Reworkable: true, QuantityReplacement: 3},
	}
	assert.Equal(t, 97, ComputeOutput(100, entries))
}

func TestComputeOutputSumsAcrossEntries(t *testing.T) {
	// Losses 6 + 5 + 2 with one replacement added back.
	entries := []model.DefectEntry{
		{Quantity: 10, QuantityRework: 4, Reworkable: true},
		{Quantity: 5, Reworkable: false},
		{Quantity: 2, Reworkable: true, QuantityReplacement: 1},
	}
	assert.Equal(t, 88, ComputeOutput(100, entries))
}

func TestComputeOutputClampsAtZero(t *testing.T) {
	entries := []model.DefectEntry{
		{Quantity: 150, Reworkable: false},
	}
	assert.Equal(t, 0, ComputeOutput(100, entries))
}

func TestComputeOutputNoDefects(t *testing.T) {
	assert.Equal(t, 100, ComputeOutput(100, nil))
	assert.Equal(t, 0, ComputeOutput(0, nil))
}

func TestComputeOutputDeterministic(t *testing.T) {
	entries := []model.DefectEntry{
		{Quantity: 7, QuantityRework: 2, Reworkable: true},
		{Quantity: 3, Reworkable: false},
	}
	first := ComputeOutput(50, entries)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ComputeOutput(50, entries))
	}
}
