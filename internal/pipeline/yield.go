package pipeline

import "production-service/internal/model"

// ComputeOutput computes an operation's output quantity from its input and
// its recorded defects. Reworked units are recovered, replacements are added
// back, and the result is clamped at zero. Pure function.
func ComputeOutput(inputQuantity int, entries []model.DefectEntry) int {
	totalEffectiveDefects := 0
	totalReplacements := 0
	for i := range entries {
		totalEffectiveDefects += entries[i].EffectiveLoss()
		totalReplacements += entries[i].QuantityReplacement
	}

	output := inputQuantity - totalEffectiveDefects + totalReplacements
	if output < 0 {
		return 0
	}
	return output
}
