package stepgraph

import (
	"fmt"

	"github.com/groblegark/krecipes/internal/model"
)

// ValidateStepReference checks that outputStepNum may be used by the step
// that is about to be numbered nextStepNum. A reference must name a positive
// step strictly before the consumer. Existing edges are not consulted.
func ValidateStepReference(outputStepNum, nextStepNum int) model.ValidationResult {
	if outputStepNum < 1 {
		return model.Invalid(fmt.Sprintf("Step %d is not a valid step number", outputStepNum))
	}
	if outputStepNum >= nextStepNum {
		return model.Invalid(fmt.Sprintf(
			"Step %d cannot use output from Step %d because it does not come before Step %d",
			nextStepNum, outputStepNum, nextStepNum))
	}
	return model.Valid()
}

// ValidateStepReferences runs ValidateStepReference over a whole selection in
// ascending order and returns the first failure.
func ValidateStepReferences(outputStepNums []int, nextStepNum int) model.ValidationResult {
	for _, n := range sortedUnique(outputStepNums) {
		if res := ValidateStepReference(n, nextStepNum); !res.Valid {
			return res
		}
	}
	return model.Valid()
}
