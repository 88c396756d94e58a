package stepgraph

import (
	"context"
	"fmt"

	"github.com/groblegark/krecipes/internal/model"
)

// ValidateStepDeletion decides whether stepNum may be removed. A step that
// anything depends on can never be deleted, wherever it sits.
func ValidateStepDeletion(ctx context.Context, r EdgeReader, recipeID string, stepNum int) (model.ValidationResult, error) {
	uses, err := r.CheckStepUsage(ctx, recipeID, stepNum)
	if err != nil {
		return model.ValidationResult{}, fmt.Errorf("check usage of step %d: %w", stepNum, err)
	}
	if len(uses) == 0 {
		return model.Valid(), nil
	}

	dependents := make([]int, len(uses))
	for i, u := range uses {
		dependents[i] = u.InputStepNum
	}
	prefix := fmt.Sprintf("Cannot delete Step %d because it is used by", stepNum)
	return model.Invalid(FormatStepList(prefix, sortedUnique(dependents), "")), nil
}
