package stepgraph

import (
	"context"
	"fmt"

	"github.com/groblegark/krecipes/internal/model"
)

// ValidateStepReorder checks the steps that consume currentStepNum's output.
// Only forward moves can break them: a dependent at or before newPosition
// would no longer come after its producer.
func ValidateStepReorder(ctx context.Context, r EdgeReader, recipeID string, currentStepNum, newPosition int) (model.ValidationResult, error) {
	if newPosition <= currentStepNum {
		return model.Valid(), nil
	}

	uses, err := r.CheckStepUsage(ctx, recipeID, currentStepNum)
	if err != nil {
		return model.ValidationResult{}, fmt.Errorf("check usage of step %d: %w", currentStepNum, err)
	}

	var blocking []int
	for _, u := range uses {
		if u.InputStepNum <= newPosition {
			blocking = append(blocking, u.InputStepNum)
		}
	}
	if len(blocking) == 0 {
		return model.Valid(), nil
	}

	blocking = sortedUnique(blocking)
	verb := " uses its output"
	if len(blocking) > 1 {
		verb = " use its output"
	}
	prefix := fmt.Sprintf("Cannot move Step %d to position %d because", currentStepNum, newPosition)
	return model.Invalid(FormatStepList(prefix, blocking, verb)), nil
}

// ValidateStepReorderOutgoing checks the steps currentStepNum itself consumes.
// Only backward moves can break them: a producer at or after newPosition
// would no longer come before its consumer.
func ValidateStepReorderOutgoing(ctx context.Context, r EdgeReader, recipeID string, currentStepNum, newPosition int) (model.ValidationResult, error) {
	if newPosition >= currentStepNum {
		return model.Valid(), nil
	}

	deps, err := r.LoadStepDependencies(ctx, recipeID, currentStepNum)
	if err != nil {
		return model.ValidationResult{}, fmt.Errorf("load dependencies of step %d: %w", currentStepNum, err)
	}

	var blocking []int
	for _, d := range deps {
		if d.OutputStepNum >= newPosition {
			blocking = append(blocking, d.OutputStepNum)
		}
	}
	if len(blocking) == 0 {
		return model.Valid(), nil
	}

	prefix := fmt.Sprintf("Cannot move Step %d to position %d because it uses output from", currentStepNum, newPosition)
	return model.Invalid(FormatStepList(prefix, sortedUnique(blocking), "")), nil
}

// ValidateStepMove runs both reorder checks and returns the first failure,
// incoming relationships first. A single move is never both forward and
// backward, so at most one of the checks queries the store.
func ValidateStepMove(ctx context.Context, r EdgeReader, recipeID string, currentStepNum, newPosition int) (model.ValidationResult, error) {
	res, err := ValidateStepReorder(ctx, r, recipeID, currentStepNum, newPosition)
	if err != nil || !res.Valid {
		return res, err
	}
	return ValidateStepReorderOutgoing(ctx, r, recipeID, currentStepNum, newPosition)
}
