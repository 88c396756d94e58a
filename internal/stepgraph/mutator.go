package stepgraph

import (
	"context"
	"fmt"

	"github.com/groblegark/krecipes/internal/model"
)

// DeleteExistingStepOutputUses removes every edge where inputStepNum is the
// consumer. It is safe to call when there are none.
func DeleteExistingStepOutputUses(ctx context.Context, w EdgeWriter, recipeID string, inputStepNum int) (int, error) {
	n, err := w.DeleteExistingStepOutputUses(ctx, recipeID, inputStepNum)
	if err != nil {
		return 0, fmt.Errorf("delete output uses of step %d: %w", inputStepNum, err)
	}
	return n, nil
}

// CreateStepOutputUses inserts one edge per distinct output step number. An
// empty selection writes nothing and returns zero. References must already
// have passed ValidateStepReference.
func CreateStepOutputUses(ctx context.Context, w EdgeWriter, recipeID string, inputStepNum int, outputStepNums []int) (int, error) {
	outputs := sortedUnique(outputStepNums)
	if len(outputs) == 0 {
		return 0, nil
	}
	n, err := w.CreateStepOutputUses(ctx, recipeID, inputStepNum, outputs)
	if err != nil {
		return 0, fmt.Errorf("create output uses of step %d: %w", inputStepNum, err)
	}
	return n, nil
}

// ReplaceStepOutputUses swaps the full edge set of the consumer inputStepNum
// for outputStepNums. The selection is validated first; nothing is written
// when it is rejected. The delete and insert must share one transaction, so
// callers pass the transactional store.
func ReplaceStepOutputUses(ctx context.Context, s EdgeStore, recipeID string, inputStepNum int, outputStepNums []int) (model.ValidationResult, int, error) {
	if res := ValidateStepReferences(outputStepNums, inputStepNum); !res.Valid {
		return res, 0, nil
	}
	if _, err := DeleteExistingStepOutputUses(ctx, s, recipeID, inputStepNum); err != nil {
		return model.ValidationResult{}, 0, err
	}
	n, err := CreateStepOutputUses(ctx, s, recipeID, inputStepNum, outputStepNums)
	if err != nil {
		return model.ValidationResult{}, 0, err
	}
	return model.Valid(), n, nil
}
