// Package stepgraph enforces the "uses output of" relationship between the
// numbered steps of a recipe.
//
// Every edge points from a consumer step to a strictly earlier producer step
// (output_step_num < input_step_num). The validators here decide whether a
// proposed create, edit, move or delete keeps that true; they only read edges
// and never write. Failed checks are reported as model.ValidationResult values
// whose Error is meant to be shown to the user verbatim. Errors returned
// alongside a result are storage faults from the EdgeReader and are passed
// through untouched apart from wrapping.
//
// Because edges only ever point backwards, no cycle can form while the
// ordering is enforced, so there is no cycle detection here.
package stepgraph

import (
	"context"

	"github.com/groblegark/krecipes/internal/model"
)

// EdgeReader is the read side of the dependency edge store.
type EdgeReader interface {
	// CheckStepUsage returns the edges whose producer is stepNum (its dependents).
	CheckStepUsage(ctx context.Context, recipeID string, stepNum int) ([]model.StepOutputUse, error)
	// LoadStepDependencies returns the edges whose consumer is stepNum.
	LoadStepDependencies(ctx context.Context, recipeID string, stepNum int) ([]model.StepOutputUse, error)
}

// EdgeWriter is the write side of the dependency edge store.
type EdgeWriter interface {
	// DeleteExistingStepOutputUses removes every edge whose consumer is inputStepNum.
	DeleteExistingStepOutputUses(ctx context.Context, recipeID string, inputStepNum int) (int, error)
	// CreateStepOutputUses inserts one edge per output step number.
	CreateStepOutputUses(ctx context.Context, recipeID string, inputStepNum int, outputStepNums []int) (int, error)
}

// EdgeStore combines both sides.
type EdgeStore interface {
	EdgeReader
	EdgeWriter
}
