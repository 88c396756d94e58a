package store

import (
	"context"

	"github.com/groblegark/krecipes/internal/model"
	"github.com/groblegark/krecipes/internal/stepgraph"
)

// Store defines the persistence interface for recipes, steps and the
// "uses output of" edges between steps.
type Store interface {
	// Dependency edges, as consumed by the stepgraph validators.
	stepgraph.EdgeStore

	// Recipe CRUD
	CreateRecipe(ctx context.Context, recipe *model.Recipe) error
	GetRecipe(ctx context.Context, id string) (*model.Recipe, error)
	ListRecipes(ctx context.Context, limit, offset int) ([]*model.Recipe, int, error) // returns recipes, total count, error
	DeleteRecipe(ctx context.Context, id string) error

	// LockRecipe blocks concurrent writers to the recipe until the enclosing
	// transaction ends. Outside a transaction it only checks existence.
	LockRecipe(ctx context.Context, id string) error

	// Steps
	ListSteps(ctx context.Context, recipeID string) ([]*model.RecipeStep, error)
	GetStep(ctx context.Context, recipeID string, stepNum int) (*model.RecipeStep, error)
	CountSteps(ctx context.Context, recipeID string) (int, error)
	AppendStep(ctx context.Context, step *model.RecipeStep) error // assigns StepNum
	UpdateStep(ctx context.Context, step *model.RecipeStep) error
	DeleteStep(ctx context.Context, recipeID string, stepNum int) error
	MoveStep(ctx context.Context, recipeID string, from, to int) error

	// Graph
	GetRecipeGraph(ctx context.Context, recipeID string) (*model.RecipeGraph, error)

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, recipeID string) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
