// Package client provides a transport-agnostic interface for the krecipes
// service and an HTTP/JSON implementation that talks to the REST API.
package client

import (
	"context"
	"io"

	"github.com/groblegark/krecipes/internal/model"
)

// RecipesClient is the interface that all kr CLI commands use to communicate
// with the recipes server. It is implemented by HTTPClient.
type RecipesClient interface {
	// Recipe CRUD
	CreateRecipe(ctx context.Context, req *CreateRecipeRequest) (*model.Recipe, error)
	GetRecipe(ctx context.Context, id string) (*model.Recipe, error)
	ListRecipes(ctx context.Context, req *ListRecipesRequest) (*ListRecipesResponse, error)
	DeleteRecipe(ctx context.Context, id, actor string) error
	GetRecipeGraph(ctx context.Context, id string) (*model.RecipeGraph, error)

	// Steps
	ListSteps(ctx context.Context, recipeID string) ([]*model.RecipeStep, error)
	GetStep(ctx context.Context, recipeID string, stepNum int) (*model.RecipeStep, error)
	AddStep(ctx context.Context, recipeID string, req *AddStepRequest) (*model.RecipeStep, error)
	UpdateStep(ctx context.Context, recipeID string, stepNum int, req *UpdateStepRequest) (*model.RecipeStep, error)
	DeleteStep(ctx context.Context, recipeID string, stepNum int, actor string) error
	MoveStep(ctx context.Context, recipeID string, stepNum, position int, actor string) ([]*model.RecipeStep, error)
	CheckMove(ctx context.Context, recipeID string, stepNum, position int) (*model.ValidationResult, error)

	// Uses output of
	GetUses(ctx context.Context, recipeID string, stepNum int) ([]model.StepOutputUse, error)
	GetUsedBy(ctx context.Context, recipeID string, stepNum int) ([]model.StepOutputUse, error)
	SetUses(ctx context.Context, recipeID string, stepNum int, outputStepNums []int, actor string) (int, error)

	// Events
	GetEvents(ctx context.Context, recipeID string) ([]*model.Event, error)
	StreamEvents(ctx context.Context, req *StreamEventsRequest, fn func(StreamEvent) error) error

	// Export writes the JSONL backup document to w.
	Export(ctx context.Context, w io.Writer) error

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateRecipeRequest holds parameters for creating a recipe.
type CreateRecipeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

// ListRecipesRequest holds parameters for listing recipes.
type ListRecipesRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ListRecipesResponse is the response from ListRecipes.
type ListRecipesResponse struct {
	Recipes []*model.Recipe `json:"recipes"`
	Total   int             `json:"total"`
}

// AddStepRequest holds parameters for appending a step.
type AddStepRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	UsesOutputOf []int  `json:"uses_output_of,omitempty"`
	Actor        string `json:"actor,omitempty"`
}

// UpdateStepRequest holds optional parameters for editing a step.
// Nil pointer fields mean "don't change". A non-nil UsesOutputOf replaces the
// whole set; point it at an empty slice to clear it.
type UpdateStepRequest struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	UsesOutputOf *[]int  `json:"uses_output_of,omitempty"`
	Actor        string  `json:"actor,omitempty"`
}

// StreamEventsRequest filters the live event stream.
type StreamEventsRequest struct {
	Topics      []string // NATS-style patterns; empty means all
	RecipeID    string
	LastEventID int64 // replay buffered events after this ID
}

// StreamEvent is one server-sent event.
type StreamEvent struct {
	ID    int64
	Topic string
	Data  []byte
}
