package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/groblegark/krecipes/internal/events"
	"github.com/groblegark/krecipes/internal/idgen"
	"github.com/groblegark/krecipes/internal/model"
)

// createRecipeInput holds transport-agnostic parameters for creating a recipe.
type createRecipeInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

// createRecipe validates input, persists a new recipe, and publishes a
// RecipeCreated event. Returns inputError for validation failures.
func (s *RecipesServer) createRecipe(ctx context.Context, in createRecipeInput) (*model.Recipe, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, inputError("title is required")
	}

	id, err := idgen.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}

	now := time.Now().UTC()
	recipe := &model.Recipe{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := model.ValidateRecipe(recipe); err != nil {
		return nil, inputError("invalid recipe: " + err.Error())
	}

	if err := s.store.CreateRecipe(ctx, recipe); err != nil {
		return nil, fmt.Errorf("failed to create recipe: %w", err)
	}

	s.recordAndPublish(ctx, events.TopicRecipeCreated, recipe.ID, recipe.CreatedBy, events.RecipeCreated{Recipe: recipe})
	return recipe, nil
}

// deleteRecipe removes a recipe together with its steps and edges.
func (s *RecipesServer) deleteRecipe(ctx context.Context, id, actor string) error {
	if err := s.store.DeleteRecipe(ctx, id); err != nil {
		return err
	}
	s.recordAndPublish(ctx, events.TopicRecipeDeleted, id, actor, events.RecipeDeleted{RecipeID: id})
	return nil
}
