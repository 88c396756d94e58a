package sync

import (
	"context"
	"database/sql"
	"sort"

	"github.com/groblegark/krecipes/internal/model"
)

// mockSource is a minimal in-memory Source for sync tests.
type mockSource struct {
	recipes map[string]*model.Recipe
	edges   map[string][]*model.StepOutputUse
	err     error

	// ghosts are listed but no longer exist, as if deleted mid-export.
	ghosts []*model.Recipe
}

func newMockSource() *mockSource {
	return &mockSource{
		recipes: make(map[string]*model.Recipe),
		edges:   make(map[string][]*model.StepOutputUse),
	}
}

func (m *mockSource) ListRecipes(_ context.Context, limit, offset int) ([]*model.Recipe, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	var result []*model.Recipe
	for _, r := range m.recipes {
		result = append(result, r)
	}
	result = append(result, m.ghosts...)
	// Newest first, like the real store.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, len(result), nil
}

func (m *mockSource) GetRecipe(_ context.Context, id string) (*model.Recipe, error) {
	r, ok := m.recipes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return r, nil
}

func (m *mockSource) GetRecipeGraph(_ context.Context, recipeID string) (*model.RecipeGraph, error) {
	r, ok := m.recipes[recipeID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &model.RecipeGraph{RecipeID: recipeID, Nodes: r.Steps, Edges: m.edges[recipeID]}, nil
}
