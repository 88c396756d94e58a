package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/groblegark/krecipes/internal/model"
)

// Source is the read side of the store that an export needs.
type Source interface {
	ListRecipes(ctx context.Context, limit, offset int) ([]*model.Recipe, int, error)
	GetRecipe(ctx context.Context, id string) (*model.Recipe, error)
	GetRecipeGraph(ctx context.Context, recipeID string) (*model.RecipeGraph, error)
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version     string    `json:"version"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	RecipeCount int       `json:"recipe_count"`
	StepCount   int       `json:"step_count"`
	EdgeCount   int       `json:"edge_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// recipeExport is a recipe with its steps and the full edge list.
type recipeExport struct {
	*model.Recipe
	Edges []*model.StepOutputUse `json:"edges"`
}

// ExportJSONL writes every recipe in s as JSONL to w. Recipes are sorted by
// ID and carry their steps in order plus their edges.
func ExportJSONL(ctx context.Context, s Source, w io.Writer) error {
	// No limit.
	listed, _, err := s.ListRecipes(ctx, 0, 0)
	if err != nil {
		return fmt.Errorf("list recipes: %w", err)
	}

	recipes := make([]recipeExport, 0, len(listed))
	var steps, edges int
	for _, r := range listed {
		full, err := s.GetRecipe(ctx, r.ID)
		if errors.Is(err, sql.ErrNoRows) {
			// Deleted since it was listed.
			continue
		}
		if err != nil {
			return fmt.Errorf("get recipe %s: %w", r.ID, err)
		}
		graph, err := s.GetRecipeGraph(ctx, r.ID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("get graph for %s: %w", r.ID, err)
		}
		recipes = append(recipes, recipeExport{Recipe: full, Edges: graph.Edges})
		steps += len(full.Steps)
		edges += len(graph.Edges)
	}

	sort.Slice(recipes, func(i, j int) bool {
		return recipes[i].ID < recipes[j].ID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:     "1",
		Type:        "header",
		Timestamp:   time.Now().UTC(),
		RecipeCount: len(recipes),
		StepCount:   steps,
		EdgeCount:   edges,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, r := range recipes {
		if r.Edges == nil {
			r.Edges = []*model.StepOutputUse{}
		}
		if err := enc.Encode(record{Type: "recipe", Data: r}); err != nil {
			return fmt.Errorf("encode recipe %s: %w", r.ID, err)
		}
	}

	return nil
}
