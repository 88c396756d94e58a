package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/groblegark/krecipes/internal/model"
	recipesync "github.com/groblegark/krecipes/internal/sync"
)

// handleCreateRecipe handles POST /v1/recipes.
func (s *RecipesServer) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	var in createRecipeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	recipe, err := s.createRecipe(r.Context(), in)
	if err != nil {
		writeOpError(w, err, "recipe not found", "failed to create recipe")
		return
	}

	writeJSON(w, http.StatusCreated, recipe)
}

// handleListRecipes handles GET /v1/recipes.
func (s *RecipesServer) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var limit, offset int
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	recipes, total, err := s.store.ListRecipes(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list recipes")
		return
	}

	// Ensure recipes is never null in JSON output.
	if recipes == nil {
		recipes = []*model.Recipe{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"recipes": recipes,
		"total":   total,
	})
}

// handleGetRecipe handles GET /v1/recipes/{id}.
func (s *RecipesServer) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	recipe, err := s.store.GetRecipe(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOpError(w, err, "recipe not found", "failed to get recipe")
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// handleDeleteRecipe handles DELETE /v1/recipes/{id}.
func (s *RecipesServer) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := s.deleteRecipe(r.Context(), r.PathValue("id"), r.URL.Query().Get("actor")); err != nil {
		writeOpError(w, err, "recipe not found", "failed to delete recipe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetRecipeGraph handles GET /v1/recipes/{id}/graph.
func (s *RecipesServer) handleGetRecipeGraph(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// The graph query returns an empty graph for unknown IDs; confirm the
	// recipe exists so callers get a 404 instead.
	if err := s.store.LockRecipe(r.Context(), id); err != nil {
		writeOpError(w, err, "recipe not found", "failed to get graph")
		return
	}

	graph, err := s.store.GetRecipeGraph(r.Context(), id)
	if err != nil {
		writeOpError(w, err, "recipe not found", "failed to get graph")
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

// handleGetEvents handles GET /v1/recipes/{id}/events.
func (s *RecipesServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	evts, err := s.store.GetEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get events")
		return
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, evts)
}

// handleExport handles GET /v1/export. The body is the same JSONL document
// the sync scheduler uploads.
func (s *RecipesServer) handleExport(w http.ResponseWriter, r *http.Request) {
	// Buffer so a mid-export failure can still be reported as a 500.
	var buf bytes.Buffer
	if err := recipesync.ExportJSONL(r.Context(), s.store, &buf); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export recipes")
		slog.Error("export failed", "error", err)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
