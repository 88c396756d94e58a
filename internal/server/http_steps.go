package server

import (
	"encoding/json"
	"net/http"

	"github.com/groblegark/krecipes/internal/model"
)

// handleListSteps handles GET /v1/recipes/{id}/steps.
func (s *RecipesServer) handleListSteps(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.LockRecipe(r.Context(), id); err != nil {
		writeOpError(w, err, "recipe not found", "failed to list steps")
		return
	}

	steps, err := s.store.ListSteps(r.Context(), id)
	if err != nil {
		writeOpError(w, err, "recipe not found", "failed to list steps")
		return
	}
	if steps == nil {
		steps = []*model.RecipeStep{}
	}
	writeJSON(w, http.StatusOK, steps)
}

// handleCreateStep handles POST /v1/recipes/{id}/steps.
func (s *RecipesServer) handleCreateStep(w http.ResponseWriter, r *http.Request) {
	var in createStepInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	step, err := s.appendStep(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeOpError(w, err, "recipe not found", "failed to create step")
		return
	}
	writeJSON(w, http.StatusCreated, step)
}

// handleGetStep handles GET /v1/recipes/{id}/steps/{num}.
func (s *RecipesServer) handleGetStep(w http.ResponseWriter, r *http.Request) {
	num, err := pathStepNum(r)
	if err != nil {
		writeOpError(w, err, "", "")
		return
	}

	step, err := s.store.GetStep(r.Context(), r.PathValue("id"), num)
	if err != nil {
		writeOpError(w, err, "step not found", "failed to get step")
		return
	}
	writeJSON(w, http.StatusOK, step)
}

// handleUpdateStep handles PATCH /v1/recipes/{id}/steps/{num}.
func (s *RecipesServer) handleUpdateStep(w http.ResponseWriter, r *http.Request) {
	num, err := pathStepNum(r)
	if err != nil {
		writeOpError(w, err, "", "")
		return
	}

	var in updateStepInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	step, err := s.updateStep(r.Context(), r.PathValue("id"), num, in)
	if err != nil {
		writeOpError(w, err, "step not found", "failed to update step")
		return
	}
	writeJSON(w, http.StatusOK, step)
}

// handleDeleteStep handles DELETE /v1/recipes/{id}/steps/{num}.
func (s *RecipesServer) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	num, err := pathStepNum(r)
	if err != nil {
		writeOpError(w, err, "", "")
		return
	}

	if err := s.deleteStep(r.Context(), r.PathValue("id"), num, r.URL.Query().Get("actor")); err != nil {
		writeOpError(w, err, "step not found", "failed to delete step")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// moveRequest is the body of the move and move/check routes.
type moveRequest struct {
	Position int    `json:"position"`
	Actor    string `json:"actor"`
}

// handleMoveStep handles POST /v1/recipes/{id}/steps/{num}/move.
func (s *RecipesServer) handleMoveStep(w http.ResponseWriter, r *http.Request) {
	num, err := pathStepNum(r)
	if err != nil {
		writeOpError(w, err, "", "")
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	steps, err := s.moveStep(r.Context(), r.PathValue("id"), num, req.Position, req.Actor)
	if err != nil {
		writeOpError(w, err, "step not found", "failed to move step")
		return
	}
	writeJSON(w, http.StatusOK, steps)
}

// handleCheckMove handles POST /v1/recipes/{id}/steps/{num}/move/check.
// A rejected move is a normal 200 response carrying the ValidationResult.
func (s *RecipesServer) handleCheckMove(w http.ResponseWriter, r *http.Request) {
	num, err := pathStepNum(r)
	if err != nil {
		writeOpError(w, err, "", "")
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.checkMove(r.Context(), r.PathValue("id"), num, req.Position)
	if err != nil {
		writeOpError(w, err, "step not found", "failed to check move")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGetUses handles GET /v1/recipes/{id}/steps/{num}/uses.
func (s *RecipesServer) handleGetUses(w http.ResponseWriter, r *http.Request) {
	num, err := pathStepNum(r)
	if err != nil {
		writeOpError(w, err, "", "")
		return
	}

	uses, err := s.store.LoadStepDependencies(r.Context(), r.PathValue("id"), num)
	if err != nil {
		writeOpError(w, err, "step not found", "failed to get step dependencies")
		return
	}
	if uses == nil {
		uses = []model.StepOutputUse{}
	}
	writeJSON(w, http.StatusOK, uses)
}

// replaceUsesRequest is the body of PUT .../uses.
type replaceUsesRequest struct {
	OutputStepNums []int  `json:"output_step_nums"`
	Actor          string `json:"actor"`
}

// handleReplaceUses handles PUT /v1/recipes/{id}/steps/{num}/uses.
func (s *RecipesServer) handleReplaceUses(w http.ResponseWriter, r *http.Request) {
	num, err := pathStepNum(r)
	if err != nil {
		writeOpError(w, err, "", "")
		return
	}

	var req replaceUsesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	n, err := s.replaceUses(r.Context(), r.PathValue("id"), num, req.OutputStepNums, req.Actor)
	if err != nil {
		writeOpError(w, err, "step not found", "failed to replace step dependencies")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// handleGetUsedBy handles GET /v1/recipes/{id}/steps/{num}/used-by.
func (s *RecipesServer) handleGetUsedBy(w http.ResponseWriter, r *http.Request) {
	num, err := pathStepNum(r)
	if err != nil {
		writeOpError(w, err, "", "")
		return
	}

	uses, err := s.store.CheckStepUsage(r.Context(), r.PathValue("id"), num)
	if err != nil {
		writeOpError(w, err, "step not found", "failed to get step usage")
		return
	}
	if uses == nil {
		uses = []model.StepOutputUse{}
	}
	writeJSON(w, http.StatusOK, uses)
}
