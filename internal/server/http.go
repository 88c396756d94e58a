package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *RecipesServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("POST /v1/recipes", s.handleCreateRecipe)
	mux.HandleFunc("GET /v1/recipes", s.handleListRecipes)
	mux.HandleFunc("GET /v1/recipes/{id}", s.handleGetRecipe)
	mux.HandleFunc("DELETE /v1/recipes/{id}", s.handleDeleteRecipe)
	mux.HandleFunc("GET /v1/recipes/{id}/graph", s.handleGetRecipeGraph)
	mux.HandleFunc("GET /v1/recipes/{id}/events", s.handleGetEvents)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/export", s.handleExport)
	mux.HandleFunc("GET /v1/recipes/{id}/steps", s.handleListSteps)
	mux.HandleFunc("POST /v1/recipes/{id}/steps", s.handleCreateStep)
	mux.HandleFunc("GET /v1/recipes/{id}/steps/{num}", s.handleGetStep)
	mux.HandleFunc("PATCH /v1/recipes/{id}/steps/{num}", s.handleUpdateStep)
	mux.HandleFunc("DELETE /v1/recipes/{id}/steps/{num}", s.handleDeleteStep)
	mux.HandleFunc("POST /v1/recipes/{id}/steps/{num}/move", s.handleMoveStep)
	mux.HandleFunc("POST /v1/recipes/{id}/steps/{num}/move/check", s.handleCheckMove)
	mux.HandleFunc("GET /v1/recipes/{id}/steps/{num}/uses", s.handleGetUses)
	mux.HandleFunc("PUT /v1/recipes/{id}/steps/{num}/uses", s.handleReplaceUses)
	mux.HandleFunc("GET /v1/recipes/{id}/steps/{num}/used-by", s.handleGetUsedBy)
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *RecipesServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathStepNum parses the {num} path segment.
func pathStepNum(r *http.Request) (int, error) {
	n, err := strconv.Atoi(r.PathValue("num"))
	if err != nil {
		return 0, inputError("invalid step number " + strconv.Quote(r.PathValue("num")))
	}
	return n, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeOpError maps an operation error to its HTTP status. Dependency
// messages pass through verbatim; storage faults are logged and reported as
// failMsg without detail.
func writeOpError(w http.ResponseWriter, err error, notFoundMsg, failMsg string) {
	var (
		ie inputError
		re referenceError
		ce conflictError
	)
	switch {
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Error())
	case errors.As(err, &re):
		writeError(w, http.StatusUnprocessableEntity, re.Error())
	case errors.As(err, &ce):
		writeError(w, http.StatusConflict, ce.Error())
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, notFoundMsg)
	default:
		slog.Error(failMsg, "error", err)
		writeError(w, http.StatusInternalServerError, failMsg)
	}
}
