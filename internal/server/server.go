// Package server exposes recipes and their step dependency graph over HTTP
// and gRPC. Every mutation runs lock, validate, write inside one store
// transaction so concurrent edits to the same recipe serialise.
package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/groblegark/krecipes/internal/events"
	"github.com/groblegark/krecipes/internal/model"
	"github.com/groblegark/krecipes/internal/store"
)

// RecipesServer implements the recipe API on top of a store and an event publisher.
type RecipesServer struct {
	store     store.Store
	publisher events.Publisher
	sseHub    *sseHub
}

// NewRecipesServer returns a new RecipesServer backed by the given store and publisher.
func NewRecipesServer(s store.Store, p events.Publisher) *RecipesServer {
	return &RecipesServer{
		store:     s,
		publisher: p,
		sseHub:    newSSEHub(),
	}
}

// recordAndPublish persists an event to the store, publishes it to NATS and
// fans it out to SSE clients. All three are best-effort; failures are logged
// but do not block the caller.
func (s *RecipesServer) recordAndPublish(ctx context.Context, topic, recipeID, actor string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event", "topic", topic, "recipe_id", recipeID, "error", err)
		return
	}
	if err := s.store.RecordEvent(ctx, &model.Event{
		Topic:    topic,
		RecipeID: recipeID,
		Actor:    actor,
		Payload:  payload,
	}); err != nil {
		slog.Warn("failed to record event", "topic", topic, "recipe_id", recipeID, "error", err)
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "recipe_id", recipeID, "error", err)
	}
	s.sseHub.broadcast(topic, recipeID, payload)
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// referenceError carries a rejected "uses output of" reference. The message
// is shown to users verbatim. HTTP maps it to 422.
type referenceError string

func (e referenceError) Error() string { return string(e) }

// conflictError carries a delete or move that would break an existing
// dependency. The message is shown to users verbatim. HTTP maps it to 409.
type conflictError string

func (e conflictError) Error() string { return string(e) }
