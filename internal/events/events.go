package events

import (
	"context"
	"encoding/json"

	"github.com/groblegark/krecipes/internal/model"
)

// Event topic constants
const (
	TopicRecipeCreated = "recipes.recipe.created"
	TopicRecipeDeleted = "recipes.recipe.deleted"

	TopicStepCreated      = "recipes.step.created"
	TopicStepUpdated      = "recipes.step.updated"
	TopicStepMoved        = "recipes.step.moved"
	TopicStepDeleted      = "recipes.step.deleted"
	TopicStepUsesReplaced = "recipes.step.uses.replaced"

	// TopicAll matches every recipe event.
	TopicAll = "recipes.>"
)

// Event types

type RecipeCreated struct {
	Recipe *model.Recipe `json:"recipe"`
}

type RecipeDeleted struct {
	RecipeID string `json:"recipe_id"`
}

type StepCreated struct {
	Step *model.RecipeStep `json:"step"`
}

type StepUpdated struct {
	Step    *model.RecipeStep `json:"step"`
	Changes map[string]any    `json:"changes"` // field name -> new value
}

// StepMoved records a single-step reorder. Every step between From and To
// shifted by one; consumers re-read the recipe for the new numbering.
type StepMoved struct {
	RecipeID string `json:"recipe_id"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}

type StepDeleted struct {
	RecipeID string `json:"recipe_id"`
	StepNum  int    `json:"step_num"`
}

type StepUsesReplaced struct {
	RecipeID       string `json:"recipe_id"`
	StepNum        int    `json:"step_num"`
	OutputStepNums []int  `json:"output_step_nums"`
	Removed        int    `json:"removed"`
	Created        int    `json:"created"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// RecipeIDOf extracts the recipe ID from any event payload above. It returns
// "" when the payload carries none.
func RecipeIDOf(data []byte) string {
	var probe struct {
		RecipeID string `json:"recipe_id"`
		Recipe   *struct {
			ID string `json:"id"`
		} `json:"recipe"`
		Step *struct {
			RecipeID string `json:"recipe_id"`
		} `json:"step"`
	}
	if json.Unmarshal(data, &probe) != nil {
		return ""
	}
	switch {
	case probe.RecipeID != "":
		return probe.RecipeID
	case probe.Recipe != nil:
		return probe.Recipe.ID
	case probe.Step != nil:
		return probe.Step.RecipeID
	}
	return ""
}
