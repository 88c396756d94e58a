package model

import "time"

// Recipe owns an ordered collection of steps.
type Recipe struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relational data -- populated by queries, not stored in the recipes table.
	Steps []*RecipeStep `json:"steps,omitempty"`
}

// RecipeStep is a numbered unit within a recipe. StepNum is 1-based and
// contiguous within the recipe.
type RecipeStep struct {
	RecipeID    string    `json:"recipe_id"`
	StepNum     int       `json:"step_num"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// UsesOutputOf lists the step numbers this step consumes, ascending.
	UsesOutputOf []int `json:"uses_output_of,omitempty"`
}

// StepOutputUse is a "uses output of" edge: the step at InputStepNum consumes
// output produced by the step at OutputStepNum. OutputStepNum is always
// strictly less than InputStepNum.
type StepOutputUse struct {
	RecipeID      string    `json:"recipe_id"`
	OutputStepNum int       `json:"output_step_num"`
	InputStepNum  int       `json:"input_step_num"`
	CreatedAt     time.Time `json:"created_at"`
}

// RecipeGraph is the full step/edge view of one recipe.
type RecipeGraph struct {
	RecipeID string           `json:"recipe_id"`
	Nodes    []*RecipeStep    `json:"nodes"`
	Edges    []*StepOutputUse `json:"edges"`
}
