package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/groblegark/krecipes/internal/model"
)

// scannable is satisfied by *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// collect scans every remaining row with scan.
func collect[T any](rows *sql.Rows, scan func(scannable) (T, error)) ([]T, error) {
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// recipeRow holds the nullable recipe columns while scanning. Column order
// follows recipeColumns.
type recipeRow struct {
	model.Recipe
	description sql.NullString
	createdBy   sql.NullString
}

func (rr *recipeRow) dest(leading ...any) []any {
	return append(leading, &rr.ID, &rr.Title, &rr.description, &rr.createdBy, &rr.CreatedAt, &rr.UpdatedAt)
}

func (rr *recipeRow) recipe() *model.Recipe {
	r := rr.Recipe
	r.Description = rr.description.String
	r.CreatedBy = rr.createdBy.String
	return &r
}

func scanRecipe(row scannable) (*model.Recipe, error) {
	var rr recipeRow
	if err := row.Scan(rr.dest()...); err != nil {
		return nil, err
	}
	return rr.recipe(), nil
}

// scanRecipeWithTotal reads the COUNT(*) OVER() column that queryListRecipes
// puts before the recipe columns.
func scanRecipeWithTotal(row scannable) (*model.Recipe, int, error) {
	var (
		rr    recipeRow
		total int
	)
	if err := row.Scan(rr.dest(&total)...); err != nil {
		return nil, 0, err
	}
	return rr.recipe(), total, nil
}

func scanStep(row scannable) (*model.RecipeStep, error) {
	var (
		s           model.RecipeStep
		description sql.NullString
	)
	if err := row.Scan(&s.RecipeID, &s.StepNum, &s.Title, &description, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Description = description.String
	return &s, nil
}

func scanSteps(rows *sql.Rows) ([]*model.RecipeStep, error) {
	return collect(rows, scanStep)
}

// scanStepOutputUses returns edges by value; they carry no nullable columns.
func scanStepOutputUses(rows *sql.Rows) ([]model.StepOutputUse, error) {
	return collect(rows, func(row scannable) (model.StepOutputUse, error) {
		var u model.StepOutputUse
		err := row.Scan(&u.RecipeID, &u.OutputStepNum, &u.InputStepNum, &u.CreatedAt)
		return u, err
	})
}

func scanEvent(row scannable) (*model.Event, error) {
	var (
		e       model.Event
		actor   sql.NullString
		payload []byte
	)
	if err := row.Scan(&e.ID, &e.Topic, &e.RecipeID, &actor, &payload, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	return collect(rows, scanEvent)
}

// jsonbBytes maps an empty payload to SQL NULL.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
