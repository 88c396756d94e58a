package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/groblegark/krecipes/internal/model"
)

// recipeColumns is the column list used for SELECT statements on the recipes table.
const recipeColumns = `id, title, description, created_by, created_at, updated_at`

// stepColumns is the column list used for SELECT statements on the recipe_steps table.
const stepColumns = `recipe_id, step_num, title, description, created_at, updated_at`

// useColumns is the column list used for SELECT statements on the step_output_uses table.
const useColumns = `recipe_id, output_step_num, input_step_num, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCheckStepUsage(ctx context.Context, db executor, recipeID string, stepNum int) ([]model.StepOutputUse, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+useColumns+`
		FROM step_output_uses
		WHERE recipe_id = $1 AND output_step_num = $2
		ORDER BY input_step_num`,
		recipeID, stepNum,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStepOutputUses(rows)
}

func queryLoadStepDependencies(ctx context.Context, db executor, recipeID string, stepNum int) ([]model.StepOutputUse, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+useColumns+`
		FROM step_output_uses
		WHERE recipe_id = $1 AND input_step_num = $2
		ORDER BY output_step_num`,
		recipeID, stepNum,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStepOutputUses(rows)
}

func queryDeleteStepOutputUses(ctx context.Context, db executor, recipeID string, inputStepNum int) (int, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM step_output_uses
		WHERE recipe_id = $1 AND input_step_num = $2`,
		recipeID, inputStepNum,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// queryCreateStepOutputUses inserts every edge in one statement. The unique
// constraint is deferred, so ON CONFLICT cannot be used; callers de-duplicate.
func queryCreateStepOutputUses(ctx context.Context, db executor, recipeID string, inputStepNum int, outputStepNums []int) (int, error) {
	if len(outputStepNums) == 0 {
		return 0, nil
	}
	nums := make(pq.Int64Array, len(outputStepNums))
	for i, n := range outputStepNums {
		nums[i] = int64(n)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO step_output_uses (recipe_id, output_step_num, input_step_num)
		SELECT $1, o, $2 FROM unnest($3::int[]) AS o`,
		recipeID, inputStepNum, nums,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func queryCreateRecipe(ctx context.Context, db executor, r *model.Recipe) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO recipes (id, title, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.Title, r.Description, r.CreatedBy, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func queryGetRecipe(ctx context.Context, db executor, id string) (*model.Recipe, error) {
	row := db.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = $1`, id)
	r, err := scanRecipe(row)
	if err != nil {
		return nil, err
	}

	steps, err := queryListSteps(ctx, db, id)
	if err != nil {
		return nil, err
	}
	r.Steps = steps
	return r, nil
}

func queryListRecipes(ctx context.Context, db executor, limit, offset int) ([]*model.Recipe, int, error) {
	q := `SELECT COUNT(*) OVER() AS total_count, ` + recipeColumns + ` FROM recipes ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []*model.Recipe
	var total int
	for rows.Next() {
		r, t, err := scanRecipeWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan recipes: %w", err)
		}
		total = t
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan recipes: %w", err)
	}
	return recipes, total, nil
}

func queryDeleteRecipe(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM recipes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryLockRecipe(ctx context.Context, db executor, id string) error {
	var got string
	return db.QueryRowContext(ctx, `SELECT id FROM recipes WHERE id = $1 FOR UPDATE`, id).Scan(&got)
}

// queryListSteps returns the recipe's steps in order, each with its
// UsesOutputOf populated from a single edge query.
func queryListSteps(ctx context.Context, db executor, recipeID string) ([]*model.RecipeStep, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+stepColumns+`
		FROM recipe_steps
		WHERE recipe_id = $1
		ORDER BY step_num`,
		recipeID,
	)
	if err != nil {
		return nil, err
	}
	steps, err := scanSteps(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	uses, err := queryRecipeUses(ctx, db, recipeID)
	if err != nil {
		return nil, err
	}
	attachUses(steps, uses)
	return steps, nil
}

func queryRecipeUses(ctx context.Context, db executor, recipeID string) ([]model.StepOutputUse, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+useColumns+`
		FROM step_output_uses
		WHERE recipe_id = $1
		ORDER BY input_step_num, output_step_num`,
		recipeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStepOutputUses(rows)
}

func attachUses(steps []*model.RecipeStep, uses []model.StepOutputUse) {
	byNum := make(map[int]*model.RecipeStep, len(steps))
	for _, s := range steps {
		byNum[s.StepNum] = s
	}
	for _, u := range uses {
		if s, ok := byNum[u.InputStepNum]; ok {
			s.UsesOutputOf = append(s.UsesOutputOf, u.OutputStepNum)
		}
	}
}

func queryGetStep(ctx context.Context, db executor, recipeID string, stepNum int) (*model.RecipeStep, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+stepColumns+`
		FROM recipe_steps
		WHERE recipe_id = $1 AND step_num = $2`,
		recipeID, stepNum,
	)
	s, err := scanStep(row)
	if err != nil {
		return nil, err
	}

	deps, err := queryLoadStepDependencies(ctx, db, recipeID, stepNum)
	if err != nil {
		return nil, err
	}
	for _, d := range deps {
		s.UsesOutputOf = append(s.UsesOutputOf, d.OutputStepNum)
	}
	return s, nil
}

func queryCountSteps(ctx context.Context, db executor, recipeID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipe_steps WHERE recipe_id = $1`, recipeID).Scan(&n)
	return n, err
}

// queryAppendStep inserts the step at the end of the recipe and writes the
// assigned number back into step.StepNum. Callers hold the recipe lock.
func queryAppendStep(ctx context.Context, db executor, s *model.RecipeStep) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO recipe_steps (recipe_id, step_num, title, description, created_at, updated_at)
		SELECT $1, COALESCE(MAX(step_num), 0) + 1, $2, $3, $4, $5
		FROM recipe_steps WHERE recipe_id = $1
		RETURNING step_num`,
		s.RecipeID, s.Title, s.Description, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.StepNum)
}

func queryUpdateStep(ctx context.Context, db executor, s *model.RecipeStep) error {
	return db.QueryRowContext(ctx, `
		UPDATE recipe_steps SET
			title = $3,
			description = $4,
			updated_at = NOW()
		WHERE recipe_id = $1 AND step_num = $2
		RETURNING updated_at`,
		s.RecipeID, s.StepNum, s.Title, s.Description,
	).Scan(&s.UpdatedAt)
}

// queryDeleteStep removes the step and every edge touching it, then closes
// the gap so numbering stays contiguous. Must run inside a transaction.
func queryDeleteStep(ctx context.Context, db executor, recipeID string, stepNum int) error {
	res, err := db.ExecContext(ctx, `
		DELETE FROM recipe_steps WHERE recipe_id = $1 AND step_num = $2`,
		recipeID, stepNum,
	)
	if err != nil {
		return fmt.Errorf("delete step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	if _, err := db.ExecContext(ctx, `
		DELETE FROM step_output_uses
		WHERE recipe_id = $1 AND (input_step_num = $2 OR output_step_num = $2)`,
		recipeID, stepNum,
	); err != nil {
		return fmt.Errorf("delete step edges: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		UPDATE recipe_steps SET step_num = step_num - 1, updated_at = NOW()
		WHERE recipe_id = $1 AND step_num > $2`,
		recipeID, stepNum,
	); err != nil {
		return fmt.Errorf("renumber steps: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		UPDATE step_output_uses SET
			output_step_num = CASE WHEN output_step_num > $2 THEN output_step_num - 1 ELSE output_step_num END,
			input_step_num = input_step_num - 1
		WHERE recipe_id = $1 AND input_step_num > $2`,
		recipeID, stepNum,
	); err != nil {
		return fmt.Errorf("renumber step edges: %w", err)
	}
	return nil
}

// moveShift describes the renumbering caused by moving one step: the step at
// from lands on to, and every other step in [lo, hi] moves by delta.
type moveShift struct {
	from, to, lo, hi, delta int
}

func newMoveShift(from, to int) moveShift {
	if from < to {
		return moveShift{from: from, to: to, lo: from, hi: to, delta: -1}
	}
	return moveShift{from: from, to: to, lo: to, hi: from, delta: 1}
}

// apply maps a single step number through the move.
func (m moveShift) apply(n int) int {
	switch {
	case n == m.from:
		return m.to
	case n >= m.lo && n <= m.hi:
		return n + m.delta
	}
	return n
}

// renumberExpr is the SQL form of apply for the given column, using
// placeholders $2=from, $3=to, $4=delta, $5=lo, $6=hi.
func renumberExpr(col string) string {
	return "CASE WHEN " + col + " = $2 THEN $3::int " +
		"WHEN " + col + " BETWEEN $5 AND $6 THEN " + col + " + $4::int " +
		"ELSE " + col + " END"
}

// queryMoveStep renumbers steps and both edge endpoints as one batch. The
// caller validates the move first; the order CHECK constraint rejects
// anything that slips through. Must run inside a transaction.
func queryMoveStep(ctx context.Context, db executor, recipeID string, from, to int) error {
	if from == to {
		return nil
	}
	m := newMoveShift(from, to)
	args := []any{recipeID, m.from, m.to, m.delta, m.lo, m.hi}

	res, err := db.ExecContext(ctx, `
		UPDATE recipe_steps SET step_num = `+renumberExpr("step_num")+`, updated_at = NOW()
		WHERE recipe_id = $1 AND step_num BETWEEN $5 AND $6`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("renumber steps: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if want := int64(m.hi - m.lo + 1); n != want {
		return fmt.Errorf("move step %d to %d: %w", from, to, sql.ErrNoRows)
	}

	if _, err := db.ExecContext(ctx, `
		UPDATE step_output_uses SET
			output_step_num = `+renumberExpr("output_step_num")+`,
			input_step_num = `+renumberExpr("input_step_num")+`
		WHERE recipe_id = $1
			AND (output_step_num BETWEEN $5 AND $6 OR input_step_num BETWEEN $5 AND $6)`,
		args...,
	); err != nil {
		return fmt.Errorf("renumber step edges: %w", err)
	}
	return nil
}

func queryGetRecipeGraph(ctx context.Context, db executor, recipeID string) (*model.RecipeGraph, error) {
	steps, err := queryListSteps(ctx, db, recipeID)
	if err != nil {
		return nil, fmt.Errorf("graph: list steps: %w", err)
	}
	uses, err := queryRecipeUses(ctx, db, recipeID)
	if err != nil {
		return nil, fmt.Errorf("graph: fetch edges: %w", err)
	}

	g := &model.RecipeGraph{
		RecipeID: recipeID,
		Nodes:    steps,
		Edges:    make([]*model.StepOutputUse, len(uses)),
	}
	for i := range uses {
		g.Edges[i] = &uses[i]
	}
	if g.Nodes == nil {
		g.Nodes = []*model.RecipeStep{}
	}
	return g, nil
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, recipe_id, actor, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.Topic, e.RecipeID, e.Actor, jsonbBytes(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, recipeID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, recipe_id, actor, payload, created_at
		FROM events
		WHERE recipe_id = $1
		ORDER BY created_at ASC`,
		recipeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}
