package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/groblegark/krecipes/internal/events"
	"github.com/groblegark/krecipes/internal/model"
	"github.com/groblegark/krecipes/internal/stepgraph"
	"github.com/groblegark/krecipes/internal/store"
)

// createStepInput holds transport-agnostic parameters for appending a step.
type createStepInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	UsesOutputOf []int  `json:"uses_output_of"`
	Actor        string `json:"actor"`
}

// updateStepInput holds a partial step edit. Nil fields are left unchanged;
// a non-nil UsesOutputOf replaces the whole edge set, so an empty list
// clears it.
type updateStepInput struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	UsesOutputOf *[]int  `json:"uses_output_of"`
	Actor        string  `json:"actor"`
}

// lockRecipe takes the per-recipe write lock inside tx. A missing recipe is
// reported as sql.ErrNoRows so handlers answer 404.
func lockRecipe(ctx context.Context, tx store.Store, recipeID string) error {
	if err := tx.LockRecipe(ctx, recipeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock recipe: %w", err)
	}
	return nil
}

// appendStep adds a step at the end of the recipe. Its references are checked
// against the number the step is about to receive.
func (s *RecipesServer) appendStep(ctx context.Context, recipeID string, in createStepInput) (*model.RecipeStep, error) {
	now := time.Now().UTC()
	step := &model.RecipeStep{
		RecipeID:    recipeID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := lockRecipe(ctx, tx, recipeID); err != nil {
			return err
		}
		count, err := tx.CountSteps(ctx, recipeID)
		if err != nil {
			return fmt.Errorf("count steps: %w", err)
		}

		step.StepNum = count + 1
		if err := model.ValidateStep(step); err != nil {
			return inputError("invalid step: " + err.Error())
		}
		if res := stepgraph.ValidateStepReferences(in.UsesOutputOf, step.StepNum); !res.Valid {
			return referenceError(res.Error)
		}

		if err := tx.AppendStep(ctx, step); err != nil {
			return fmt.Errorf("failed to create step: %w", err)
		}
		if _, err := stepgraph.CreateStepOutputUses(ctx, tx, recipeID, step.StepNum, in.UsesOutputOf); err != nil {
			return err
		}

		created, err := tx.GetStep(ctx, recipeID, step.StepNum)
		if err != nil {
			return fmt.Errorf("reload step: %w", err)
		}
		step = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicStepCreated, recipeID, in.Actor, events.StepCreated{Step: step})
	return step, nil
}

// updateStep edits a step's text and, when requested, replaces the steps it
// uses output from.
func (s *RecipesServer) updateStep(ctx context.Context, recipeID string, stepNum int, in updateStepInput) (*model.RecipeStep, error) {
	changes := make(map[string]any)
	var replaced *events.StepUsesReplaced

	var step *model.RecipeStep
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := lockRecipe(ctx, tx, recipeID); err != nil {
			return err
		}
		existing, err := tx.GetStep(ctx, recipeID, stepNum)
		if err != nil {
			return err
		}

		if in.Title != nil {
			existing.Title = strings.TrimSpace(*in.Title)
			changes["title"] = existing.Title
		}
		if in.Description != nil {
			existing.Description = *in.Description
			changes["description"] = existing.Description
		}
		if len(changes) > 0 {
			if err := model.ValidateStep(existing); err != nil {
				return inputError("invalid step: " + err.Error())
			}
			if err := tx.UpdateStep(ctx, existing); err != nil {
				return fmt.Errorf("failed to update step: %w", err)
			}
		}

		if in.UsesOutputOf != nil {
			removed := len(existing.UsesOutputOf)
			res, n, err := stepgraph.ReplaceStepOutputUses(ctx, tx, recipeID, stepNum, *in.UsesOutputOf)
			if err != nil {
				return err
			}
			if !res.Valid {
				return referenceError(res.Error)
			}
			changes["uses_output_of"] = *in.UsesOutputOf
			replaced = &events.StepUsesReplaced{
				RecipeID:       recipeID,
				StepNum:        stepNum,
				OutputStepNums: *in.UsesOutputOf,
				Removed:        removed,
				Created:        n,
			}
		}

		step, err = tx.GetStep(ctx, recipeID, stepNum)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(changes) > 0 {
		s.recordAndPublish(ctx, events.TopicStepUpdated, recipeID, in.Actor, events.StepUpdated{Step: step, Changes: changes})
	}
	if replaced != nil {
		s.recordAndPublish(ctx, events.TopicStepUsesReplaced, recipeID, in.Actor, *replaced)
	}
	return step, nil
}

// deleteStep removes a step that no other step uses. Later steps and their
// edges are renumbered to close the gap.
func (s *RecipesServer) deleteStep(ctx context.Context, recipeID string, stepNum int, actor string) error {
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := lockRecipe(ctx, tx, recipeID); err != nil {
			return err
		}
		res, err := stepgraph.ValidateStepDeletion(ctx, tx, recipeID, stepNum)
		if err != nil {
			return err
		}
		if !res.Valid {
			return conflictError(res.Error)
		}
		return tx.DeleteStep(ctx, recipeID, stepNum)
	})
	if err != nil {
		return err
	}

	s.recordAndPublish(ctx, events.TopicStepDeleted, recipeID, actor, events.StepDeleted{RecipeID: recipeID, StepNum: stepNum})
	return nil
}

// checkMoveRange reports a step outside the recipe as not found and a target
// position outside 1..count as bad input.
func checkMoveRange(count, stepNum, position int) error {
	if stepNum < 1 || stepNum > count {
		return sql.ErrNoRows
	}
	if position < 1 || position > count {
		return inputError(fmt.Sprintf("position must be between 1 and %d", count))
	}
	return nil
}

// moveStep moves a single step to position and returns the renumbered steps.
func (s *RecipesServer) moveStep(ctx context.Context, recipeID string, stepNum, position int, actor string) ([]*model.RecipeStep, error) {
	var steps []*model.RecipeStep
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := lockRecipe(ctx, tx, recipeID); err != nil {
			return err
		}
		count, err := tx.CountSteps(ctx, recipeID)
		if err != nil {
			return fmt.Errorf("count steps: %w", err)
		}
		if err := checkMoveRange(count, stepNum, position); err != nil {
			return err
		}

		res, err := stepgraph.ValidateStepMove(ctx, tx, recipeID, stepNum, position)
		if err != nil {
			return err
		}
		if !res.Valid {
			return conflictError(res.Error)
		}

		if err := tx.MoveStep(ctx, recipeID, stepNum, position); err != nil {
			return fmt.Errorf("failed to move step: %w", err)
		}
		steps, err = tx.ListSteps(ctx, recipeID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if stepNum != position {
		s.recordAndPublish(ctx, events.TopicStepMoved, recipeID, actor, events.StepMoved{RecipeID: recipeID, From: stepNum, To: position})
	}
	return steps, nil
}

// checkMove reports whether moveStep would accept the move without changing
// anything. No lock is taken, so the answer may be stale by the time a real
// move is attempted.
func (s *RecipesServer) checkMove(ctx context.Context, recipeID string, stepNum, position int) (model.ValidationResult, error) {
	count, err := s.store.CountSteps(ctx, recipeID)
	if err != nil {
		return model.ValidationResult{}, fmt.Errorf("count steps: %w", err)
	}
	if err := checkMoveRange(count, stepNum, position); err != nil {
		return model.ValidationResult{}, err
	}
	return stepgraph.ValidateStepMove(ctx, s.store, recipeID, stepNum, position)
}

// replaceUses swaps the full set of steps that stepNum uses output from and
// returns the number of edges created.
func (s *RecipesServer) replaceUses(ctx context.Context, recipeID string, stepNum int, outputStepNums []int, actor string) (int, error) {
	var removed, created int
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := lockRecipe(ctx, tx, recipeID); err != nil {
			return err
		}
		existing, err := tx.GetStep(ctx, recipeID, stepNum)
		if err != nil {
			return err
		}
		removed = len(existing.UsesOutputOf)

		res, n, err := stepgraph.ReplaceStepOutputUses(ctx, tx, recipeID, stepNum, outputStepNums)
		if err != nil {
			return err
		}
		if !res.Valid {
			return referenceError(res.Error)
		}
		created = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.recordAndPublish(ctx, events.TopicStepUsesReplaced, recipeID, actor, events.StepUsesReplaced{
		RecipeID:       recipeID,
		StepNum:        stepNum,
		OutputStepNums: outputStepNums,
		Removed:        removed,
		Created:        created,
	})
	return created, nil
}
