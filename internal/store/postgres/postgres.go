// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/groblegark/krecipes/internal/model"
	"github.com/groblegark/krecipes/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CheckStepUsage(ctx context.Context, recipeID string, stepNum int) ([]model.StepOutputUse, error) {
	return queryCheckStepUsage(ctx, s.db, recipeID, stepNum)
}

func (s *PostgresStore) LoadStepDependencies(ctx context.Context, recipeID string, stepNum int) ([]model.StepOutputUse, error) {
	return queryLoadStepDependencies(ctx, s.db, recipeID, stepNum)
}

func (s *PostgresStore) DeleteExistingStepOutputUses(ctx context.Context, recipeID string, inputStepNum int) (int, error) {
	return queryDeleteStepOutputUses(ctx, s.db, recipeID, inputStepNum)
}

func (s *PostgresStore) CreateStepOutputUses(ctx context.Context, recipeID string, inputStepNum int, outputStepNums []int) (int, error) {
	return queryCreateStepOutputUses(ctx, s.db, recipeID, inputStepNum, outputStepNums)
}

func (s *PostgresStore) CreateRecipe(ctx context.Context, recipe *model.Recipe) error {
	return queryCreateRecipe(ctx, s.db, recipe)
}

func (s *PostgresStore) GetRecipe(ctx context.Context, id string) (*model.Recipe, error) {
	return queryGetRecipe(ctx, s.db, id)
}

func (s *PostgresStore) ListRecipes(ctx context.Context, limit, offset int) ([]*model.Recipe, int, error) {
	return queryListRecipes(ctx, s.db, limit, offset)
}

func (s *PostgresStore) DeleteRecipe(ctx context.Context, id string) error {
	return queryDeleteRecipe(ctx, s.db, id)
}

func (s *PostgresStore) LockRecipe(ctx context.Context, id string) error {
	return queryLockRecipe(ctx, s.db, id)
}

func (s *PostgresStore) ListSteps(ctx context.Context, recipeID string) ([]*model.RecipeStep, error) {
	return queryListSteps(ctx, s.db, recipeID)
}

func (s *PostgresStore) GetStep(ctx context.Context, recipeID string, stepNum int) (*model.RecipeStep, error) {
	return queryGetStep(ctx, s.db, recipeID, stepNum)
}

func (s *PostgresStore) CountSteps(ctx context.Context, recipeID string) (int, error) {
	return queryCountSteps(ctx, s.db, recipeID)
}

func (s *PostgresStore) AppendStep(ctx context.Context, step *model.RecipeStep) error {
	return queryAppendStep(ctx, s.db, step)
}

func (s *PostgresStore) UpdateStep(ctx context.Context, step *model.RecipeStep) error {
	return queryUpdateStep(ctx, s.db, step)
}

// DeleteStep renumbers several tables, so it always runs in a transaction.
func (s *PostgresStore) DeleteStep(ctx context.Context, recipeID string, stepNum int) error {
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.DeleteStep(ctx, recipeID, stepNum)
	})
}

// MoveStep renumbers several tables, so it always runs in a transaction.
func (s *PostgresStore) MoveStep(ctx context.Context, recipeID string, from, to int) error {
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.MoveStep(ctx, recipeID, from, to)
	})
}

func (s *PostgresStore) GetRecipeGraph(ctx context.Context, recipeID string) (*model.RecipeGraph, error) {
	return queryGetRecipeGraph(ctx, s.db, recipeID)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvents(ctx context.Context, recipeID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.db, recipeID)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CheckStepUsage(ctx context.Context, recipeID string, stepNum int) ([]model.StepOutputUse, error) {
	return queryCheckStepUsage(ctx, s.tx, recipeID, stepNum)
}

func (s *txStore) LoadStepDependencies(ctx context.Context, recipeID string, stepNum int) ([]model.StepOutputUse, error) {
	return queryLoadStepDependencies(ctx, s.tx, recipeID, stepNum)
}

func (s *txStore) DeleteExistingStepOutputUses(ctx context.Context, recipeID string, inputStepNum int) (int, error) {
	return queryDeleteStepOutputUses(ctx, s.tx, recipeID, inputStepNum)
}

func (s *txStore) CreateStepOutputUses(ctx context.Context, recipeID string, inputStepNum int, outputStepNums []int) (int, error) {
	return queryCreateStepOutputUses(ctx, s.tx, recipeID, inputStepNum, outputStepNums)
}

func (s *txStore) CreateRecipe(ctx context.Context, recipe *model.Recipe) error {
	return queryCreateRecipe(ctx, s.tx, recipe)
}

func (s *txStore) GetRecipe(ctx context.Context, id string) (*model.Recipe, error) {
	return queryGetRecipe(ctx, s.tx, id)
}

func (s *txStore) ListRecipes(ctx context.Context, limit, offset int) ([]*model.Recipe, int, error) {
	return queryListRecipes(ctx, s.tx, limit, offset)
}

func (s *txStore) DeleteRecipe(ctx context.Context, id string) error {
	return queryDeleteRecipe(ctx, s.tx, id)
}

func (s *txStore) LockRecipe(ctx context.Context, id string) error {
	return queryLockRecipe(ctx, s.tx, id)
}

func (s *txStore) ListSteps(ctx context.Context, recipeID string) ([]*model.RecipeStep, error) {
	return queryListSteps(ctx, s.tx, recipeID)
}

func (s *txStore) GetStep(ctx context.Context, recipeID string, stepNum int) (*model.RecipeStep, error) {
	return queryGetStep(ctx, s.tx, recipeID, stepNum)
}

func (s *txStore) CountSteps(ctx context.Context, recipeID string) (int, error) {
	return queryCountSteps(ctx, s.tx, recipeID)
}

func (s *txStore) AppendStep(ctx context.Context, step *model.RecipeStep) error {
	return queryAppendStep(ctx, s.tx, step)
}

func (s *txStore) UpdateStep(ctx context.Context, step *model.RecipeStep) error {
	return queryUpdateStep(ctx, s.tx, step)
}

func (s *txStore) DeleteStep(ctx context.Context, recipeID string, stepNum int) error {
	return queryDeleteStep(ctx, s.tx, recipeID, stepNum)
}

func (s *txStore) MoveStep(ctx context.Context, recipeID string, from, to int) error {
	return queryMoveStep(ctx, s.tx, recipeID, from, to)
}

func (s *txStore) GetRecipeGraph(ctx context.Context, recipeID string) (*model.RecipeGraph, error) {
	return queryGetRecipeGraph(ctx, s.tx, recipeID)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvents(ctx context.Context, recipeID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.tx, recipeID)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
