package model

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxTitleLen is the rune limit for recipe and step titles.
const maxTitleLen = 200

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Errors []FieldError
}

type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, fe := range e.Errors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(fe.Field + ": " + fe.Message)
	}
	return b.String()
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) addf(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// err returns e, or nil when nothing failed.
func (e *ValidationError) err() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// ValidateRecipe returns a *ValidationError when r cannot be stored.
func ValidateRecipe(r *Recipe) error {
	ve := &ValidationError{}
	ve.checkTitle(r.Title)
	return ve.err()
}

// ValidateStep checks the stored fields of a RecipeStep. Dependency edges are
// validated separately by the stepgraph package.
func ValidateStep(s *RecipeStep) error {
	ve := &ValidationError{}
	ve.checkTitle(s.Title)
	if s.StepNum < 1 {
		ve.addf("step_num", "must be positive, got %d", s.StepNum)
	}
	return ve.err()
}

func (e *ValidationError) checkTitle(title string) {
	switch n := utf8.RuneCountInString(strings.TrimSpace(title)); {
	case n == 0:
		e.addf("title", "is required")
	case n > maxTitleLen:
		e.addf("title", "must be %d characters or fewer", maxTitleLen)
	}
}
