package model

// ValidationResult is the outcome of a step graph check. A failed check is a
// value, not an error: Error holds the message to show the user verbatim.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Valid returns a passing result.
func Valid() ValidationResult {
	return ValidationResult{Valid: true}
}

// Invalid returns a failing result carrying msg.
func Invalid(msg string) ValidationResult {
	return ValidationResult{Valid: false, Error: msg}
}
