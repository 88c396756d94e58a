// Package idgen mints recipe IDs: a fixed prefix followed by a short random
// nanoid.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// Prefix starts every recipe ID.
	Prefix = "rc-"

	alphabet  = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	randomLen = 10
)

// Generate returns a fresh recipe ID such as "rc-4fQ9xk2LmA".
func Generate() (string, error) {
	suffix, err := nanoid.Generate(alphabet, randomLen)
	if err != nil {
		return "", fmt.Errorf("generating recipe id: %w", err)
	}
	return Prefix + suffix, nil
}

// Normalize lets users type the random part alone: "x1y2" and "rc-x1y2" name
// the same recipe. Surrounding whitespace is dropped.
func Normalize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, Prefix) {
		return id
	}
	return Prefix + id
}
