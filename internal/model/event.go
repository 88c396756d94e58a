package model

import (
	"encoding/json"
	"time"
)

// Event is one entry in a recipe's audit log. Payload holds the same JSON
// that was published on Topic.
type Event struct {
	ID        int64           `json:"id"`
	Topic     string          `json:"topic"`
	RecipeID  string          `json:"recipe_id"`
	Actor     string          `json:"actor,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
