package events

// Message is an event as delivered by a Subscriber.
type Message struct {
	Topic    string
	RecipeID string // "" for events not tied to a recipe
	Data     []byte // JSON payload
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers events whose topic matches the NATS-style pattern
	// topic. A non-empty recipeID keeps only that recipe's events. Call the
	// returned cancel function to unsubscribe and close the channel.
	Subscribe(topic, recipeID string) (<-chan Message, func(), error)
	Close() error
}
