// Package queue defines the recipe events exchanged over the message broker.
package queue

import "time"

// RecipeEventQueue is the durable queue recipe events are published to.
const RecipeEventQueue = "recipe.events"

// Event types.
const (
	RecipeCreated       = "recipe.created"
	RecipeUpdated       = "recipe.updated"
	RecipeDeleted       = "recipe.deleted"
	RecipeImageUploaded = "recipe.image_uploaded"
)

// RecipeEvent is published after a recipe write commits. It carries
// enough information for consumers to log or index the change without
// querying the primary database.
type RecipeEvent struct {
	Type        string    `json:"type"`
	RecipeID    uint64    `json:"recipe_id"`
	OwnerID     uint64    `json:"owner_id"`
	Title       string    `json:"title,omitempty"`
	Image       string    `json:"image,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Ingredients []string  `json:"ingredients,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
