package model

import "time"

// Recipe represents a recipe owned by a single user. Tags and
// Ingredients are unordered sets; the repository never stores a
// duplicate (recipe, attribute) pair. Image holds the storage key of the
// uploaded picture, empty when the recipe has none.
//
// Fields:
//  ID            – primary key identifier.
//  OwnerID       – user ID of the recipe owner. Never changes after creation.
//  Title         – required, non-empty.
//  TimeMinutes   – preparation time estimate in minutes.
//  Price         – fixed-point price, two decimal places.
//  Description   – free text.
//  Link          – optional external link.
//  Image         – storage key of the image blob.
//  ImageBlurHash – blurhash placeholder computed on upload.
type Recipe struct {
	ID            uint64       // recipes.id
	OwnerID       uint64       // recipes.owner_id
	Title         string       // recipes.title
	TimeMinutes   int          // recipes.time_minutes
	Price         Price        // recipes.price (DECIMAL(5,2))
	Description   string       // recipes.description
	Link          string       // recipes.link
	Image         string       // recipes.image
	ImageBlurHash string       // recipes.image_blurhash
	Tags          []*Attribute // via recipe_tags
	Ingredients   []*Attribute // via recipe_ingredients
	CreatedAt     time.Time    // recipes.created_at
	UpdatedAt     time.Time    // recipes.updated_at
}

// Attributes returns the recipe's tags or ingredients depending on kind.
func (r *Recipe) Attributes(kind AttributeKind) []*Attribute {
	if kind == KindTag {
		return r.Tags
	}
	return r.Ingredients
}

// SetAttributes replaces the recipe's tags or ingredients depending on kind.
func (r *Recipe) SetAttributes(kind AttributeKind, attrs []*Attribute) {
	if kind == KindTag {
		r.Tags = attrs
		return
	}
	r.Ingredients = attrs
}

const (
	MaxTitleLen = 255
	MaxLinkLen  = 255

	// MaxTimeMinutes is the largest value of the INT UNSIGNED column.
	MaxTimeMinutes = 1<<32 - 1
)
