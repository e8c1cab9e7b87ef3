package model

import "time"

// AttributeKind distinguishes the two kinds of recipe attributes. Tags and
// ingredients share the same shape and the same resolution rules, so they
// are handled by one component parameterised by kind.
type AttributeKind string

const (
	KindTag        AttributeKind = "tag"
	KindIngredient AttributeKind = "ingredient"
)

// String returns the kind name.
func (k AttributeKind) String() string { return string(k) }

// Plural returns the collection name used in URLs, JSON fields and tables.
func (k AttributeKind) Plural() string {
	switch k {
	case KindTag:
		return "tags"
	case KindIngredient:
		return "ingredients"
	}
	return string(k) + "s"
}

// MaxAttributeNameLen mirrors the width of the name columns.
const MaxAttributeNameLen = 255

// Attribute is a Tag or an Ingredient: a small reusable named vocabulary
// item owned by one user and attachable to any number of that user's
// recipes. (OwnerID, Name) is unique per kind.
type Attribute struct {
	ID        uint64        // tags.id / ingredients.id
	Kind      AttributeKind // which table the row lives in
	OwnerID   uint64        // owner_id
	Name      string        // name (binary collation, exact match)
	CreatedAt time.Time     // created_at
}
