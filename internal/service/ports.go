package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/recipe-api/internal/model"
	"github.com/iliyamo/recipe-api/internal/repository"
)

// RecipeRepository is the recipe storage port. Implementations return
// repository.ErrNotFound for missing or not-owned rows.
type RecipeRepository interface {
	Create(ctx context.Context, rc *model.Recipe) error
	GetByIDAndOwner(ctx context.Context, id, ownerID uint64) (*model.Recipe, error)
	List(ctx context.Context, ownerID uint64, f repository.RecipeFilter) ([]*model.Recipe, error)
	Update(ctx context.Context, rc *model.Recipe) error
	SetImage(ctx context.Context, id, ownerID uint64, key, blurHash string) error
	DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error
}

// AttributeRepository stores one attribute kind (tags or ingredients).
// GetOrCreate must be safe under concurrent callers resolving the same
// (owner, name): exactly one of them observes created == true.
type AttributeRepository interface {
	GetOrCreate(ctx context.Context, ownerID uint64, name string) (*model.Attribute, bool, error)
	GetByIDAndOwner(ctx context.Context, id, ownerID uint64) (*model.Attribute, error)
	ListByOwner(ctx context.Context, ownerID uint64, assignedOnly bool) ([]*model.Attribute, error)
	Rename(ctx context.Context, id, ownerID uint64, name string) error
	DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error
	ListForRecipes(ctx context.Context, recipeIDs []uint64) (map[uint64][]*model.Attribute, error)
	ReplaceForRecipe(ctx context.Context, recipeID uint64, attrIDs []uint64) error
}

// UserRepository stores accounts.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
}

// TokenRepository stores refresh token hashes.
type TokenRepository interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, userID uint64, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// Repos is the set of repositories bound to one unit of work.
type Repos struct {
	Recipes     RecipeRepository
	Tags        AttributeRepository
	Ingredients AttributeRepository
}

// Attributes returns the repository for kind.
func (r Repos) Attributes(kind model.AttributeKind) AttributeRepository {
	switch kind {
	case model.KindTag:
		return r.Tags
	case model.KindIngredient:
		return r.Ingredients
	}
	panic(fmt.Sprintf("service: unknown attribute kind %q", kind))
}

// UnitOfWork runs fn inside one transaction. The transaction commits when
// fn returns nil and rolls back on any error or panic. fn may be invoked
// more than once when the store asks for a retry, so it must not have
// side effects outside the repositories it is given.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(Repos) error) error
}

// attributeKinds lists the kinds in the order they are resolved.
var attributeKinds = []model.AttributeKind{model.KindTag, model.KindIngredient}
