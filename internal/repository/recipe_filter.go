package repository

import "strings"

// RecipeFilter narrows a recipe listing. A nil or empty id list means the
// filter is absent. Within one list the match is "any of"; the two lists
// combine with AND.
type RecipeFilter struct {
	TagIDs        []uint64
	IngredientIDs []uint64
}

const recipeSelect = `SELECT r.id, r.owner_id, r.title, r.time_minutes, r.price, r.description,
		r.link, r.image, r.image_blurhash, r.created_at, r.updated_at
	FROM recipes r`

// buildRecipeListQuery returns the listing SQL and its arguments. Each
// filter is an EXISTS subquery over the join table, so a recipe matching
// several ids still yields one row and no DISTINCT is needed.
func buildRecipeListQuery(ownerID uint64, f RecipeFilter) (string, []any) {
	where := []string{"r.owner_id = ?"}
	args := []any{ownerID}

	if len(f.TagIDs) > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM recipe_tags rt WHERE rt.recipe_id = r.id AND rt.tag_id IN ("+placeholders(len(f.TagIDs))+"))")
		args = append(args, uint64Args(f.TagIDs)...)
	}
	if len(f.IngredientIDs) > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM recipe_ingredients ri WHERE ri.recipe_id = r.id AND ri.ingredient_id IN ("+placeholders(len(f.IngredientIDs))+"))")
		args = append(args, uint64Args(f.IngredientIDs)...)
	}

	q := recipeSelect + `
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY r.id DESC`
	return q, args
}
