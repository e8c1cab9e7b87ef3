package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildRecipeListQueryNoFilter(t *testing.T) {
	q, args := buildRecipeListQuery(7, RecipeFilter{})
	assert.Contains(t, q, "WHERE r.owner_id = ?")
	assert.NotContains(t, q, "EXISTS")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(q), "ORDER BY r.id DESC"))
	assert.Equal(t, []any{uint64(7)}, args)
}

func TestBuildRecipeListQueryTags(t *testing.T) {
	q, args := buildRecipeListQuery(7, RecipeFilter{TagIDs: []uint64{1, 2}})
	assert.Contains(t, q, "rt.tag_id IN (?,?)")
	assert.NotContains(t, q, "recipe_ingredients")
	assert.NotContains(t, q, "DISTINCT")
	assert.Equal(t, []any{uint64(7), uint64(1), uint64(2)}, args)
}

func TestBuildRecipeListQueryBothFilters(t *testing.T) {
	q, args := buildRecipeListQuery(3, RecipeFilter{TagIDs: []uint64{5}, IngredientIDs: []uint64{8, 9, 10}})
	assert.Contains(t, q, "rt.tag_id IN (?)")
	assert.Contains(t, q, "ri.ingredient_id IN (?,?,?)")
	assert.Equal(t, 2, strings.Count(q, "EXISTS"))
	// tag ids bind before ingredient ids
	assert.Equal(t, []any{uint64(3), uint64(5), uint64(8), uint64(9), uint64(10)}, args)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}
