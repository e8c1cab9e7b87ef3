package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/recipe-api/internal/model"
)

// RecipeRepo encapsulates all queries against the 'recipes' table. Tag and
// ingredient associations are handled by AttributeRepo; the recipe rows
// returned here carry no attributes.
type RecipeRepo struct {
	db DBTX // *sql.DB or the *sql.Tx of the current unit of work
}

// NewRecipeRepo constructs a RecipeRepo with the provided handle.
func NewRecipeRepo(db DBTX) *RecipeRepo {
	return &RecipeRepo{db: db}
}

func scanRecipe(row interface{ Scan(...any) error }) (*model.Recipe, error) {
	var rc model.Recipe
	if err := row.Scan(&rc.ID, &rc.OwnerID, &rc.Title, &rc.TimeMinutes, &rc.Price, &rc.Description,
		&rc.Link, &rc.Image, &rc.ImageBlurHash, &rc.CreatedAt, &rc.UpdatedAt); err != nil {
		return nil, err
	}
	return &rc, nil
}

// Create inserts a new recipe. On success ID and the timestamps are
// populated from a follow-up SELECT.
func (r *RecipeRepo) Create(ctx context.Context, rc *model.Recipe) error {
	const qInsert = `INSERT INTO recipes (owner_id, title, time_minutes, price, description, link)
	                 VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, qInsert, rc.OwnerID, rc.Title, rc.TimeMinutes, rc.Price, rc.Description, rc.Link)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetByIDAndOwner(ctx, uint64(id), rc.OwnerID)
	if err != nil {
		return err
	}
	stored.Tags, stored.Ingredients = rc.Tags, rc.Ingredients
	*rc = *stored
	return nil
}

// GetByIDAndOwner fetches a recipe by id but only if it belongs to the
// specified owner. Missing and not-owned both yield ErrNotFound.
func (r *RecipeRepo) GetByIDAndOwner(ctx context.Context, id, ownerID uint64) (*model.Recipe, error) {
	rc, err := scanRecipe(r.db.QueryRowContext(ctx, recipeSelect+" WHERE r.id = ? AND r.owner_id = ?", id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rc, nil
}

// List returns the owner's recipes matching f, newest first.
func (r *RecipeRepo) List(ctx context.Context, ownerID uint64, f RecipeFilter) ([]*model.Recipe, error) {
	q, args := buildRecipeListQuery(ownerID, f)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Recipe{}
	for rows.Next() {
		rc, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes the scalar fields of rc. The owner is part of the WHERE
// clause and is never written. Returns ErrNotFound when not found / not owned.
func (r *RecipeRepo) Update(ctx context.Context, rc *model.Recipe) error {
	const q = `UPDATE recipes
	           SET title = ?, time_minutes = ?, price = ?, description = ?, link = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND owner_id = ?`
	res, err := r.db.ExecContext(ctx, q, rc.Title, rc.TimeMinutes, rc.Price, rc.Description, rc.Link, rc.ID, rc.OwnerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// 0 rows also means "values unchanged"; confirm the row exists.
		if _, err := r.GetByIDAndOwner(ctx, rc.ID, rc.OwnerID); err != nil {
			return err
		}
	}
	return nil
}

// SetImage stores the image key and blurhash of a recipe. An empty key
// clears the image.
func (r *RecipeRepo) SetImage(ctx context.Context, id, ownerID uint64, key, blurHash string) error {
	const q = `UPDATE recipes SET image = ?, image_blurhash = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND owner_id = ?`
	res, err := r.db.ExecContext(ctx, q, key, blurHash, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByIDAndOwner(ctx, id, ownerID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByIDAndOwner removes a recipe owned by ownerID. Join rows go with
// it through ON DELETE CASCADE; tags and ingredients are left in place.
func (r *RecipeRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recipes WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
