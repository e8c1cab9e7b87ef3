package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/recipe-api/internal/model"
)

// attributeTables names the storage of one attribute kind.
type attributeTables struct {
	table   string // tags | ingredients
	join    string // recipe_tags | recipe_ingredients
	joinCol string // tag_id | ingredient_id
}

func tablesFor(kind model.AttributeKind) attributeTables {
	switch kind {
	case model.KindTag:
		return attributeTables{table: "tags", join: "recipe_tags", joinCol: "tag_id"}
	case model.KindIngredient:
		return attributeTables{table: "ingredients", join: "recipe_ingredients", joinCol: "ingredient_id"}
	}
	panic(fmt.Sprintf("repository: unknown attribute kind %q", kind))
}

// AttributeRepo stores tags or ingredients. Both kinds share one shape
// and one set of queries; only the table names differ.
type AttributeRepo struct {
	db   DBTX
	kind model.AttributeKind
	t    attributeTables
}

// NewAttributeRepo constructs a repository for the given kind.
func NewAttributeRepo(db DBTX, kind model.AttributeKind) *AttributeRepo {
	return &AttributeRepo{db: db, kind: kind, t: tablesFor(kind)}
}

func (r *AttributeRepo) scan(row interface{ Scan(...any) error }) (*model.Attribute, error) {
	a := &model.Attribute{Kind: r.kind}
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *AttributeRepo) getByOwnerAndName(ctx context.Context, ownerID uint64, name string) (*model.Attribute, error) {
	q := "SELECT id, owner_id, name, created_at FROM " + r.t.table + " WHERE owner_id = ? AND name = ?"
	return r.scan(r.db.QueryRowContext(ctx, q, ownerID, name))
}

// GetOrCreate resolves name to the owner's existing attribute or inserts a
// new one. The (owner_id, name) unique key closes the race between two
// concurrent callers: the losing INSERT turns into a no-op update that
// reports the winner's id through LAST_INSERT_ID. created is true only for
// the caller whose INSERT added the row. Safe inside a transaction of any
// isolation level.
func (r *AttributeRepo) GetOrCreate(ctx context.Context, ownerID uint64, name string) (*model.Attribute, bool, error) {
	a, err := r.getByOwnerAndName(ctx, ownerID, name)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	q := "INSERT INTO " + r.t.table + " (owner_id, name) VALUES (?, ?) ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)"
	res, err := r.db.ExecContext(ctx, q, ownerID, name)
	if err != nil {
		return nil, false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, err
	}
	// 1 = inserted, 0 = existing row left unchanged
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	// The winner's row may be newer than this transaction's snapshot; a
	// locking read always sees the latest committed version.
	q = "SELECT id, owner_id, name, created_at FROM " + r.t.table + " WHERE id = ? AND owner_id = ? FOR SHARE"
	a, err = r.scan(r.db.QueryRowContext(ctx, q, id, ownerID))
	if err != nil {
		return nil, false, err
	}
	return a, n == 1, nil
}

// GetByIDAndOwner fetches an attribute only if it belongs to ownerID.
func (r *AttributeRepo) GetByIDAndOwner(ctx context.Context, id, ownerID uint64) (*model.Attribute, error) {
	q := "SELECT id, owner_id, name, created_at FROM " + r.t.table + " WHERE id = ? AND owner_id = ?"
	return r.scan(r.db.QueryRowContext(ctx, q, id, ownerID))
}

// ListByOwner returns the owner's attributes ordered by name descending.
// With assignedOnly, only attributes attached to at least one of the
// owner's recipes are returned; the EXISTS keeps each attribute to a
// single row however many recipes use it.
func (r *AttributeRepo) ListByOwner(ctx context.Context, ownerID uint64, assignedOnly bool) ([]*model.Attribute, error) {
	q := "SELECT a.id, a.owner_id, a.name, a.created_at FROM " + r.t.table + " a WHERE a.owner_id = ?"
	if assignedOnly {
		q += " AND EXISTS (SELECT 1 FROM " + r.t.join + " j JOIN recipes rc ON rc.id = j.recipe_id" +
			" WHERE j." + r.t.joinCol + " = a.id AND rc.owner_id = a.owner_id)"
	}
	q += " ORDER BY a.name DESC, a.id DESC"

	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Attribute{}
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Rename changes the name of an owned attribute. A name the owner already
// uses for another attribute of the same kind yields ErrConflict.
func (r *AttributeRepo) Rename(ctx context.Context, id, ownerID uint64, name string) error {
	q := "UPDATE " + r.t.table + " SET name = ? WHERE id = ? AND owner_id = ?"
	res, err := r.db.ExecContext(ctx, q, name, id, ownerID)
	if err != nil {
		if IsDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByIDAndOwner(ctx, id, ownerID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByIDAndOwner removes an owned attribute. Its recipe associations
// disappear through the cascading foreign key; the recipes stay.
func (r *AttributeRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+r.t.table+" WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForRecipes loads the attributes of several recipes in one query,
// keyed by recipe id. Recipes without attributes are absent from the map.
func (r *AttributeRepo) ListForRecipes(ctx context.Context, recipeIDs []uint64) (map[uint64][]*model.Attribute, error) {
	out := make(map[uint64][]*model.Attribute, len(recipeIDs))
	if len(recipeIDs) == 0 {
		return out, nil
	}
	q := "SELECT j.recipe_id, a.id, a.owner_id, a.name, a.created_at FROM " + r.t.join + " j" +
		" JOIN " + r.t.table + " a ON a.id = j." + r.t.joinCol +
		" WHERE j.recipe_id IN (" + placeholders(len(recipeIDs)) + ")" +
		" ORDER BY a.id"
	rows, err := r.db.QueryContext(ctx, q, uint64Args(recipeIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var recipeID uint64
		a := &model.Attribute{Kind: r.kind}
		if err := rows.Scan(&recipeID, &a.ID, &a.OwnerID, &a.Name, &a.CreatedAt); err != nil {
			return nil, err
		}
		out[recipeID] = append(out[recipeID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceForRecipe makes attrIDs the complete attribute set of a recipe.
// An empty slice clears the associations without touching the attributes.
// Duplicate ids collapse through the primary key.
func (r *AttributeRepo) ReplaceForRecipe(ctx context.Context, recipeID uint64, attrIDs []uint64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM "+r.t.join+" WHERE recipe_id = ?", recipeID); err != nil {
		return err
	}
	if len(attrIDs) == 0 {
		return nil
	}
	values := make([]byte, 0, len(attrIDs)*6)
	args := make([]any, 0, 2*len(attrIDs))
	for i, id := range attrIDs {
		if i > 0 {
			values = append(values, ',')
		}
		values = append(values, "(?,?)"...)
		args = append(args, recipeID, id)
	}
	q := "INSERT IGNORE INTO " + r.t.join + " (recipe_id, " + r.t.joinCol + ") VALUES " + string(values)
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}
