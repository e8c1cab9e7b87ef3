package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/recipe-api/internal/model"
)

// UserRepo persists rows of the 'users' table. Password hashing and email
// normalisation happen in the service layer; the repository stores what
// it is given.
type UserRepo struct{ DB DBTX }

func NewUserRepo(db DBTX) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,name,password_hash,is_active,is_staff,is_superuser,created_at,updated_at"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts u and fills its ID and timestamps.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, name, password_hash, is_active, is_staff, is_superuser) VALUES (?,?,?,?,?,?)",
		u.Email, u.Name, u.PasswordHash, u.IsActive, u.IsStaff, u.IsSuperuser)
	if err != nil {
		if IsDuplicateKey(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*u = *stored
	return nil
}

// GetByEmail fetches a user by its stored (normalised) email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// Update writes the mutable profile fields (name, password hash, flags).
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET name=?, password_hash=?, is_active=?, is_staff=?, is_superuser=?, updated_at=CURRENT_TIMESTAMP
		 WHERE id=?`,
		u.Name, u.PasswordHash, u.IsActive, u.IsStaff, u.IsSuperuser, u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 affected rows when nothing changed; tell the
		// two cases apart.
		if _, err := r.GetByID(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}
