package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/course-commerce/internal/database"
	"github.com/iliyamo/course-commerce/internal/model"
)

const userColumns = "id,email,password_hash,role,nombre,apellidos,country,phone,created_at,updated_at"

type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts u with an already hashed password and sets u.ID.
// A duplicate email yields ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, nombre, apellidos, country, phone) VALUES (?,?,?,?,?,?,?)",
		u.Email, u.PasswordHash, u.Role, u.Nombre, u.Apellidos, u.Country, u.Phone)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := database.Conn(ctx, r.db).GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := database.Conn(ctx, r.db).GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return u, notFound(err)
}

// Update writes the editable profile fields and the password hash of u.
func (r *UserRepo) Update(ctx context.Context, u model.User) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		"UPDATE users SET nombre=?, apellidos=?, country=?, phone=?, password_hash=? WHERE id=?",
		u.Nombre, u.Apellidos, u.Country, u.Phone, u.PasswordHash, u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err := r.GetByID(ctx, u.ID)
		return err
	}
	return nil
}

// LockForUpdate takes a row lock on the user for the rest of the
// surrounding transaction.  Writers that must keep a per-user invariant
// (one active membership) serialize on this lock.
func (r *UserRepo) LockForUpdate(ctx context.Context, id uint64) error {
	var got uint64
	err := database.Conn(ctx, r.db).GetContext(ctx, &got,
		"SELECT id FROM users WHERE id=? FOR UPDATE", id)
	return notFound(err)
}
