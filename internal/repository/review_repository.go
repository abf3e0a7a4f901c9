package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/course-commerce/internal/database"
	"github.com/iliyamo/course-commerce/internal/model"
)

// ReviewRepo persists course and workshop reviews.
type ReviewRepo struct {
	db *sqlx.DB
}

// NewReviewRepo returns a ReviewRepo bound to db.
func NewReviewRepo(db *sqlx.DB) *ReviewRepo { return &ReviewRepo{db: db} }

const reviewColumns = "id, target_kind, target_id, user_id, nombre_usuario, pais_usuario, estrellas, resena, fecha, estado, created_at"

// Create inserts the review and sets rv.ID.
func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	if rv.Estado == "" {
		rv.Estado = model.ReviewDenied
	}
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO reviews (target_kind, target_id, user_id, nombre_usuario, pais_usuario, estrellas, resena, fecha, estado)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		rv.TargetKind, rv.TargetID, rv.UserID, rv.NombreUsuario, rv.PaisUsuario, rv.Estrellas, rv.Resena, rv.Fecha, rv.Estado)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rv.ID = uint64(id)
	return nil
}

// GetByID loads a review.
func (r *ReviewRepo) GetByID(ctx context.Context, id uint64) (model.Review, error) {
	var rv model.Review
	err := database.Conn(ctx, r.db).GetContext(ctx, &rv,
		"SELECT "+reviewColumns+" FROM reviews WHERE id=? LIMIT 1", id)
	return rv, notFound(err)
}

// Delete removes a review.  A missing row yields ErrNotFound.
func (r *ReviewRepo) Delete(ctx context.Context, id uint64) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, "DELETE FROM reviews WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByTarget returns every review of a course or workshop regardless
// of moderation state.
func (r *ReviewRepo) ListByTarget(ctx context.Context, kind string, id uint64) ([]model.Review, error) {
	var out []model.Review
	err := database.Conn(ctx, r.db).SelectContext(ctx, &out,
		"SELECT "+reviewColumns+" FROM reviews WHERE target_kind=? AND target_id=? ORDER BY id", kind, id)
	return out, err
}
