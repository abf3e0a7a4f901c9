package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/course-commerce/internal/database"
	"github.com/iliyamo/course-commerce/internal/model"
)

// EnrollmentRepo persists enrollments and the courses they cover.
type EnrollmentRepo struct {
	db *sqlx.DB
}

// NewEnrollmentRepo returns an EnrollmentRepo bound to db.
func NewEnrollmentRepo(db *sqlx.DB) *EnrollmentRepo { return &EnrollmentRepo{db: db} }

const enrollmentColumns = "id, user_id, status, fecha_de_expiracion, created_at, updated_at"

// Create inserts e and its course links and sets e.ID.
func (r *EnrollmentRepo) Create(ctx context.Context, e *model.Enrollment) error {
	q := database.Conn(ctx, r.db)
	res, err := q.ExecContext(ctx,
		"INSERT INTO enrollments (user_id, status, fecha_de_expiracion) VALUES (?,?,?)",
		e.UserID, e.Status, e.FechaDeExpiracion)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	for _, c := range e.CourseIDs {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO enrollment_courses (enrollment_id, course_id) VALUES (?,?)", e.ID, c); err != nil {
			return fmt.Errorf("link course %d: %w", c, err)
		}
	}
	return nil
}

// GetByID loads an enrollment with its courses.
func (r *EnrollmentRepo) GetByID(ctx context.Context, id uint64) (model.Enrollment, error) {
	var e model.Enrollment
	if err := database.Conn(ctx, r.db).GetContext(ctx, &e,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE id=? LIMIT 1", id); err != nil {
		return e, notFound(err)
	}
	list := []model.Enrollment{e}
	if err := r.attachCourses(ctx, list); err != nil {
		return e, err
	}
	return list[0], nil
}

// Update writes status and expiration of an existing enrollment.
func (r *EnrollmentRepo) Update(ctx context.Context, id uint64, status string, exp time.Time) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		"UPDATE enrollments SET status=?, fecha_de_expiracion=? WHERE id=?", status, exp, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// OldestForUser returns up to limit enrollments of the user ordered by
// creation time, oldest first, with id as tie-break.  Rows are locked for
// the surrounding transaction.
func (r *EnrollmentRepo) OldestForUser(ctx context.Context, userID uint64, limit int) ([]model.Enrollment, error) {
	var out []model.Enrollment
	if limit <= 0 {
		return out, nil
	}
	err := database.Conn(ctx, r.db).SelectContext(ctx, &out,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE user_id=? ORDER BY created_at ASC, id ASC LIMIT ? FOR UPDATE",
		userID, limit)
	return out, err
}

// ListByUser returns every enrollment of the user with its courses.
func (r *EnrollmentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Enrollment, error) {
	var out []model.Enrollment
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &out,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE user_id=? ORDER BY created_at ASC, id ASC", userID); err != nil {
		return nil, err
	}
	if err := r.attachCourses(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExpireOverdue flips every active enrollment whose expiration is before
// now to inactive and returns the number of rows changed.
func (r *EnrollmentRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		"UPDATE enrollments SET status=? WHERE status=? AND fecha_de_expiracion < ?",
		model.StatusInactive, model.StatusActive, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *EnrollmentRepo) attachCourses(ctx context.Context, list []model.Enrollment) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uint64, len(list))
	index := make(map[uint64]int, len(list))
	for i, e := range list {
		ids[i] = e.ID
		index[e.ID] = i
	}
	q := database.Conn(ctx, r.db)
	query, args, err := sqlx.In(
		"SELECT enrollment_id, course_id FROM enrollment_courses WHERE enrollment_id IN (?) ORDER BY enrollment_id, course_id", ids)
	if err != nil {
		return err
	}
	var links []struct {
		EnrollmentID uint64 `db:"enrollment_id"`
		CourseID     uint64 `db:"course_id"`
	}
	if err := q.SelectContext(ctx, &links, q.Rebind(query), args...); err != nil {
		return err
	}
	for _, l := range links {
		i := index[l.EnrollmentID]
		list[i].CourseIDs = append(list[i].CourseIDs, l.CourseID)
	}
	return nil
}
