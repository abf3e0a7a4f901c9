package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/course-commerce/internal/database"
	"github.com/iliyamo/course-commerce/internal/model"
)

// MembershipRepo persists membership registrations.  The one-active-per-
// user rule is kept by the service layer, which calls these methods
// inside a transaction holding the user's row lock.
type MembershipRepo struct {
	db *sqlx.DB
}

// NewMembershipRepo returns a MembershipRepo bound to db.
func NewMembershipRepo(db *sqlx.DB) *MembershipRepo { return &MembershipRepo{db: db} }

const registrationColumns = "id, user_id, membership_type_id, estado, fecha_de_expiracion, created_at, updated_at"

// LatestActive returns the user's active registration with the latest
// expiration.  ok is false when the user has none.
func (r *MembershipRepo) LatestActive(ctx context.Context, userID uint64) (reg model.MembershipRegistration, ok bool, err error) {
	err = database.Conn(ctx, r.db).GetContext(ctx, &reg,
		"SELECT "+registrationColumns+" FROM membership_registrations WHERE user_id=? AND estado=? ORDER BY fecha_de_expiracion DESC, id DESC LIMIT 1",
		userID, model.StatusActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reg, false, nil
		}
		return reg, false, err
	}
	return reg, true, nil
}

// HasActive reports whether the user holds an active registration that
// has not yet expired at now.
func (r *MembershipRepo) HasActive(ctx context.Context, userID uint64, now time.Time) (bool, error) {
	var n int
	err := database.Conn(ctx, r.db).GetContext(ctx, &n,
		"SELECT COUNT(*) FROM membership_registrations WHERE user_id=? AND estado=? AND fecha_de_expiracion >= ?",
		userID, model.StatusActive, now)
	return n > 0, err
}

// Create inserts the registration and sets m.ID.
func (r *MembershipRepo) Create(ctx context.Context, m *model.MembershipRegistration) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		"INSERT INTO membership_registrations (user_id, membership_type_id, estado, fecha_de_expiracion) VALUES (?,?,?,?)",
		m.UserID, m.TypeID, m.Estado, m.FechaDeExpiracion)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// GetByID loads a registration.
func (r *MembershipRepo) GetByID(ctx context.Context, id uint64) (model.MembershipRegistration, error) {
	var m model.MembershipRegistration
	err := database.Conn(ctx, r.db).GetContext(ctx, &m,
		"SELECT "+registrationColumns+" FROM membership_registrations WHERE id=? LIMIT 1", id)
	return m, notFound(err)
}

// Update writes estado and expiration of an existing registration.
func (r *MembershipRepo) Update(ctx context.Context, id uint64, estado string, exp time.Time) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx,
		"UPDATE membership_registrations SET estado=?, fecha_de_expiracion=? WHERE id=?", estado, exp, id)
	return err
}

// DeactivateOthers sets every other active registration of the user to
// inactive and returns how many were changed.
func (r *MembershipRepo) DeactivateOthers(ctx context.Context, userID, keepID uint64) (int64, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		"UPDATE membership_registrations SET estado=? WHERE user_id=? AND id<>? AND estado=?",
		model.StatusInactive, userID, keepID, model.StatusActive)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByUser returns the user's registrations, newest first.
func (r *MembershipRepo) ListByUser(ctx context.Context, userID uint64) ([]model.MembershipRegistration, error) {
	var out []model.MembershipRegistration
	err := database.Conn(ctx, r.db).SelectContext(ctx, &out,
		"SELECT "+registrationColumns+" FROM membership_registrations WHERE user_id=? ORDER BY created_at DESC, id DESC", userID)
	return out, err
}

// ExpireOverdue flips every active registration whose expiration is
// before now to inactive.
func (r *MembershipRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		"UPDATE membership_registrations SET estado=? WHERE estado=? AND fecha_de_expiracion < ?",
		model.StatusInactive, model.StatusActive, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
