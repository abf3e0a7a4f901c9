package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/course-commerce/internal/database"
	"github.com/iliyamo/course-commerce/internal/model"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "sqlmock"), mock
}

func TestOrderRepo_ClaimFulfillmentOnlyOnce(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepo(db)
	claim := regexp.QuoteMeta("UPDATE orders SET fulfilled_at=UTC_TIMESTAMP() WHERE id=? AND fulfilled_at IS NULL")

	mock.ExpectExec(claim).WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(claim).WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.ClaimFulfillment(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimFulfillment(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_UpdateStateReturnsPrevious(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT state FROM orders WHERE id=? FOR UPDATE")).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(model.OrderPending))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET state=? WHERE id=?")).
		WithArgs(model.OrderCompleted, uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	prev, err := repo.UpdateState(context.Background(), 3, model.OrderCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, prev)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_UpdateStateMissingOrder(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT state FROM orders WHERE id=? FOR UPDATE")).
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"state"}))

	_, err := repo.UpdateState(context.Background(), 99, model.OrderCompleted)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMembershipRepo_LatestActiveNone(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMembershipRepo(db)

	mock.ExpectQuery("SELECT .* FROM membership_registrations WHERE user_id=\\? AND estado=\\?").
		WithArgs(uint64(1), model.StatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, ok, err := repo.LatestActive(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMembershipRepo_CreateAndDeactivateInTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMembershipRepo(db)
	tx := database.NewTxRunner(db)
	exp := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO membership_registrations")).
		WithArgs(uint64(5), uint64(2), model.StatusActive, exp).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE membership_registrations SET estado=? WHERE user_id=? AND id<>? AND estado=?")).
		WithArgs(model.StatusInactive, uint64(5), uint64(11), model.StatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	reg := &model.MembershipRegistration{UserID: 5, TypeID: 2, Estado: model.StatusActive, FechaDeExpiracion: exp}
	var changed int64
	err := tx.InTx(context.Background(), func(ctx context.Context) error {
		if err := repo.Create(ctx, reg); err != nil {
			return err
		}
		var err error
		changed, err = repo.DeactivateOthers(ctx, reg.UserID, reg.ID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(11), reg.ID)
	assert.Equal(t, int64(1), changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRunner_RollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	tx := database.NewTxRunner(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tx.InTx(context.Background(), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_CreateDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry"))

	err := repo.Create(context.Background(), &model.User{Email: " Ana@Example.com ", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestEnrollmentRepo_OldestForUserZeroLimit(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEnrollmentRepo(db)

	got, err := repo.OldestForUser(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_UpdateWritesProfile(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET nombre=?, apellidos=?, country=?, phone=?, password_hash=? WHERE id=?")).
		WithArgs("Ana", "Díaz", "PE", "999", "hash", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), model.User{ID: 7, Nombre: "Ana", Apellidos: "Díaz", Country: "PE", Phone: "999", PasswordHash: "hash"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_UpdateMissingUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE id=?")).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := repo.Update(context.Background(), model.User{ID: 9})
	assert.ErrorIs(t, err, ErrNotFound)
}
