package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/course-commerce/internal/model"
)

func newEnrollmentFixture(now time.Time) (*EnrollmentService, *enrollmentStub, *membershipStub) {
	enrollments := newEnrollmentStub()
	memberships := &membershipStub{}
	svc := NewEnrollmentService(&txStub{}, enrollments, memberships, discardLogger())
	svc.Now = fixedClock(now)
	return svc, enrollments, memberships
}

func TestEvaluate(t *testing.T) {
	now := date(2024, 5, 10)
	e := model.Enrollment{Status: model.StatusActive, FechaDeExpiracion: now.AddDate(0, 0, -1)}
	assert.Equal(t, model.StatusInactive, Evaluate(e, now))

	e.FechaDeExpiracion = now
	assert.Equal(t, model.StatusActive, Evaluate(e, now))

	e.Status = model.StatusInactive
	e.FechaDeExpiracion = now.AddDate(1, 0, 0)
	assert.Equal(t, model.StatusInactive, Evaluate(e, now))
}

func TestEnrollmentCreate_DefaultsToOneYear(t *testing.T) {
	now := date(2024, 2, 29)
	svc, store, _ := newEnrollmentFixture(now)

	e, err := svc.Create(context.Background(), EnrollmentInput{UserID: 3, CourseIDs: []uint64{11}})
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, e.Status)
	assert.Equal(t, now.AddDate(1, 0, 0), e.FechaDeExpiracion)
	assert.Equal(t, 1, store.count())
}

func TestEnrollmentCreate_WritesInsideTransaction(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(date(2024, 1, 1))

	_, err := svc.Create(context.Background(), EnrollmentInput{UserID: 3, CourseIDs: []uint64{11, 12}})
	require.NoError(t, err)
	assert.Equal(t, 1, store.count())
	assert.Zero(t, store.outside)
}

func TestEnrollmentCreate_RequiresUser(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(date(2024, 1, 1))
	_, err := svc.Create(context.Background(), EnrollmentInput{CourseIDs: []uint64{1}})
	assert.ErrorIs(t, err, ErrUserRequired)
}

func TestEnrollmentCreate_PastExpiration(t *testing.T) {
	now := date(2024, 1, 1)
	past := date(2023, 6, 1)

	t.Run("rejected without membership", func(t *testing.T) {
		svc, store, _ := newEnrollmentFixture(now)
		_, err := svc.Create(context.Background(), EnrollmentInput{UserID: 3, FechaDeExpiracion: &past})
		assert.ErrorIs(t, err, ErrPastExpiration)
		assert.Equal(t, 0, store.count())
	})

	t.Run("accepted inactive with active membership", func(t *testing.T) {
		svc, _, memberships := newEnrollmentFixture(now)
		memberships.add(model.MembershipRegistration{UserID: 3, Estado: model.StatusActive, FechaDeExpiracion: date(2024, 12, 1)})
		e, err := svc.Create(context.Background(), EnrollmentInput{UserID: 3, FechaDeExpiracion: &past})
		require.NoError(t, err)
		assert.Equal(t, model.StatusInactive, e.Status)
	})

	t.Run("manual edit", func(t *testing.T) {
		svc, _, _ := newEnrollmentFixture(now)
		e, err := svc.Create(context.Background(), EnrollmentInput{UserID: 3, FechaDeExpiracion: &past, ManualEdit: true})
		require.NoError(t, err)
		assert.Equal(t, model.StatusInactive, e.Status)
		assert.Equal(t, past, e.FechaDeExpiracion)
	})
}

func TestEnrollmentUpdate_KeepsStoredDate(t *testing.T) {
	now := date(2024, 1, 1)
	svc, store, _ := newEnrollmentFixture(now)
	store.add(model.Enrollment{ID: 5, UserID: 3, Status: model.StatusActive, FechaDeExpiracion: date(2023, 12, 1)})

	e, err := svc.Update(context.Background(), 5, EnrollmentInput{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInactive, e.Status)
	assert.Equal(t, date(2023, 12, 1), e.FechaDeExpiracion)

	future := date(2025, 1, 1)
	e, err = svc.Update(context.Background(), 5, EnrollmentInput{FechaDeExpiracion: &future})
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, e.Status)
	assert.Equal(t, future, store.rows[5].FechaDeExpiracion)
}

func TestEnrollmentListForUser_EvaluatesStatus(t *testing.T) {
	now := date(2024, 5, 10)
	svc, store, _ := newEnrollmentFixture(now)
	store.add(model.Enrollment{UserID: 3, Status: model.StatusActive, FechaDeExpiracion: now.AddDate(0, 0, -1)})

	list, err := svc.ListForUser(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusInactive, list[0].Status)
}

func TestCanAccessCourse(t *testing.T) {
	now := date(2024, 5, 10)
	svc, store, _ := newEnrollmentFixture(now)
	store.add(model.Enrollment{UserID: 3, CourseIDs: []uint64{11}, Status: model.StatusActive, FechaDeExpiracion: date(2025, 1, 1)})
	store.add(model.Enrollment{UserID: 3, CourseIDs: []uint64{12}, Status: model.StatusActive, FechaDeExpiracion: date(2024, 1, 1)})
	store.add(model.Enrollment{UserID: 3, CourseIDs: []uint64{13}, Status: model.StatusInactive, FechaDeExpiracion: date(2025, 1, 1)})
	store.add(model.Enrollment{UserID: 3, CourseIDs: []uint64{14}, Status: model.StatusActive, FechaDeExpiracion: now})
	store.add(model.Enrollment{UserID: 4, CourseIDs: []uint64{15}, Status: model.StatusActive, FechaDeExpiracion: date(2025, 1, 1)})

	cases := []struct {
		course uint64
		want   bool
	}{
		{11, true},
		{12, false}, // lapsed, sweep not yet run
		{13, false},
		{14, false}, // expires at the instant of the check
		{15, false}, // another user's
		{99, false},
	}
	for _, tc := range cases {
		ok, err := svc.CanAccessCourse(context.Background(), 3, tc.course)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ok, "course %d", tc.course)
	}
}

func TestExpirationSweeper(t *testing.T) {
	now := date(2024, 5, 10)
	enrollments := newEnrollmentStub()
	enrollments.add(model.Enrollment{UserID: 1, Status: model.StatusActive, FechaDeExpiracion: now.AddDate(0, 0, -1)})
	enrollments.add(model.Enrollment{UserID: 1, Status: model.StatusActive, FechaDeExpiracion: now.AddDate(0, 1, 0)})
	memberships := &membershipStub{}
	memberships.add(model.MembershipRegistration{UserID: 1, Estado: model.StatusActive, FechaDeExpiracion: now.AddDate(0, 0, -2)})

	sw := NewExpirationSweeper(enrollments, memberships, discardLogger())
	sw.Now = fixedClock(now)
	ne, nm, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), ne)
	assert.Equal(t, int64(1), nm)
	assert.Equal(t, model.StatusInactive, enrollments.rows[1].Status)
	assert.Equal(t, model.StatusActive, enrollments.rows[2].Status)
}
