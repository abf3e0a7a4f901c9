package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/course-commerce/internal/model"
)

// EnrollmentInput is the writable part of an enrollment.
// FechaDeExpiracion nil means now + 1 year.  ManualEdit marks an admin
// editing the date by hand, which allows setting it in the past.
type EnrollmentInput struct {
	UserID            uint64
	CourseIDs         []uint64
	FechaDeExpiracion *time.Time
	ManualEdit        bool
}

// Evaluate returns the status an enrollment should have at now: an
// expiration strictly before now means inactivo.  Otherwise the stored
// status is kept.
func Evaluate(e model.Enrollment, now time.Time) string {
	if e.Expired(now) {
		return model.StatusInactive
	}
	if e.Status == "" {
		return model.StatusActive
	}
	return e.Status
}

// EnrollmentService applies the expiration policy to every enrollment
// write.
type EnrollmentService struct {
	tx          TxRunner
	enrollments EnrollmentStore
	memberships MembershipStore
	logger      *slog.Logger
	Now         func() time.Time
}

// NewEnrollmentService wires the enrollment policy.
func NewEnrollmentService(tx TxRunner, enrollments EnrollmentStore, memberships MembershipStore, logger *slog.Logger) *EnrollmentService {
	return &EnrollmentService{tx: tx, enrollments: enrollments, memberships: memberships, logger: logger, Now: time.Now}
}

// resolve computes the effective expiration and status of a write.
func (s *EnrollmentService) resolve(ctx context.Context, in EnrollmentInput) (time.Time, string, error) {
	if in.UserID == 0 {
		return time.Time{}, "", ErrUserRequired
	}
	now := s.Now().UTC()
	if in.FechaDeExpiracion == nil {
		return oneYear(now), model.StatusActive, nil
	}
	exp := in.FechaDeExpiracion.UTC()
	if !exp.Before(now) {
		return exp, model.StatusActive, nil
	}
	if !in.ManualEdit {
		ok, err := s.memberships.HasActive(ctx, in.UserID, now)
		if err != nil {
			return time.Time{}, "", fmt.Errorf("check membership: %w", err)
		}
		if !ok {
			return time.Time{}, "", ErrPastExpiration
		}
	}
	return exp, model.StatusInactive, nil
}

// Create stores a new enrollment after applying the policy.  The row and
// its course links are written in one transaction.
func (s *EnrollmentService) Create(ctx context.Context, in EnrollmentInput) (model.Enrollment, error) {
	exp, status, err := s.resolve(ctx, in)
	if err != nil {
		return model.Enrollment{}, err
	}
	e := model.Enrollment{
		UserID:            in.UserID,
		CourseIDs:         in.CourseIDs,
		Status:            status,
		FechaDeExpiracion: exp,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.enrollments.Create(ctx, &e)
	})
	if err != nil {
		return model.Enrollment{}, fmt.Errorf("create enrollment: %w", err)
	}
	s.logger.Info("enrollment created", "enrollment_id", e.ID, "user_id", e.UserID, "status", e.Status)
	return e, nil
}

// Update rewrites the expiration of an existing enrollment.  The user
// reference is taken from the stored row when the input omits it.
func (s *EnrollmentService) Update(ctx context.Context, id uint64, in EnrollmentInput) (model.Enrollment, error) {
	cur, err := s.enrollments.GetByID(ctx, id)
	if err != nil {
		return model.Enrollment{}, err
	}
	if in.UserID == 0 {
		in.UserID = cur.UserID
	}
	if in.FechaDeExpiracion == nil {
		keep := cur.FechaDeExpiracion
		in.FechaDeExpiracion = &keep
		// Keeping the stored date is never a request to move it.
		in.ManualEdit = true
	}
	exp, status, err := s.resolve(ctx, in)
	if err != nil {
		return model.Enrollment{}, err
	}
	if err := s.enrollments.Update(ctx, id, status, exp); err != nil {
		return model.Enrollment{}, fmt.Errorf("update enrollment: %w", err)
	}
	cur.Status, cur.FechaDeExpiracion = status, exp
	return cur, nil
}

// ListForUser returns the user's enrollments with their status
// evaluated at the current time.
func (s *EnrollmentService) ListForUser(ctx context.Context, userID uint64) ([]model.Enrollment, error) {
	list, err := s.enrollments.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.Now().UTC()
	for i := range list {
		list[i].Status = Evaluate(list[i], now)
	}
	return list, nil
}

// CanAccessCourse reports whether the user holds an activo, unexpired
// enrollment that covers the course.
func (s *EnrollmentService) CanAccessCourse(ctx context.Context, userID, courseID uint64) (bool, error) {
	list, err := s.enrollments.ListByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	now := s.Now().UTC()
	for _, e := range list {
		if Evaluate(e, now) != model.StatusActive || !e.FechaDeExpiracion.After(now) {
			continue
		}
		for _, c := range e.CourseIDs {
			if c == courseID {
				return true, nil
			}
		}
	}
	return false, nil
}
