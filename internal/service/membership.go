package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/course-commerce/internal/model"
)

// MembershipInput describes a new membership registration.  Estado
// defaults to activo.  FechaDeExpiracion is only honored when it has
// already passed, in which case the registration is stored inactive
// and no entitlement logic runs.
type MembershipInput struct {
	UserID            uint64
	TypeID            uint64
	Estado            string
	FechaDeExpiracion *time.Time
}

// MembershipUpdate carries the fields an admin may change.
type MembershipUpdate struct {
	Estado            *string
	FechaDeExpiracion *time.Time
}

// MembershipService is the membership entitlement engine.  Every write
// for a user runs in one transaction holding that user's row lock, so
// concurrent purchases cannot leave two active registrations.
type MembershipService struct {
	tx          TxRunner
	users       UserStore
	memberships MembershipStore
	enrollments EnrollmentStore
	catalog     CatalogStore
	notifier    Notifier
	logger      *slog.Logger
	Now         func() time.Time
}

// NewMembershipService wires the entitlement engine.
func NewMembershipService(tx TxRunner, users UserStore, memberships MembershipStore, enrollments EnrollmentStore,
	catalog CatalogStore, notifier Notifier, logger *slog.Logger) *MembershipService {
	return &MembershipService{
		tx:          tx,
		users:       users,
		memberships: memberships,
		enrollments: enrollments,
		catalog:     catalog,
		notifier:    notifier,
		logger:      logger,
		Now:         time.Now,
	}
}

// Create registers a membership and applies its entitlements.
func (s *MembershipService) Create(ctx context.Context, in MembershipInput) (model.MembershipRegistration, error) {
	if in.UserID == 0 {
		return model.MembershipRegistration{}, ErrUserRequired
	}
	mt, err := s.catalog.GetMembershipType(ctx, in.TypeID)
	if err != nil {
		return model.MembershipRegistration{}, fmt.Errorf("membership type %d: %w", in.TypeID, err)
	}
	now := s.Now().UTC()
	reg := model.MembershipRegistration{UserID: in.UserID, TypeID: mt.ID, Estado: in.Estado}
	if reg.Estado == "" {
		reg.Estado = model.StatusActive
	}

	if in.FechaDeExpiracion != nil && in.FechaDeExpiracion.Before(now) {
		reg.Estado = model.StatusInactive
		reg.FechaDeExpiracion = in.FechaDeExpiracion.UTC()
		if err := s.memberships.Create(ctx, &reg); err != nil {
			return model.MembershipRegistration{}, fmt.Errorf("create registration: %w", err)
		}
		s.logger.Info("membership stored inactive, expiration already passed",
			"registration_id", reg.ID, "user_id", reg.UserID)
		s.notifier.Notify(ctx, "membership.created", reg)
		return reg, nil
	}

	var extended int
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.users.LockForUpdate(ctx, in.UserID); err != nil {
			return fmt.Errorf("lock user %d: %w", in.UserID, err)
		}
		latest, ok, err := s.memberships.LatestActive(ctx, in.UserID)
		if err != nil {
			return fmt.Errorf("latest active membership: %w", err)
		}
		if ok {
			reg.FechaDeExpiracion = oneYear(latest.FechaDeExpiracion)
		} else {
			reg.FechaDeExpiracion = oneYear(now)
		}
		if err := s.memberships.Create(ctx, &reg); err != nil {
			return fmt.Errorf("create registration: %w", err)
		}
		if reg.IsActive() {
			n, err := s.memberships.DeactivateOthers(ctx, reg.UserID, reg.ID)
			if err != nil {
				return fmt.Errorf("deactivate siblings: %w", err)
			}
			if n > 0 {
				s.logger.Info("sibling memberships deactivated", "user_id", reg.UserID, "count", n)
			}
		}
		extended, err = s.extendEnrollments(ctx, reg.UserID, mt.Cantidad, now)
		return err
	})
	if err != nil {
		return model.MembershipRegistration{}, err
	}

	s.logger.Info("membership created",
		"registration_id", reg.ID, "user_id", reg.UserID, "expires", reg.FechaDeExpiracion, "enrollments_extended", extended)
	s.notifier.Notify(ctx, "membership.created", reg)
	return reg, nil
}

// extendEnrollments extends up to count of the user's oldest
// enrollments.  Active ones gain a year on their current expiration;
// inactive ones restart at now + 1 year and become active.
func (s *MembershipService) extendEnrollments(ctx context.Context, userID uint64, count int, now time.Time) (int, error) {
	if count <= 0 {
		return 0, nil
	}
	list, err := s.enrollments.OldestForUser(ctx, userID, count)
	if err != nil {
		return 0, fmt.Errorf("oldest enrollments: %w", err)
	}
	for _, e := range list {
		exp := oneYear(now)
		if e.IsActive() {
			exp = oneYear(e.FechaDeExpiracion)
		}
		if err := s.enrollments.Update(ctx, e.ID, model.StatusActive, exp); err != nil {
			return 0, fmt.Errorf("extend enrollment %d: %w", e.ID, err)
		}
	}
	return len(list), nil
}

// Update applies an admin edit.  An expired registration is flipped to
// inactive; an active one deactivates its siblings.  Enrollments are
// not extended on update.
func (s *MembershipService) Update(ctx context.Context, id uint64, in MembershipUpdate) (model.MembershipRegistration, error) {
	var reg model.MembershipRegistration
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		cur, err := s.memberships.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.users.LockForUpdate(ctx, cur.UserID); err != nil {
			return fmt.Errorf("lock user %d: %w", cur.UserID, err)
		}
		if in.Estado != nil {
			cur.Estado = *in.Estado
		}
		if in.FechaDeExpiracion != nil {
			cur.FechaDeExpiracion = in.FechaDeExpiracion.UTC()
		}
		if cur.Expired(s.Now().UTC()) {
			cur.Estado = model.StatusInactive
		}
		if err := s.memberships.Update(ctx, cur.ID, cur.Estado, cur.FechaDeExpiracion); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		if cur.IsActive() {
			if _, err := s.memberships.DeactivateOthers(ctx, cur.UserID, cur.ID); err != nil {
				return fmt.Errorf("deactivate siblings: %w", err)
			}
		}
		reg = cur
		return nil
	})
	if err != nil {
		return model.MembershipRegistration{}, err
	}
	s.notifier.Notify(ctx, "membership.updated", reg)
	return reg, nil
}
