package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Expirer flips rows whose expiration passed before now to inactivo and
// reports how many changed.
type Expirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// ExpirationSweeper deactivates expired enrollments and membership
// registrations in bulk, so listings and the entitlement engine see
// the same status Evaluate would report.
type ExpirationSweeper struct {
	enrollments Expirer
	memberships Expirer
	logger      *slog.Logger
	Now         func() time.Time
}

// NewExpirationSweeper wires the sweeper.
func NewExpirationSweeper(enrollments, memberships Expirer, logger *slog.Logger) *ExpirationSweeper {
	return &ExpirationSweeper{enrollments: enrollments, memberships: memberships, logger: logger, Now: time.Now}
}

// Sweep runs one pass.  Memberships are swept even when the enrollment
// pass fails.
func (s *ExpirationSweeper) Sweep(ctx context.Context) (enrollments, memberships int64, err error) {
	now := s.Now().UTC()
	enrollments, eerr := s.enrollments.ExpireOverdue(ctx, now)
	if eerr != nil {
		eerr = fmt.Errorf("expire enrollments: %w", eerr)
	}
	memberships, merr := s.memberships.ExpireOverdue(ctx, now)
	if merr != nil {
		merr = fmt.Errorf("expire memberships: %w", merr)
	}
	if eerr != nil {
		return enrollments, memberships, eerr
	}
	if merr != nil {
		return enrollments, memberships, merr
	}
	s.logger.Info("expiration sweep done", "enrollments", enrollments, "memberships", memberships)
	return enrollments, memberships, nil
}
