// Package service holds the business rules: order finalization, the
// membership entitlement engine, the enrollment expiration policy,
// coupon discounts, review averages, carts and payments.  Services
// depend on the small store interfaces below; the repository package
// provides the MySQL and Redis implementations.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/course-commerce/internal/model"
)

// TxRunner runs fn inside a database transaction carried by ctx.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Enqueuer schedules a background task.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any) error
}

type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	LockForUpdate(ctx context.Context, id uint64) error
}

type EnrollmentStore interface {
	Create(ctx context.Context, e *model.Enrollment) error
	GetByID(ctx context.Context, id uint64) (model.Enrollment, error)
	Update(ctx context.Context, id uint64, status string, exp time.Time) error
	OldestForUser(ctx context.Context, userID uint64, limit int) ([]model.Enrollment, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Enrollment, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type MembershipStore interface {
	LatestActive(ctx context.Context, userID uint64) (model.MembershipRegistration, bool, error)
	HasActive(ctx context.Context, userID uint64, now time.Time) (bool, error)
	Create(ctx context.Context, m *model.MembershipRegistration) error
	GetByID(ctx context.Context, id uint64) (model.MembershipRegistration, error)
	Update(ctx context.Context, id uint64, estado string, exp time.Time) error
	DeactivateOthers(ctx context.Context, userID, keepID uint64) (int64, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type CatalogStore interface {
	GetCourse(ctx context.Context, id uint64) (model.Course, error)
	GetWorkshop(ctx context.Context, id uint64) (model.Workshop, error)
	GetMembershipType(ctx context.Context, id uint64) (model.MembershipType, error)
	UpdateAverage(ctx context.Context, kind string, id uint64, avg float64) error
}

type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id uint64) (model.Order, error)
	GetByPedidoID(ctx context.Context, pedidoID string) (model.Order, error)
	ListByClient(ctx context.Context, clientID uint64) ([]model.Order, error)
	UpdateState(ctx context.Context, id uint64, state string) (string, error)
	ClaimFulfillment(ctx context.Context, id uint64) (bool, error)
}

type CouponStore interface {
	GetByCode(ctx context.Context, code string) (model.Coupon, error)
	Create(ctx context.Context, c *model.Coupon) error
}

type ReviewStore interface {
	Create(ctx context.Context, rv *model.Review) error
	GetByID(ctx context.Context, id uint64) (model.Review, error)
	Delete(ctx context.Context, id uint64) error
	ListByTarget(ctx context.Context, kind string, id uint64) ([]model.Review, error)
}

type CartStore interface {
	Save(ctx context.Context, id string, items []model.CartItem) error
	Load(ctx context.Context, id string) ([]model.CartItem, error)
}

// Notifier delivers best-effort change notifications to an external
// system.
type Notifier interface {
	Notify(ctx context.Context, event string, data any)
}

// oneYear moves t forward one calendar year.
func oneYear(t time.Time) time.Time { return t.AddDate(1, 0, 0) }
