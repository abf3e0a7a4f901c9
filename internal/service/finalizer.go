package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/course-commerce/internal/model"
)

// EnrollmentCreator creates enrollments through the expiration policy.
type EnrollmentCreator interface {
	Create(ctx context.Context, in EnrollmentInput) (model.Enrollment, error)
}

// MembershipCreator creates registrations through the entitlement
// engine.
type MembershipCreator interface {
	Create(ctx context.Context, in MembershipInput) (model.MembershipRegistration, error)
}

// OrderFinalizer runs the completion side effects of an order: one
// enrollment per purchased course and one membership registration per
// purchased membership.
type OrderFinalizer struct {
	orders      OrderStore
	enrollments EnrollmentCreator
	memberships MembershipCreator
	notifier    Notifier
	concurrency int
	logger      *slog.Logger
}

// NewOrderFinalizer returns a finalizer that creates at most concurrency
// enrollments at a time.
func NewOrderFinalizer(orders OrderStore, enrollments EnrollmentCreator, memberships MembershipCreator,
	notifier Notifier, concurrency int, logger *slog.Logger) *OrderFinalizer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &OrderFinalizer{
		orders:      orders,
		enrollments: enrollments,
		memberships: memberships,
		notifier:    notifier,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Finalize fulfills the order once.  A previous state of completado, an
// order no longer in completado, or a fulfillment already claimed by an
// earlier run all make it a no-op.  Failures of individual items are
// logged and do not stop the others.
func (f *OrderFinalizer) Finalize(ctx context.Context, orderID uint64, previousState string) error {
	if previousState == model.OrderCompleted {
		return nil
	}
	return f.fulfill(ctx, orderID)
}

// Resume fulfills an order that reached completado without being
// fulfilled.  The fulfillment claim keeps it a no-op for orders that
// were fulfilled in the meantime.
func (f *OrderFinalizer) Resume(ctx context.Context, orderID uint64) error {
	return f.fulfill(ctx, orderID)
}

func (f *OrderFinalizer) fulfill(ctx context.Context, orderID uint64) error {
	order, err := f.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", orderID, err)
	}
	if order.State != model.OrderCompleted {
		f.logger.Info("order no longer completed, skipping", "order_id", orderID, "state", order.State)
		return nil
	}
	if order.ClientID == nil {
		f.logger.Warn("completed order has no client, skipping", "order_id", orderID)
		return nil
	}
	if err := f.claim(ctx, orderID); err != nil {
		if errors.Is(err, ErrAlreadyFulfilled) {
			f.logger.Info("order already fulfilled", "order_id", orderID)
			return nil
		}
		return err
	}

	userID := *order.ClientID
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for _, courseID := range order.RefsOf(model.ItemCourse) {
		g.Go(func() error {
			_, err := f.enrollments.Create(gctx, EnrollmentInput{UserID: userID, CourseIDs: []uint64{courseID}})
			if err != nil {
				f.logger.Error("create enrollment failed", "order_id", orderID, "course_id", courseID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, typeID := range order.RefsOf(model.ItemMembership) {
		if _, err := f.memberships.Create(ctx, MembershipInput{UserID: userID, TypeID: typeID, Estado: model.StatusActive}); err != nil {
			f.logger.Error("create membership failed", "order_id", orderID, "membership_type_id", typeID, "error", err)
		}
	}

	f.logger.Info("order fulfilled", "order_id", orderID, "pedido_id", order.PedidoID)
	f.notifier.Notify(ctx, "order.completed", order)
	return nil
}

func (f *OrderFinalizer) claim(ctx context.Context, orderID uint64) error {
	ok, err := f.orders.ClaimFulfillment(ctx, orderID)
	if err != nil {
		return fmt.Errorf("claim order %d: %w", orderID, err)
	}
	if !ok {
		return ErrAlreadyFulfilled
	}
	return nil
}
