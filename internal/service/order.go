package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/course-commerce/internal/model"
	"github.com/iliyamo/course-commerce/internal/queue"
	"github.com/iliyamo/course-commerce/internal/repository"
)

// Payment method labels stored on orders.
const (
	PaymentBankTransfer = "Transferencia Bancaria"
	PaymentCard         = "Tarjeta de Crédito"
)

// Viewer identifies the caller of a read that is scoped to a user.
type Viewer struct {
	UserID uint64
	Admin  bool
}

// CanSee reports whether the viewer may read data owned by userID.
func (v Viewer) CanSee(userID uint64) bool { return v.Admin || v.UserID == userID }

// OrderProduct is one product line sent by the checkout page.
type OrderProduct struct {
	PayloadID       uint64   `json:"payloadId"`
	Type            string   `json:"type"`
	OriginalPrice   float64  `json:"originalPrice"`
	DiscountedPrice *float64 `json:"discountedPrice"`
	FinalPrice      float64  `json:"finalPrice"`
	Schedule        *string  `json:"schedule"`
}

// BillingData is the customer block of a checkout.
type BillingData struct {
	ID        *uint64 `json:"id"`
	Nombre    string  `json:"nombre"`
	Apellidos string  `json:"apellidos"`
	Country   string  `json:"country"`
	Phone     string  `json:"phone"`
}

// CreateOrderInput is the checkout payload.
type CreateOrderInput struct {
	UserData        BillingData
	Products        []OrderProduct
	Total           float64
	DiscountedTotal *float64
	CouponCode      string
	SelectedMethod  string
	CapturaPago     *string
}

// OrderService creates orders and drives their state machine.
type OrderService struct {
	tx      TxRunner
	orders  OrderStore
	coupons CouponStore
	tasks   Enqueuer
	logger  *slog.Logger
	Now     func() time.Time
}

// NewOrderService wires the order service.
func NewOrderService(tx TxRunner, orders OrderStore, coupons CouponStore, tasks Enqueuer, logger *slog.Logger) *OrderService {
	return &OrderService{tx: tx, orders: orders, coupons: coupons, tasks: tasks, logger: logger, Now: time.Now}
}

// Create stores a pending order built from the checkout payload.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (model.Order, error) {
	if len(in.Products) == 0 {
		return model.Order{}, fmt.Errorf("%w: no products", ErrInvalidInput)
	}
	o := model.Order{
		PedidoID:    uuid.NewString(),
		Date:        s.Now().UTC(),
		State:       model.OrderPending,
		ClientID:    in.UserData.ID,
		Nombre:      in.UserData.Nombre,
		Apellidos:   in.UserData.Apellidos,
		Country:     in.UserData.Country,
		Phone:       in.UserData.Phone,
		Payment:     PaymentCard,
		CapturaPago: in.CapturaPago,
		TotalPrice:  in.Total,
	}
	if in.SelectedMethod == "bankTransfer" {
		o.Payment = PaymentBankTransfer
	}
	if in.DiscountedTotal != nil {
		o.TotalPrice = *in.DiscountedTotal
		if in.CouponCode != "" {
			c, err := s.coupons.GetByCode(ctx, in.CouponCode)
			switch {
			case err == nil:
				o.CouponID = &c.ID
			case errors.Is(err, repository.ErrNotFound):
				s.logger.Warn("order references unknown coupon", "code", in.CouponCode)
			default:
				return model.Order{}, fmt.Errorf("load coupon: %w", err)
			}
		}
	}
	for _, p := range in.Products {
		it, ok := orderItem(p)
		if !ok {
			return model.Order{}, fmt.Errorf("%w: unknown product type %q", ErrInvalidInput, p.Type)
		}
		o.Items = append(o.Items, it)
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error { return s.orders.Create(ctx, &o) })
	if err != nil {
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}
	s.logger.Info("order created", "order_id", o.ID, "pedido_id", o.PedidoID, "total", o.TotalPrice)
	return o, nil
}

func orderItem(p OrderProduct) (model.OrderItem, bool) {
	it := model.OrderItem{RefID: p.PayloadID, Price: p.OriginalPrice, FinalPrice: p.FinalPrice}
	switch p.Type {
	case model.ProductCourse:
		it.Kind = model.ItemCourse
	case model.ProductWorkshop:
		it.Kind = model.ItemWorkshop
		it.Schedule = p.Schedule
	case model.ProductMembership:
		it.Kind = model.ItemMembership
		return it, true
	default:
		return it, false
	}
	it.PriceWithDiscount = p.DiscountedPrice
	if p.OriginalPrice != p.FinalPrice {
		d := p.OriginalPrice - p.FinalPrice
		it.DiscountApplied = &d
	}
	return it, true
}

// SetState transitions the order.  Moving into completado enqueues the
// finalizer; the transition itself never waits for fulfillment.  An
// order that is already completado but was never fulfilled gets a
// resume task, so a retry after a failed enqueue still fulfills it.
func (s *OrderService) SetState(ctx context.Context, id uint64, state string) (model.Order, error) {
	switch state {
	case model.OrderPending, model.OrderCompleted, model.OrderCancelled:
	default:
		return model.Order{}, fmt.Errorf("%w: unknown state %q", ErrInvalidInput, state)
	}
	var prev string
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		prev, err = s.orders.UpdateState(ctx, id, state)
		return err
	})
	if err != nil {
		return model.Order{}, err
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	if state == model.OrderCompleted && (prev != model.OrderCompleted || o.FulfilledAt == nil) {
		task := queue.OrderCompletedTask{OrderID: id, PreviousState: prev, Resume: prev == model.OrderCompleted}
		if err := s.tasks.Enqueue(ctx, queue.TaskOrderCompleted, task); err != nil {
			return model.Order{}, fmt.Errorf("enqueue fulfillment: %w", err)
		}
	}
	s.logger.Info("order state changed", "order_id", id, "from", prev, "to", state)
	return o, nil
}

// CompleteByPedidoID marks the order with the given public id completed.
func (s *OrderService) CompleteByPedidoID(ctx context.Context, pedidoID string) (model.Order, error) {
	o, err := s.orders.GetByPedidoID(ctx, pedidoID)
	if err != nil {
		return model.Order{}, err
	}
	return s.SetState(ctx, o.ID, model.OrderCompleted)
}

// ListForClient returns the orders of clientID if the viewer may see
// them.
func (s *OrderService) ListForClient(ctx context.Context, v Viewer, clientID uint64) ([]model.Order, error) {
	if !v.CanSee(clientID) {
		return nil, repository.ErrForbidden
	}
	return s.orders.ListByClient(ctx, clientID)
}

// GetByPedidoID returns one order if the viewer owns it or is admin.
func (s *OrderService) GetByPedidoID(ctx context.Context, v Viewer, pedidoID string) (model.Order, error) {
	o, err := s.orders.GetByPedidoID(ctx, pedidoID)
	if err != nil {
		return model.Order{}, err
	}
	if !v.Admin && (o.ClientID == nil || *o.ClientID != v.UserID) {
		return model.Order{}, repository.ErrForbidden
	}
	return o, nil
}
