package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/course-commerce/internal/database"
	"github.com/iliyamo/course-commerce/internal/model"
)

// OrderRepo persists orders and their items.  Items are immutable once
// written; only the order state and the fulfillment claim change.
type OrderRepo struct {
	db *sqlx.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = "id, pedido_id, date, state, client_id, nombre, apellidos, country, phone, payment, captura_pago, coupon_id, total_price, fulfilled_at, created_at, updated_at"

const orderItemColumns = "id, order_id, kind, ref_id, price, price_with_discount, custom_total_price, discount_applied, final_price, schedule"

// Create inserts the order and all of its items.  Callers wrap it in a
// transaction so a failed item insert leaves no partial order.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	q := database.Conn(ctx, r.db)
	res, err := q.ExecContext(ctx,
		`INSERT INTO orders (pedido_id, date, state, client_id, nombre, apellidos, country, phone, payment, captura_pago, coupon_id, total_price)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.PedidoID, o.Date, o.State, o.ClientID, o.Nombre, o.Apellidos, o.Country, o.Phone,
		o.Payment, o.CapturaPago, o.CouponID, o.TotalPrice)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		res, err := q.ExecContext(ctx,
			`INSERT INTO order_items (order_id, kind, ref_id, price, price_with_discount, custom_total_price, discount_applied, final_price, schedule)
			 VALUES (?,?,?,?,?,?,?,?,?)`,
			it.OrderID, it.Kind, it.RefID, it.Price, it.PriceWithDiscount, it.CustomTotalPrice,
			it.DiscountApplied, it.FinalPrice, it.Schedule)
		if err != nil {
			return fmt.Errorf("insert item %d: %w", i, err)
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		it.ID = uint64(itemID)
	}
	return nil
}

// GetByID loads an order with its items.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (model.Order, error) {
	return r.getOne(ctx, "id=?", id)
}

// GetByPedidoID loads an order by its public uuid.
func (r *OrderRepo) GetByPedidoID(ctx context.Context, pedidoID string) (model.Order, error) {
	return r.getOne(ctx, "pedido_id=?", pedidoID)
}

func (r *OrderRepo) getOne(ctx context.Context, where string, arg interface{}) (model.Order, error) {
	q := database.Conn(ctx, r.db)
	var o model.Order
	if err := q.GetContext(ctx, &o, "SELECT "+orderColumns+" FROM orders WHERE "+where+" LIMIT 1", arg); err != nil {
		return o, notFound(err)
	}
	if err := q.SelectContext(ctx, &o.Items,
		"SELECT "+orderItemColumns+" FROM order_items WHERE order_id=? ORDER BY id", o.ID); err != nil {
		return o, err
	}
	return o, nil
}

// ListByClient returns the client's orders, newest first, with items.
func (r *OrderRepo) ListByClient(ctx context.Context, clientID uint64) ([]model.Order, error) {
	q := database.Conn(ctx, r.db)
	var orders []model.Order
	if err := q.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE client_id=? ORDER BY date DESC, id DESC", clientID); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}
	ids := make([]uint64, len(orders))
	index := make(map[uint64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}
	query, args, err := sqlx.In("SELECT "+orderItemColumns+" FROM order_items WHERE order_id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, err
	}
	var items []model.OrderItem
	if err := q.SelectContext(ctx, &items, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, it := range items {
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return orders, nil
}

// UpdateState sets the order state and returns the state it had before.
// The row is locked for the rest of the surrounding transaction so two
// concurrent transitions observe each other's previous state.
func (r *OrderRepo) UpdateState(ctx context.Context, id uint64, state string) (string, error) {
	q := database.Conn(ctx, r.db)
	var prev string
	if err := q.GetContext(ctx, &prev, "SELECT state FROM orders WHERE id=? FOR UPDATE", id); err != nil {
		return "", notFound(err)
	}
	if _, err := q.ExecContext(ctx, "UPDATE orders SET state=? WHERE id=?", state, id); err != nil {
		return "", err
	}
	return prev, nil
}

// ClaimFulfillment marks the order as fulfilled if no one has done so
// yet.  It reports false when the order was already claimed, which makes
// completion side effects safe against task redelivery.
func (r *OrderRepo) ClaimFulfillment(ctx context.Context, id uint64) (bool, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		"UPDATE orders SET fulfilled_at=UTC_TIMESTAMP() WHERE id=? AND fulfilled_at IS NULL", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
