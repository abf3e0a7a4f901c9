package model

import "time"

// Order states stored in orders.state.
const (
	OrderPending   = "pendiente"
	OrderCompleted = "completado"
	OrderCancelled = "cancelado"
)

// Kinds of purchased items stored in order_items.kind.
const (
	ItemCourse     = "course"
	ItemWorkshop   = "workshop"
	ItemMembership = "membership"
)

// Order is a snapshot of a purchase.  Items keep the prices the client
// paid at the time of purchase so later catalog edits do not rewrite
// history.
//
// Fields:
//  ID          – primary key identifier.
//  PedidoID    – public uuid handed to the customer.
//  Date        – purchase date.
//  State       – pendiente, completado or cancelado.
//  ClientID    – owning user (nullable for guest checkouts).
//  Payment     – human readable payment method.
//  CapturaPago – URL of the uploaded payment capture, if any.
//  CouponID    – coupon applied to the order total, if any.
//  TotalPrice  – sum of final prices after discounts.
//  FulfilledAt – set once completion side effects have been claimed.
type Order struct {
	ID          uint64      `db:"id" json:"id"`
	PedidoID    string      `db:"pedido_id" json:"pedidoID"`
	Date        time.Time   `db:"date" json:"date"`
	State       string      `db:"state" json:"state"`
	ClientID    *uint64     `db:"client_id" json:"client"`
	Nombre      string      `db:"nombre" json:"nombre"`
	Apellidos   string      `db:"apellidos" json:"apellidos"`
	Country     string      `db:"country" json:"country"`
	Phone       string      `db:"phone" json:"phone"`
	Payment     string      `db:"payment" json:"payment"`
	CapturaPago *string     `db:"captura_pago" json:"capturaPago"`
	CouponID    *uint64     `db:"coupon_id" json:"activeCoupon"`
	TotalPrice  float64     `db:"total_price" json:"totalPrice"`
	FulfilledAt *time.Time  `db:"fulfilled_at" json:"fulfilledAt,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
	Items       []OrderItem `db:"-" json:"items"`
}

// OrderItem is one purchased course, workshop or membership.
type OrderItem struct {
	ID                uint64   `db:"id" json:"id"`
	OrderID           uint64   `db:"order_id" json:"-"`
	Kind              string   `db:"kind" json:"kind"`
	RefID             uint64   `db:"ref_id" json:"ref"`
	Price             float64  `db:"price" json:"price"`
	PriceWithDiscount *float64 `db:"price_with_discount" json:"pricewithDiscount"`
	CustomTotalPrice  *float64 `db:"custom_total_price" json:"customTotalPrice"`
	DiscountApplied   *float64 `db:"discount_applied" json:"discountApplied"`
	FinalPrice        float64  `db:"final_price" json:"finalPrice"`
	Schedule          *string  `db:"schedule" json:"schedule,omitempty"`
}

// RefsOf returns the referenced ids of all items of the given kind, in
// item order.
func (o Order) RefsOf(kind string) []uint64 {
	var ids []uint64
	for _, it := range o.Items {
		if it.Kind == kind {
			ids = append(ids, it.RefID)
		}
	}
	return ids
}
