package model

import "time"

// Coupon types.
const (
	CouponPercentage = "percentage"
	CouponFixed      = "fixed"
)

// Coupon apply modes.
const (
	ApplyPerCourse = "per-course"
	ApplyPerCart   = "per-cart"
)

// Coupon is a discount code.  The include/exclude lists live in
// coupon_targets and are loaded alongside the row.
//
// Restrictions marks the coupon as not combinable with other coupons.
// An order carries at most one coupon, so it always holds and is
// stored as true; nothing branches on it.
type Coupon struct {
	ID                uint64     `db:"id" json:"id"`
	Code              string     `db:"code" json:"code"`
	Type              string     `db:"type" json:"type"`
	Amount            float64    `db:"amount" json:"amount"`
	ExpirationDate    *time.Time `db:"expiration_date" json:"expirationDate"`
	Restrictions      bool       `db:"restrictions" json:"restrictions"`
	ApplyMode         string     `db:"apply_mode" json:"applyMode"`
	Products          []uint64   `db:"-" json:"products"`
	ExcludeProducts   []uint64   `db:"-" json:"excludeProducts"`
	Categories        []uint64   `db:"-" json:"categories"`
	ExcludeCategories []uint64   `db:"-" json:"excludeCategories"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
}

// Expired reports whether the coupon has an expiration date and now is
// past it.  Coupons without a date never expire.
func (c Coupon) Expired(now time.Time) bool {
	return c.ExpirationDate != nil && now.After(*c.ExpirationDate)
}

// Restricted reports whether any include/exclude list is non-empty.
func (c Coupon) Restricted() bool {
	return len(c.Products) > 0 || len(c.ExcludeProducts) > 0 ||
		len(c.Categories) > 0 || len(c.ExcludeCategories) > 0
}
