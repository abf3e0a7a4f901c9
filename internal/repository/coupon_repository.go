package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/course-commerce/internal/database"
	"github.com/iliyamo/course-commerce/internal/model"
)

// Values of coupon_targets.target.
const (
	targetProduct         = "product"
	targetExcludeProduct  = "exclude_product"
	targetCategory        = "category"
	targetExcludeCategory = "exclude_category"
)

// CouponRepo persists coupons and their include/exclude lists.
type CouponRepo struct {
	db *sqlx.DB
}

// NewCouponRepo returns a CouponRepo bound to db.
func NewCouponRepo(db *sqlx.DB) *CouponRepo { return &CouponRepo{db: db} }

// GetByCode loads a coupon and its target lists.  Codes are matched
// case-insensitively.
func (r *CouponRepo) GetByCode(ctx context.Context, code string) (model.Coupon, error) {
	q := database.Conn(ctx, r.db)
	var c model.Coupon
	if err := q.GetContext(ctx, &c,
		"SELECT id, code, type, amount, expiration_date, restrictions, apply_mode, created_at FROM coupons WHERE code=? LIMIT 1",
		strings.ToUpper(strings.TrimSpace(code))); err != nil {
		return c, notFound(err)
	}
	var targets []struct {
		Target string `db:"target"`
		RefID  uint64 `db:"ref_id"`
	}
	if err := q.SelectContext(ctx, &targets,
		"SELECT target, ref_id FROM coupon_targets WHERE coupon_id=? ORDER BY target, ref_id", c.ID); err != nil {
		return c, err
	}
	for _, t := range targets {
		switch t.Target {
		case targetProduct:
			c.Products = append(c.Products, t.RefID)
		case targetExcludeProduct:
			c.ExcludeProducts = append(c.ExcludeProducts, t.RefID)
		case targetCategory:
			c.Categories = append(c.Categories, t.RefID)
		case targetExcludeCategory:
			c.ExcludeCategories = append(c.ExcludeCategories, t.RefID)
		}
	}
	return c, nil
}

// Create inserts the coupon and its target lists.  The code is stored
// upper-cased; a duplicate code yields ErrConflict.
func (r *CouponRepo) Create(ctx context.Context, c *model.Coupon) error {
	q := database.Conn(ctx, r.db)
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	res, err := q.ExecContext(ctx,
		"INSERT INTO coupons (code, type, amount, expiration_date, restrictions, apply_mode) VALUES (?,?,?,?,?,?)",
		c.Code, c.Type, c.Amount, c.ExpirationDate, c.Restrictions, c.ApplyMode)
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
	c.ID = uint64(id)
	lists := []struct {
		target string
		ids    []uint64
	}{
		{targetProduct, c.Products},
		{targetExcludeProduct, c.ExcludeProducts},
		{targetCategory, c.Categories},
		{targetExcludeCategory, c.ExcludeCategories},
	}
	for _, l := range lists {
		for _, ref := range l.ids {
			if _, err := q.ExecContext(ctx,
				"INSERT INTO coupon_targets (coupon_id, target, ref_id) VALUES (?,?,?)", c.ID, l.target, ref); err != nil {
				return fmt.Errorf("insert %s target %d: %w", l.target, ref, err)
			}
		}
	}
	return nil
}
