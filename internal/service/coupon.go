package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/course-commerce/internal/model"
	"github.com/iliyamo/course-commerce/internal/repository"
)

// CartLine is a cart entry as sent to /apply-coupon.
type CartLine struct {
	ID         uint64  `json:"id"`
	Type       string  `json:"type"`
	FinalPrice float64 `json:"finalPrice" validate:"gte=0"`
}

// CouponQuote is the result of applying a coupon to a cart.
type CouponQuote struct {
	Total           float64 `json:"total"`
	DiscountAmount  float64 `json:"discountAmount"`
	DiscountedTotal float64 `json:"discountedTotal"`
}

// Discount computes the discount of c on lines.  categories maps course
// ids to their category ids and is only consulted for restricted
// coupons when enforce is set.
//
// A coupon without include/exclude lists, or any coupon when enforce is
// off, discounts the whole cart once: total*amount/100 or amount.  A
// restricted coupon only discounts eligible course lines; a fixed
// per-course coupon takes amount off each eligible line.  Negative line
// prices count as zero, and the discount never exceeds the cart total.
func Discount(c model.Coupon, lines []CartLine, categories map[uint64][]uint64, enforce bool) CouponQuote {
	var total float64
	for _, l := range lines {
		total += max(l.FinalPrice, 0)
	}

	var discount float64
	if !enforce || !c.Restricted() {
		discount = flatDiscount(c, total)
	} else {
		var eligible float64
		var perLine float64
		for _, l := range lines {
			if !eligibleLine(c, l, categories[l.ID]) {
				continue
			}
			eligible += max(l.FinalPrice, 0)
			perLine += min(c.Amount, max(l.FinalPrice, 0))
		}
		switch {
		case c.Type == model.CouponFixed && c.ApplyMode == model.ApplyPerCourse:
			discount = perLine
		default:
			discount = min(flatDiscount(c, eligible), eligible)
		}
	}

	if discount > total {
		discount = total
	}
	if discount < 0 {
		discount = 0
	}
	return CouponQuote{Total: total, DiscountAmount: discount, DiscountedTotal: total - discount}
}

func flatDiscount(c model.Coupon, total float64) float64 {
	if c.Type == model.CouponPercentage {
		return total * (c.Amount / 100)
	}
	return c.Amount
}

// eligibleLine applies the include/exclude lists, which reference
// courses and course categories.  Workshops and memberships only pass
// when the coupon has no include list.
func eligibleLine(c model.Coupon, l CartLine, cats []uint64) bool {
	isCourse := l.Type == "" || l.Type == model.ProductCourse
	if !isCourse {
		return len(c.Products) == 0 && len(c.Categories) == 0
	}
	if slices.Contains(c.ExcludeProducts, l.ID) {
		return false
	}
	for _, cat := range cats {
		if slices.Contains(c.ExcludeCategories, cat) {
			return false
		}
	}
	if len(c.Products) == 0 && len(c.Categories) == 0 {
		return true
	}
	if slices.Contains(c.Products, l.ID) {
		return true
	}
	for _, cat := range cats {
		if slices.Contains(c.Categories, cat) {
			return true
		}
	}
	return false
}

// CouponService validates coupon codes against carts and creates
// coupons.
type CouponService struct {
	coupons CouponStore
	catalog CatalogStore
	enforce bool
	Now     func() time.Time
}

// NewCouponService returns a CouponService.  enforce turns on the
// include/exclude lists and apply mode.
func NewCouponService(coupons CouponStore, catalog CatalogStore, enforce bool) *CouponService {
	return &CouponService{coupons: coupons, catalog: catalog, enforce: enforce, Now: time.Now}
}

// Apply computes the discount of the coupon with the given code.
func (s *CouponService) Apply(ctx context.Context, code string, lines []CartLine) (CouponQuote, error) {
	c, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return CouponQuote{}, ErrCouponNotFound
		}
		return CouponQuote{}, err
	}
	if c.Expired(s.Now()) {
		return CouponQuote{}, ErrCouponExpired
	}
	var cats map[uint64][]uint64
	if s.enforce && (len(c.Categories) > 0 || len(c.ExcludeCategories) > 0) {
		if cats, err = s.courseCategories(ctx, lines); err != nil {
			return CouponQuote{}, err
		}
	}
	return Discount(c, lines, cats, s.enforce), nil
}

func (s *CouponService) courseCategories(ctx context.Context, lines []CartLine) (map[uint64][]uint64, error) {
	out := make(map[uint64][]uint64)
	for _, l := range lines {
		if l.Type != "" && l.Type != model.ProductCourse {
			continue
		}
		if _, seen := out[l.ID]; seen {
			continue
		}
		course, err := s.catalog.GetCourse(ctx, l.ID)
		if errors.Is(err, repository.ErrNotFound) {
			out[l.ID] = nil
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("course %d: %w", l.ID, err)
		}
		out[l.ID] = course.Categorias
	}
	return out, nil
}

// Create stores a coupon, filling defaults.  An empty code gets a
// random four character one.
func (s *CouponService) Create(ctx context.Context, c *model.Coupon) error {
	if c.Code == "" {
		c.Code = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	}
	if c.Type == "" {
		c.Type = model.CouponPercentage
	}
	if c.ApplyMode == "" {
		c.ApplyMode = model.ApplyPerCourse
	}
	if c.Type != model.CouponPercentage && c.Type != model.CouponFixed {
		return fmt.Errorf("%w: coupon type %q", ErrInvalidInput, c.Type)
	}
	if c.ApplyMode != model.ApplyPerCourse && c.ApplyMode != model.ApplyPerCart {
		return fmt.Errorf("%w: apply mode %q", ErrInvalidInput, c.ApplyMode)
	}
	if c.Amount < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidInput)
	}
	c.Restrictions = true
	return s.coupons.Create(ctx, c)
}
