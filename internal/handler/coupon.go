package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-commerce/internal/model"
	"github.com/iliyamo/course-commerce/internal/service"
)

// Coupons validates and creates discount codes.
type Coupons interface {
	Apply(ctx context.Context, code string, lines []service.CartLine) (service.CouponQuote, error)
	Create(ctx context.Context, c *model.Coupon) error
}

type CouponHandler struct {
	coupons Coupons
	logger  *slog.Logger
}

func NewCouponHandler(coupons Coupons, logger *slog.Logger) *CouponHandler {
	return &CouponHandler{coupons: coupons, logger: logger}
}

type applyCouponReq struct {
	CouponCode   string             `json:"couponCode"`
	CartProducts []service.CartLine `json:"cartProducts" validate:"dive"`
}

// Apply serves POST /apply-coupon.
func (h *CouponHandler) Apply(c echo.Context) error {
	var req applyCouponReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.CouponCode) == "" || req.CartProducts == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid data"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid data"})
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	q, err := h.coupons.Apply(ctx, strings.TrimSpace(req.CouponCode), req.CartProducts)
	switch {
	case errors.Is(err, service.ErrCouponNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"isValid": false, "message": "coupon not found"})
	case errors.Is(err, service.ErrCouponExpired):
		return c.JSON(http.StatusBadRequest, echo.Map{"isValid": false, "message": "coupon expired"})
	case err != nil:
		return fail(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"isValid":         true,
		"discountAmount":  q.DiscountAmount,
		"discountedTotal": q.DiscountedTotal,
		"message":         "coupon applied",
	})
}

type createCouponReq struct {
	Code              string     `json:"code" validate:"omitempty,alphanum,max=64"`
	Type              string     `json:"type" validate:"omitempty,oneof=percentage fixed"`
	Amount            float64    `json:"amount" validate:"gte=0"`
	ExpirationDate    *time.Time `json:"expirationDate"`
	ApplyMode         string     `json:"applyMode" validate:"omitempty,oneof=per-course per-cart"`
	Products          []uint64   `json:"products"`
	ExcludeProducts   []uint64   `json:"excludeProducts"`
	Categories        []uint64   `json:"categories"`
	ExcludeCategories []uint64   `json:"excludeCategories"`
}

// Create serves POST /v1/admin/coupons.
func (h *CouponHandler) Create(c echo.Context) error {
	var req createCouponReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	coupon := model.Coupon{
		Code:              strings.ToUpper(req.Code),
		Type:              req.Type,
		Amount:            req.Amount,
		ExpirationDate:    req.ExpirationDate,
		ApplyMode:         req.ApplyMode,
		Products:          req.Products,
		ExcludeProducts:   req.ExcludeProducts,
		Categories:        req.Categories,
		ExcludeCategories: req.ExcludeCategories,
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.coupons.Create(ctx, &coupon); err != nil {
		return fail(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, coupon)
}
