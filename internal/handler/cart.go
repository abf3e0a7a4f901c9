package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-commerce/internal/model"
	"github.com/iliyamo/course-commerce/internal/service"
)

const cartCookie = "cartId"

// Carts validates client carts and loads stored ones.
type Carts interface {
	Validate(ctx context.Context, products []service.CartProduct) (string, []model.CartItem, error)
	Load(ctx context.Context, id string) ([]model.CartItem, error)
}

type CartHandler struct {
	carts  Carts
	ttl    time.Duration
	logger *slog.Logger
}

func NewCartHandler(carts Carts, ttl time.Duration, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, ttl: ttl, logger: logger}
}

type validateCartReq struct {
	ProductArray   []service.CartProduct `json:"productArray"`
	UserIdentifier string                `json:"userIdentifier"`
}

// Validate serves POST /validate-cart.  The stored cart id is returned
// in an HttpOnly cookie for the checkout page.
func (h *CartHandler) Validate(c echo.Context) error {
	var req validateCartReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.UserIdentifier) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userIdentifier required"})
	}
	if len(req.ProductArray) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no products sent"})
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	id, items, err := h.carts.Validate(ctx, req.ProductArray)
	if err != nil {
		return fail(c, h.logger, err)
	}
	c.SetCookie(&http.Cookie{
		Name:     cartCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	return c.JSON(http.StatusOK, echo.Map{"success": true, "validatedCart": items})
}

// CheckoutData serves GET /checkout-data from the cartId cookie.
func (h *CartHandler) CheckoutData(c echo.Context) error {
	var id string
	if ck, err := c.Cookie(cartCookie); err == nil {
		id = ck.Value
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	items, err := h.carts.Load(ctx, id)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"validatedCart": items})
}
