package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-commerce/internal/middleware"
	"github.com/iliyamo/course-commerce/internal/model"
	"github.com/iliyamo/course-commerce/internal/service"
)

// Orders is the order service as seen by HTTP handlers.
type Orders interface {
	Create(ctx context.Context, in service.CreateOrderInput) (model.Order, error)
	SetState(ctx context.Context, id uint64, state string) (model.Order, error)
	ListForClient(ctx context.Context, v service.Viewer, clientID uint64) ([]model.Order, error)
	GetByPedidoID(ctx context.Context, v service.Viewer, pedidoID string) (model.Order, error)
}

type OrderHandler struct {
	orders Orders
	logger *slog.Logger
}

func NewOrderHandler(orders Orders, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

func viewer(c echo.Context) service.Viewer {
	return service.Viewer{UserID: middleware.UserID(c), Admin: middleware.Role(c) == model.RoleAdmin}
}

type createOrderReq struct {
	UserData        service.BillingData    `json:"userData"`
	Products        []service.OrderProduct `json:"products"`
	Total           float64                `json:"total"`
	DiscountedTotal *float64               `json:"discountedTotal"`
	Coupon          string                 `json:"coupon"`
	SelectedMethod  string                 `json:"selectedMethod"`
	CapturaPago     *string                `json:"capturaPago"`
}

// Create serves POST /create-order.  A logged-in caller always owns the
// order; guests may pass their id in userData.
func (h *OrderHandler) Create(c echo.Context) error {
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if uid := middleware.UserID(c); uid != 0 {
		req.UserData.ID = &uid
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	o, err := h.orders.Create(ctx, service.CreateOrderInput{
		UserData:        req.UserData,
		Products:        req.Products,
		Total:           req.Total,
		DiscountedTotal: req.DiscountedTotal,
		CouponCode:      strings.TrimSpace(req.Coupon),
		SelectedMethod:  req.SelectedMethod,
		CapturaPago:     req.CapturaPago,
	})
	if err != nil {
		return fail(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, o)
}

type setStateReq struct {
	State string `json:"state" validate:"required,oneof=pendiente completado cancelado"`
}

// SetState serves PATCH /v1/admin/orders/:id/state.
func (h *OrderHandler) SetState(c echo.Context) error {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req setStateReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	o, err := h.orders.SetState(ctx, id, req.State)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, o)
}

// MyOrders serves GET /v1/myorders?userId=.  Without userId the caller's
// own orders are returned.
func (h *OrderHandler) MyOrders(c echo.Context) error {
	v := viewer(c)
	if v.UserID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	clientID := v.UserID
	if raw := c.QueryParam("userId"); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid userId"})
		}
		clientID = id
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.orders.ListForClient(ctx, v, clientID)
	if err != nil {
		return fail(c, h.logger, err)
	}
	if list == nil {
		list = []model.Order{}
	}
	return c.JSON(http.StatusOK, echo.Map{"docs": list, "totalDocs": len(list)})
}

// ByPedidoID serves GET /v1/myorder-by-pedidoid?pedidoId=.
func (h *OrderHandler) ByPedidoID(c echo.Context) error {
	pedidoID := strings.TrimSpace(c.QueryParam("pedidoId"))
	if pedidoID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "pedidoId required"})
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	o, err := h.orders.GetByPedidoID(ctx, viewer(c), pedidoID)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, o)
}
