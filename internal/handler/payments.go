package handler

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-commerce/internal/service"
)

// Payments talks to the card gateway.
type Payments interface {
	FormToken(ctx context.Context, amount int64, orderID, email string) (string, error)
	HandleIPN(ctx context.Context, krAnswer, krHash string) (service.PaymentAnswer, error)
}

type PaymentHandler struct {
	payments Payments
	logger   *slog.Logger
}

func NewPaymentHandler(payments Payments, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

type formTokenReq struct {
	Amount  float64 `json:"amount" validate:"gt=0"`
	OrderID string  `json:"orderId" validate:"required"`
	Email   string  `json:"email" validate:"required,email"`
}

// Token serves POST /payments/token.  Amount is in soles and is sent to
// the gateway in cents.
func (h *PaymentHandler) Token(c echo.Context) error {
	var req formTokenReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	cents := int64(math.Round(req.Amount * 100))
	tok, err := h.payments.FormToken(ctx, cents, req.OrderID, req.Email)
	if err != nil {
		h.logger.Error("form token request failed", "order", req.OrderID, "error", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"formToken": tok})
}

// IPN serves POST /payments/ipn.  The gateway posts kr-answer and
// kr-hash as form fields.
func (h *PaymentHandler) IPN(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	answer, err := h.payments.HandleIPN(ctx, c.FormValue("kr-answer"), c.FormValue("kr-hash"))
	switch {
	case errors.Is(err, service.ErrBadSignature):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	case err != nil:
		return fail(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": answer.OrderStatus})
}
