package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-commerce/internal/service"
)

// Mailer delivers contact form messages.
type Mailer interface {
	Send(ctx context.Context, m service.ContactMessage) error
}

type ContactHandler struct {
	mailer Mailer
	logger *slog.Logger
}

func NewContactHandler(mailer Mailer, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{mailer: mailer, logger: logger}
}

// Send serves POST /contact.
func (h *ContactHandler) Send(c echo.Context) error {
	var req service.ContactMessage
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.mailer.Send(ctx, req); err != nil {
		if errors.Is(err, service.ErrMailDisabled) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
		}
		h.logger.Error("contact mail failed", "error", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "message could not be sent"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
