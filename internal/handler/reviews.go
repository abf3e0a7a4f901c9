package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-commerce/internal/middleware"
	"github.com/iliyamo/course-commerce/internal/model"
	"github.com/iliyamo/course-commerce/internal/repository"
	"github.com/iliyamo/course-commerce/internal/service"
)

// Reviews is the review aggregator as seen by HTTP handlers.
type Reviews interface {
	Create(ctx context.Context, rv *model.Review) error
	Delete(ctx context.Context, id uint64) error
	Stats(ctx context.Context, kind string, id uint64) (service.ReviewStats, error)
}

type ReviewHandler struct {
	reviews Reviews
	users   UserStore
	logger  *slog.Logger
}

func NewReviewHandler(reviews Reviews, users UserStore, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, users: users, logger: logger}
}

// CourseAverage serves GET /average-reviews?cursoId=.
func (h *ReviewHandler) CourseAverage(c echo.Context) error {
	return h.average(c, model.ReviewCourse, "cursoId")
}

// WorkshopAverage serves GET /average-reviews-talleres?tallerId=.
func (h *ReviewHandler) WorkshopAverage(c echo.Context) error {
	return h.average(c, model.ReviewWorkshop, "tallerId")
}

func (h *ReviewHandler) average(c echo.Context, kind, param string) error {
	id, ok := parseID(c.QueryParam(param))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing or invalid " + param})
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	stats, err := h.reviews.Stats(ctx, kind, id)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, stats)
}

type createReviewReq struct {
	TargetKind string `json:"targetKind" validate:"required,oneof=course workshop"`
	TargetID   uint64 `json:"targetId" validate:"required"`
	Estrellas  int    `json:"estrellas" validate:"required,min=1,max=5"`
	Resena     string `json:"reseña" validate:"required"`
}

// Create stores a review by the authenticated user.  Name and country are
// copied from the account.
func (h *ReviewHandler) Create(c echo.Context) error {
	var req createReviewReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.users.GetByID(ctx, middleware.UserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
		}
		return fail(c, h.logger, err)
	}
	rv := model.Review{
		TargetKind:    req.TargetKind,
		TargetID:      req.TargetID,
		UserID:        u.ID,
		NombreUsuario: u.Nombre + " " + u.Apellidos,
		PaisUsuario:   u.Country,
		Estrellas:     req.Estrellas,
		Resena:        req.Resena,
	}
	if err := h.reviews.Create(ctx, &rv); err != nil {
		return fail(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, rv)
}

// Delete removes a review (admin).
func (h *ReviewHandler) Delete(c echo.Context) error {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.reviews.Delete(ctx, id); err != nil {
		return fail(c, h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
