package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-commerce/internal/model"
	"github.com/iliyamo/course-commerce/internal/service"
)

// homeCourses is the number of courses shown on the landing page.
const homeCourses = 3

// CatalogReader lists the public catalog.
type CatalogReader interface {
	ListCourses(ctx context.Context, limit int) ([]model.Course, error)
	ListWorkshops(ctx context.Context) ([]model.Workshop, error)
	ListMembershipTypes(ctx context.Context) ([]model.MembershipType, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCourse(ctx context.Context, c *model.Course) error
}

// CacheInvalidator drops cached catalog responses.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CatalogHandler serves the course, workshop and membership listings and
// the admin course creation endpoint.
type CatalogHandler struct {
	catalog CatalogReader
	tx      service.TxRunner
	cache   CacheInvalidator
	logger  *slog.Logger
}

func NewCatalogHandler(catalog CatalogReader, tx service.TxRunner, cache CacheInvalidator, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, tx: tx, cache: cache, logger: logger}
}

// Courses returns every visible course as a bare JSON array.
func (h *CatalogHandler) Courses(c echo.Context) error { return h.courses(c, 0) }

// CoursesHome returns the newest visible courses for the landing page.
func (h *CatalogHandler) CoursesHome(c echo.Context) error { return h.courses(c, homeCourses) }

func (h *CatalogHandler) courses(c echo.Context, limit int) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.catalog.ListCourses(ctx, limit)
	if err != nil {
		return fail(c, h.logger, err)
	}
	if list == nil {
		list = []model.Course{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *CatalogHandler) Workshops(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.catalog.ListWorkshops(ctx)
	if err != nil {
		return fail(c, h.logger, err)
	}
	if list == nil {
		list = []model.Workshop{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *CatalogHandler) Memberships(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.catalog.ListMembershipTypes(ctx)
	if err != nil {
		return fail(c, h.logger, err)
	}
	if list == nil {
		list = []model.MembershipType{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *CatalogHandler) Categories(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.catalog.ListCategories(ctx)
	if err != nil {
		return fail(c, h.logger, err)
	}
	if list == nil {
		list = []model.Category{}
	}
	return c.JSON(http.StatusOK, list)
}

type createCourseReq struct {
	Title              string   `json:"title" validate:"required"`
	Slug               string   `json:"slug" validate:"required"`
	Estado             string   `json:"estado"`
	Precio             float64  `json:"precio" validate:"gte=0"`
	PrecioConDescuento *float64 `json:"precioConDescuento" validate:"omitempty,gte=0"`
	CoverImage         *string  `json:"coverImage"`
	Categorias         []uint64 `json:"categorias"`
}

// CreateCourse inserts a course with its categories and invalidates the
// catalog cache.
func (h *CatalogHandler) CreateCourse(c echo.Context) error {
	var req createCourseReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	course := model.Course{
		Title:              req.Title,
		Slug:               req.Slug,
		Estado:             req.Estado,
		Precio:             req.Precio,
		PrecioConDescuento: req.PrecioConDescuento,
		CoverImage:         req.CoverImage,
		Categorias:         req.Categorias,
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	err := h.tx.InTx(ctx, func(ctx context.Context) error { return h.catalog.CreateCourse(ctx, &course) })
	if err != nil {
		return fail(c, h.logger, err)
	}
	if err := h.cache.Invalidate(ctx); err != nil {
		h.logger.Warn("catalog cache invalidation failed", "error", err)
	}
	return c.JSON(http.StatusCreated, course)
}
