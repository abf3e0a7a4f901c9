package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-commerce/internal/middleware"
	"github.com/iliyamo/course-commerce/internal/model"
	"github.com/iliyamo/course-commerce/internal/service"
)

// Enrollments applies the expiration policy to enrollment writes.
type Enrollments interface {
	Create(ctx context.Context, in service.EnrollmentInput) (model.Enrollment, error)
	Update(ctx context.Context, id uint64, in service.EnrollmentInput) (model.Enrollment, error)
	ListForUser(ctx context.Context, userID uint64) ([]model.Enrollment, error)
	CanAccessCourse(ctx context.Context, userID, courseID uint64) (bool, error)
}

// Memberships is the membership entitlement engine.
type Memberships interface {
	Create(ctx context.Context, in service.MembershipInput) (model.MembershipRegistration, error)
	Update(ctx context.Context, id uint64, in service.MembershipUpdate) (model.MembershipRegistration, error)
}

// EnrollmentHandler serves the student course list and the admin
// enrollment and membership registration endpoints.
type EnrollmentHandler struct {
	enrollments Enrollments
	memberships Memberships
	logger      *slog.Logger
}

func NewEnrollmentHandler(enrollments Enrollments, memberships Memberships, logger *slog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, memberships: memberships, logger: logger}
}

// MyCourses serves GET /v1/my-courses.
func (h *EnrollmentHandler) MyCourses(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.enrollments.ListForUser(ctx, middleware.UserID(c))
	if err != nil {
		return fail(c, h.logger, err)
	}
	if list == nil {
		list = []model.Enrollment{}
	}
	return c.JSON(http.StatusOK, list)
}

// ValidateLesson serves GET /v1/validate-lesson?cursoId=.  A caller
// without an activo, unexpired enrollment for the course gets 403.
func (h *EnrollmentHandler) ValidateLesson(c echo.Context) error {
	courseID, ok := parseID(c.QueryParam("cursoId"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cursoId required"})
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	allowed, err := h.enrollments.CanAccessCourse(ctx, middleware.UserID(c), courseID)
	if err != nil {
		return fail(c, h.logger, err)
	}
	if !allowed {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no access to this course", "hasAccess": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"hasAccess": true})
}

type enrollmentReq struct {
	Usuario           uint64     `json:"usuario"`
	Cursos            []uint64   `json:"cursos"`
	FechaDeExpiracion *time.Time `json:"fechaDeExpiracion"`
	ManualEdit        bool       `json:"manualEdit"`
}

func (r enrollmentReq) input() service.EnrollmentInput {
	return service.EnrollmentInput{
		UserID:            r.Usuario,
		CourseIDs:         r.Cursos,
		FechaDeExpiracion: r.FechaDeExpiracion,
		ManualEdit:        r.ManualEdit,
	}
}

// CreateEnrollment serves POST /v1/admin/enrollments.
func (h *EnrollmentHandler) CreateEnrollment(c echo.Context) error {
	var req enrollmentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	e, err := h.enrollments.Create(ctx, req.input())
	if err != nil {
		return fail(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, e)
}

// UpdateEnrollment serves PATCH /v1/admin/enrollments/:id.
func (h *EnrollmentHandler) UpdateEnrollment(c echo.Context) error {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req enrollmentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	e, err := h.enrollments.Update(ctx, id, req.input())
	if err != nil {
		return fail(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, e)
}

type membershipReq struct {
	Usuario           uint64     `json:"usuario" validate:"required"`
	TipoDeMembresia   uint64     `json:"tipoDeMembresia" validate:"required"`
	Estado            string     `json:"estado" validate:"omitempty,oneof=activo inactivo"`
	FechaDeExpiracion *time.Time `json:"fechaDeExpiracion"`
}

// CreateMembership serves POST /v1/admin/membership-registrations.
func (h *EnrollmentHandler) CreateMembership(c echo.Context) error {
	var req membershipReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	reg, err := h.memberships.Create(ctx, service.MembershipInput{
		UserID:            req.Usuario,
		TypeID:            req.TipoDeMembresia,
		Estado:            req.Estado,
		FechaDeExpiracion: req.FechaDeExpiracion,
	})
	if err != nil {
		return fail(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, reg)
}

type membershipPatchReq struct {
	Estado            *string    `json:"estado" validate:"omitempty,oneof=activo inactivo"`
	FechaDeExpiracion *time.Time `json:"fechaDeExpiracion"`
}

// UpdateMembership serves PATCH /v1/admin/membership-registrations/:id.
func (h *EnrollmentHandler) UpdateMembership(c echo.Context) error {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req membershipPatchReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	reg, err := h.memberships.Update(ctx, id, service.MembershipUpdate{Estado: req.Estado, FechaDeExpiracion: req.FechaDeExpiracion})
	if err != nil {
		return fail(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, reg)
}
