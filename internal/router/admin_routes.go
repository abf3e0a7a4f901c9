package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-commerce/internal/middleware"
	"github.com/iliyamo/course-commerce/internal/model"
)

// RegisterAdmin registers Admin-scoped endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, h Handlers, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Orders ----
	g.PATCH("/orders/:id/state", h.Orders.SetState)

	// ---- Enrollments and memberships ----
	g.POST("/enrollments", h.Enrollments.CreateEnrollment)
	g.PATCH("/enrollments/:id", h.Enrollments.UpdateEnrollment)
	g.POST("/membership-registrations", h.Enrollments.CreateMembership)
	g.PATCH("/membership-registrations/:id", h.Enrollments.UpdateMembership)

	// ---- Catalog ----
	g.POST("/courses", h.Catalog.CreateCourse)
	g.POST("/coupons", h.Coupons.Create)
	g.DELETE("/reviews/:id", h.Reviews.Delete)

	// ---- Users ----
	g.GET("/users", h.Auth.UserByEmail)
}
