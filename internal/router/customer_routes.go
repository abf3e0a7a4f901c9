package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-commerce/internal/middleware"
	"github.com/iliyamo/course-commerce/internal/model"
)

// RegisterCustomer registers the student area under /v1.  Every route
// requires a valid JWT; admins may use them too.
func RegisterCustomer(e *echo.Echo, h Handlers, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.GET("/myorders", h.Orders.MyOrders)
	g.GET("/myorder-by-pedidoid", h.Orders.ByPedidoID)
	g.GET("/my-courses", h.Enrollments.MyCourses)
	g.GET("/validate-lesson", h.Enrollments.ValidateLesson)
	g.POST("/reviews", h.Reviews.Create)
}
