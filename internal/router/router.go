package router // router wires handlers and middleware onto routes

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-commerce/internal/handler"
	"github.com/iliyamo/course-commerce/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health      *handler.HealthHandler
	Auth        *handler.AuthHandler
	Catalog     *handler.CatalogHandler
	Reviews     *handler.ReviewHandler
	Coupons     *handler.CouponHandler
	Carts       *handler.CartHandler
	Orders      *handler.OrderHandler
	Enrollments *handler.EnrollmentHandler
	Contact     *handler.ContactHandler
	Payments    *handler.PaymentHandler
}

// Middleware carries the shared middleware instances.
type Middleware struct {
	Cache     echo.MiddlewareFunc // catalog response cache
	RateLimit echo.MiddlewareFunc // token bucket for abuse-prone endpoints
}

// Register mounts every route group.
func Register(e *echo.Echo, h Handlers, mw Middleware, jwtSecret string) {
	RegisterPublic(e, h, mw, jwtSecret)
	RegisterAuth(e, h.Auth, mw, jwtSecret)
	RegisterCustomer(e, h, jwtSecret)
	RegisterAdmin(e, h, jwtSecret)
}

// RegisterPublic registers storefront routes that need no session.
// Catalog reads go through the response cache.
func RegisterPublic(e *echo.Echo, h Handlers, mw Middleware, jwtSecret string) {
	e.GET("/healthz", h.Health.Health)
	e.GET("/readyz", h.Health.Ready)

	e.GET("/courses", h.Catalog.Courses, mw.Cache)
	e.GET("/courseshome", h.Catalog.CoursesHome, mw.Cache)
	e.GET("/workshops", h.Catalog.Workshops, mw.Cache)
	e.GET("/memberships", h.Catalog.Memberships, mw.Cache)
	e.GET("/categories", h.Catalog.Categories, mw.Cache)

	e.GET("/average-reviews", h.Reviews.CourseAverage)
	e.GET("/average-reviews-talleres", h.Reviews.WorkshopAverage)

	e.POST("/apply-coupon", h.Coupons.Apply, mw.RateLimit)
	e.POST("/validate-cart", h.Carts.Validate, mw.RateLimit)
	e.GET("/checkout-data", h.Carts.CheckoutData)
	e.POST("/create-order", h.Orders.Create, middleware.OptionalJWT(jwtSecret), mw.RateLimit)
	e.POST("/contact", h.Contact.Send, mw.RateLimit)

	e.POST("/payments/token", h.Payments.Token, mw.RateLimit)
	e.POST("/payments/ipn", h.Payments.IPN)
}

// RegisterAuth registers session routes.  Register, login, refresh and
// logout live under /v1/auth; /v1/me (read and edit) requires a bearer
// token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, mw Middleware, jwtSecret string) {
	g := e.Group("/v1/auth", mw.RateLimit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
	e.PATCH("/v1/me", a.UpdateMe, middleware.JWTAuth(jwtSecret))
}
