package router

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/course-commerce/internal/config"
	"github.com/iliyamo/course-commerce/internal/handler"
	"github.com/iliyamo/course-commerce/internal/middleware"
	"github.com/iliyamo/course-commerce/internal/model"
	"github.com/iliyamo/course-commerce/internal/utils"
)

const secret = "router-secret"

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// newServer mounts every route with nil services.  Requests below only
// reach the auth middleware, never the services.
func newServer() *echo.Echo {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := echo.New()
	e.Validator = middleware.NewRequestValidator()
	Register(e, Handlers{
		Health:      handler.NewHealthHandler(nil),
		Auth:        handler.NewAuthHandler(config.Config{JWTSecret: secret}, nil, nil, logger),
		Catalog:     handler.NewCatalogHandler(nil, nil, nil, logger),
		Reviews:     handler.NewReviewHandler(nil, nil, logger),
		Coupons:     handler.NewCouponHandler(nil, logger),
		Carts:       handler.NewCartHandler(nil, 0, logger),
		Orders:      handler.NewOrderHandler(nil, logger),
		Enrollments: handler.NewEnrollmentHandler(nil, nil, logger),
		Contact:     handler.NewContactHandler(nil, logger),
		Payments:    handler.NewPaymentHandler(nil, logger),
	}, Middleware{Cache: passthrough, RateLimit: passthrough}, secret)
	return e
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, 1, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestRegister_MountsRoutes(t *testing.T) {
	e := newServer()
	want := map[string]bool{
		"GET /healthz":                                 false,
		"GET /courses":                                 false,
		"POST /create-order":                           false,
		"POST /v1/auth/login":                          false,
		"GET /v1/myorders":                             false,
		"GET /v1/validate-lesson":                      false,
		"PATCH /v1/me":                                 false,
		"PATCH /v1/admin/orders/:id/state":             false,
		"PATCH /v1/admin/membership-registrations/:id": false,
		"DELETE /v1/admin/reviews/:id":                 false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for k, found := range want {
		assert.True(t, found, k)
	}
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	e := newServer()
	cases := []struct {
		auth string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer garbage", http.StatusUnauthorized},
		{token(t, model.RoleUser), http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/v1/admin/users?email=a@b.co", nil)
		if tc.auth != "" {
			req.Header.Set(echo.HeaderAuthorization, tc.auth)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, tc.auth)
	}
}

func TestHealthz_IsPublic(t *testing.T) {
	e := newServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
