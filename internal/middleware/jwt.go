package middleware // reusable HTTP middleware for the API

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role claims into the request context.  The
// provided secret must match the one used when issuing tokens.  Handlers read
// the caller through UserID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return jwtAuth(secret, false)
}

// OptionalJWT behaves like JWTAuth when a Bearer token is present and lets
// anonymous requests through untouched.  An invalid token is still rejected.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return jwtAuth(secret, true)
}

func jwtAuth(secret string, optional bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				if optional {
					return next(c)
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			uid, role, err := ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(ctxUserID, uid)
			c.Set(ctxRole, role)
			return next(c)
		}
	}
}

// ParseAccessToken verifies an HS256 access token and returns its subject
// and role claims.
func ParseAccessToken(secret, raw string) (uint64, string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything but HMAC.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return 0, "", echo.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", echo.ErrUnauthorized
	}
	var uid uint64
	switch sub := claims["sub"].(type) {
	case float64:
		// JSON numbers decode as float64
		uid = uint64(sub)
	case string:
		uid, _ = strconv.ParseUint(sub, 10, 64)
	}
	role, _ := claims["role"].(string)
	if uid == 0 {
		return 0, "", echo.ErrUnauthorized
	}
	return uid, role, nil
}
