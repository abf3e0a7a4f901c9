package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-commerce/internal/config"
	"github.com/iliyamo/course-commerce/internal/middleware"
	"github.com/iliyamo/course-commerce/internal/model"
	"github.com/iliyamo/course-commerce/internal/repository"
	"github.com/iliyamo/course-commerce/internal/utils"
)

// UserStore is the account storage used by auth endpoints.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	Update(ctx context.Context, u model.User) error
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
	Logger *slog.Logger
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Logger: logger}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Nombre    string `json:"nombre" validate:"required"`
	Apellidos string `json:"apellidos"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type accountReq struct {
	Nombre          *string `json:"nombre" validate:"omitempty,max=120"`
	Apellidos       *string `json:"apellidos" validate:"omitempty,max=160"`
	Country         *string `json:"country" validate:"omitempty,max=80"`
	Phone           *string `json:"phone" validate:"omitempty,max=40"`
	CurrentPassword string  `json:"currentPassword"`
	Password        string  `json:"password" validate:"omitempty,min=8"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	User    model.User `json:"user"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
}

// issue creates a token pair for u and stores the refresh hash.
func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
	pair, err := utils.NewTokenPair(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin, h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(pair.Refresh.Raw), pair.Refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    u,
		Access:  tokenPart{Token: pair.Access.Token, Expires: pair.Access.Exp},
		Refresh: tokenPart{Token: pair.Refresh.Raw, Expires: pair.Refresh.Exp}, // raw back to client
	}, nil
}

// Register creates a student account and returns tokens immediately.
// Admin accounts are never created through this endpoint.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, utils.ErrWeakPassword) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return fail(c, h.Logger, err)
	}
	u := model.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         model.RoleUser,
		Nombre:       req.Nombre,
		Apellidos:    req.Apellidos,
		Country:      req.Country,
		Phone:        req.Phone,
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return fail(c, h.Logger, err)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return fail(c, h.Logger, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh validates a refresh token by hash, revokes it and issues a new
// pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := requestCtx(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return fail(c, h.Logger, err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return fail(c, h.Logger, err)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the refresh token in the body, or every refresh token
// of the bearer when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	var uid uint64
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		uid, _, _ = middleware.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	switch {
	case refreshToken != "":
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return fail(c, h.Logger, err)
		}
	case uid != 0:
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return fail(c, h.Logger, err)
		}
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, middleware.UserID(c))
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateMe edits the caller's profile.  A password change needs the
// current password and revokes every refresh token of the account.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	var req accountReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, middleware.UserID(c))
	if err != nil {
		return fail(c, h.Logger, err)
	}
	if req.Nombre != nil {
		if strings.TrimSpace(*req.Nombre) == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "nombre cannot be empty"})
		}
		u.Nombre = strings.TrimSpace(*req.Nombre)
	}
	if req.Apellidos != nil {
		u.Apellidos = strings.TrimSpace(*req.Apellidos)
	}
	if req.Country != nil {
		u.Country = strings.TrimSpace(*req.Country)
	}
	if req.Phone != nil {
		u.Phone = strings.TrimSpace(*req.Phone)
	}
	changedPassword := req.Password != ""
	if changedPassword {
		if req.CurrentPassword == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "currentPassword required"})
		}
		if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "current password is incorrect"})
		}
		hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
		if err != nil {
			if errors.Is(err, utils.ErrWeakPassword) {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
			}
			return fail(c, h.Logger, err)
		}
		u.PasswordHash = hash
	}
	if err := h.Users.Update(ctx, u); err != nil {
		return fail(c, h.Logger, err)
	}
	if changedPassword {
		if err := h.Tokens.RevokeAllForUser(ctx, u.ID); err != nil {
			return fail(c, h.Logger, err)
		}
		h.Logger.Info("password changed", "user_id", u.ID)
	}
	return c.JSON(http.StatusOK, u)
}

// UserByEmail is the admin lookup GET /v1/admin/users?email=.  Unknown
// emails yield {"user": null}.
func (h *AuthHandler) UserByEmail(c echo.Context) error {
	email := strings.ToLower(strings.TrimSpace(c.QueryParam("email")))
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := h.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusOK, echo.Map{"user": nil})
	}
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}
