package handler

import (
	"context"  // bounded service calls
	"log/slog" // failure logging
	"net/http" // HTTP status codes
	"strings"  // trimming of token input
	"time"     // timeouts and expiry fields

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/recipe-api/internal/model"   // user model rendered in responses
	"github.com/iliyamo/recipe-api/internal/service" // account use cases
)

// UserHandler serves the /api/user endpoints: signup, token issuing and the
// caller's own profile.
type UserHandler struct {
	Users  *service.UserService
	Logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{Users: users, Logger: logger}
}

// ----- DTOs -----

type createUserReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=5"`
	Name     string `json:"name" validate:"max=255"`
}

type tokenReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// updateMeReq: nil fields were not supplied.
type updateMeReq struct {
	Name     *string `json:"name" validate:"omitempty,max=255"`
	Password *string `json:"password" validate:"omitempty,min=5"`
}

type userResp struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type tokenResp struct {
	Token          string    `json:"token"`
	Expires        time.Time `json:"expires"`
	Refresh        string    `json:"refresh"`
	RefreshExpires time.Time `json:"refresh_expires"`
}

func toUserResp(u *model.User) userResp { return userResp{Email: u.Email, Name: u.Name} }

func toTokenResp(t service.Tokens) tokenResp {
	return tokenResp{
		Token:          t.Access.Token,
		Expires:        t.Access.Exp,
		Refresh:        t.Refresh.Raw, // raw back to client, only the hash is stored
		RefreshExpires: t.Refresh.Exp,
	}
}

// Create registers a new active user.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.Register(ctx, service.UserInput{Email: req.Email, Password: &req.Password, Name: &req.Name})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, toUserResp(u))
}

// Token exchanges email and password for a token pair. Blank or wrong
// credentials are a 400, as for any other invalid input.
func (h *UserHandler) Token(c echo.Context) error {
	var req tokenReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.Logger, service.FieldError("body", "Malformed request body."))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tok, err := h.Users.Login(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toTokenResp(tok))
}

// Refresh: validate by hash, revoke old, issue new.
func (h *UserHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return respondError(c, h.Logger, service.FieldError("refresh_token", "This field is required."))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tok, err := h.Users.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toTokenResp(tok))
}

// Logout revokes the refresh token in the body, or every refresh token of
// the caller when the body names none.
func (h *UserHandler) Logout(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req refreshReq
	_ = c.Bind(&req) // an empty or missing body means "all sessions"

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Logout(ctx, uid, strings.TrimSpace(req.RefreshToken)); err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's profile.
func (h *UserHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	u, err := h.Users.Me(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// UpdateMe changes name and/or password. PUT requires both, PATCH either.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req updateMeReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	if c.Request().Method == http.MethodPut {
		verr := &service.ValidationError{Fields: map[string]string{}}
		if req.Name == nil {
			verr.Fields["name"] = "This field is required."
		}
		if req.Password == nil {
			verr.Fields["password"] = "This field is required."
		}
		if len(verr.Fields) > 0 {
			return respondError(c, h.Logger, verr)
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.UpdateMe(ctx, uid, service.UserInput{Name: req.Name, Password: req.Password})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}
