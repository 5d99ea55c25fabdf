package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/imagiseum/gallery/internal/middleware"
	"github.com/imagiseum/gallery/internal/model"
	"github.com/imagiseum/gallery/internal/service"
)

// AuthHandler serves registration, login and the caller's profile.
type AuthHandler struct {
	Creds   *service.Credentials
	Tokens  *service.Tokens
	Catalog *service.Catalog
}

func NewAuthHandler(creds *service.Credentials, tokens *service.Tokens, catalog *service.Catalog) *AuthHandler {
	return &AuthHandler{Creds: creds, Tokens: tokens, Catalog: catalog}
}

type registerReq struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateProfileReq struct {
	Name  *string `json:"name" validate:"omitempty,min=2,max=50"`
	Email *string `json:"email" validate:"omitempty,email,max=255"`
}

type userResp struct {
	ID        uint64     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func toUserResp(u model.User, created, updated bool) userResp {
	r := userResp{ID: u.ID, Name: u.Name, Email: u.Email}
	if created {
		r.CreatedAt = &u.CreatedAt
	}
	if updated {
		r.UpdatedAt = &u.UpdatedAt
	}
	return r
}

// Register creates the account and signs the caller in straight away.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	u, err := h.Creds.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	tok, err := h.Tokens.Issue(u.ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, echo.Map{
		"message":   "User registered successfully",
		"token":     tok.Token,
		"expiresAt": tok.Exp,
		"user":      toUserResp(u, true, false),
	})
}

// Login answers the same 401 for an unknown email and a wrong password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	u, err := h.Creds.VerifyCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	tok, err := h.Tokens.Issue(u.ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{
		"message":   "Login successful",
		"token":     tok.Token,
		"expiresAt": tok.Exp,
		"user":      toUserResp(u, false, false),
	})
}

// Me only confirms that the token is still accepted.
func (h *AuthHandler) Me(c echo.Context) error {
	return ok(c, http.StatusOK, nil)
}

// Profile returns the caller together with their images, newest first.
func (h *AuthHandler) Profile(c echo.Context) error {
	id, _ := middleware.IdentityFrom(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	u, err := h.Creds.Get(ctx, id.ID)
	if err != nil {
		return userLookupError(err)
	}
	imgs, err := h.Catalog.ListByOwner(ctx, u.ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{
		"user":   toUserResp(u, true, true),
		"images": toImageResps(imgs),
	})
}

// UpdateProfile changes name and/or email; at least one must be present.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.Name == nil && req.Email == nil {
		return fail(http.StatusBadRequest, "Please provide at least one field to update (name or email)", nil)
	}
	id, _ := middleware.IdentityFrom(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	u, err := h.Creds.UpdateProfile(ctx, id.ID, req.Name, req.Email)
	if err != nil {
		return userLookupError(err)
	}
	return ok(c, http.StatusOK, echo.Map{
		"message": "Profile updated successfully",
		"user":    toUserResp(u, false, true),
	})
}

// Logout is acknowledged only. Tokens are not tracked server side and stay
// valid until they expire; the client is expected to discard its copy.
func (h *AuthHandler) Logout(c echo.Context) error {
	return ok(c, http.StatusOK, echo.Map{
		"message": "Logout successful (client should clear token)",
	})
}

func userLookupError(err error) error {
	if errors.Is(err, service.ErrNotFound) {
		return fail(http.StatusNotFound, "User not found", err)
	}
	return err
}
