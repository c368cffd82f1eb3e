package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"medicamp-api/internal/apperr"
	"medicamp-api/internal/auth"
	"medicamp-api/internal/middleware"
	"medicamp-api/internal/model"
	"medicamp-api/internal/response"
	"medicamp-api/internal/store"
)

const refreshTokenTTL = 30 * 24 * time.Hour

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenResponse struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refresh_token"`
	User         *model.Profile `json:"user"`
}

// RegisterUser creates a local-identity account. The fallback for
// deployments without the managed provider; profile and credentials land in
// one row so the resolver never needs to repair these users.
func (h *Handler) RegisterUser(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	p := &model.Profile{
		ID:    uuid.New().String(),
		Email: req.Email,
		Name:  req.Name,
		Role:  model.RoleUser,
	}
	if err := h.store.CreateUser(c.Request().Context(), p, hash); err != nil {
		// unique violation = dup email, but don't reveal that
		return apperr.ErrRegistration
	}

	out, err := h.issueTokens(c, p)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusCreated, out, "User registered successfully")
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	p, err := h.store.ProfileByEmail(ctx, req.Email)
	if err != nil {
		return apperr.ErrInvalidCredentials
	}
	if !auth.CheckPassword(p.PasswordHash, req.Password) {
		return apperr.ErrInvalidCredentials
	}

	out, err := h.issueTokens(c, p)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, out, "Login successful")
}

// Refresh rotates the refresh token. Presenting an already-revoked token
// looks like theft, so the whole family is revoked.
func (h *Handler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	rt, err := h.store.GetRefreshTokenByHash(ctx, auth.HashRefreshToken(req.RefreshToken))
	if err != nil {
		return apperr.ErrUnauthenticated.WithDetails("unknown refresh token")
	}
	if rt.Revoked {
		if err := h.store.RevokeAllRefreshTokens(ctx, rt.UserID); err != nil {
			h.logger.Error("revoke token family", slog.String("user_id", rt.UserID), slog.Any("error", err))
		}
		return apperr.ErrUnauthenticated.WithDetails("refresh token reuse detected")
	}
	if time.Now().After(rt.ExpiresAt) {
		return apperr.ErrUnauthenticated.WithDetails("refresh token expired")
	}

	p, err := h.store.ProfileByID(ctx, store.Caller{ID: rt.UserID}, rt.UserID)
	if err != nil {
		return apperr.ErrUnauthenticated.WithDetails("profile no longer available")
	}

	tok, err := auth.MakeToken(p.ID, p.Email, h.secret)
	if err != nil {
		return errors.Wrap(err, "sign access token")
	}
	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return errors.Wrap(err, "generate refresh token")
	}
	newID := uuid.New().String()
	if err := h.store.RotateRefreshToken(ctx, rt.ID, newID, rt.UserID, hash, time.Now().Add(refreshTokenTTL)); err != nil {
		return apperr.Store(err)
	}

	p.PasswordHash = ""
	return response.Success(c, http.StatusOK, &tokenResponse{Token: tok, RefreshToken: raw, User: p}, "Token refreshed successfully")
}

func (h *Handler) Logout(c echo.Context) error {
	p := middleware.ProfileFrom(c)
	if err := h.store.RevokeAllRefreshTokens(c.Request().Context(), p.ID); err != nil {
		return apperr.Store(err)
	}
	return response.Success(c, http.StatusOK, nil, "Logged out")
}

func (h *Handler) issueTokens(c echo.Context, p *model.Profile) (*tokenResponse, error) {
	tok, err := auth.MakeToken(p.ID, p.Email, h.secret)
	if err != nil {
		return nil, errors.Wrap(err, "sign access token")
	}
	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, errors.Wrap(err, "generate refresh token")
	}
	if _, err := h.store.CreateRefreshToken(c.Request().Context(), p.ID, hash, time.Now().Add(refreshTokenTTL)); err != nil {
		return nil, apperr.Store(err)
	}
	p.PasswordHash = ""
	return &tokenResponse{Token: tok, RefreshToken: raw, User: p}, nil
}
