package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"medicamp-api/internal/apperr"
	"medicamp-api/internal/middleware"
	"medicamp-api/internal/model"
	"medicamp-api/internal/response"
	"medicamp-api/internal/store"
)

// Store is everything the handlers ask of persistence. *store.Store
// satisfies it; tests substitute a fake.
type Store interface {
	HasActiveAppointment(ctx context.Context, c store.Caller, date, tod string) (bool, error)
	CreateAppointment(ctx context.Context, c store.Caller, a *model.Appointment) error
	ListAppointmentsByUser(ctx context.Context, c store.Caller) ([]model.Appointment, error)
	ListAllAppointments(ctx context.Context, c store.Caller) ([]model.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, c store.Caller, id int64, status model.Status) (*model.Appointment, error)

	ProfileByID(ctx context.Context, c store.Caller, id string) (*model.Profile, error)
	ListProfiles(ctx context.Context, c store.Caller) ([]model.Profile, error)
	CreateUser(ctx context.Context, p *model.Profile, passwordHash string) error
	ProfileByEmail(ctx context.Context, email string) (*model.Profile, error)

	CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (string, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*store.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldID, newID, userID, newHash string, newExpiry time.Time) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
}

type Handler struct {
	store  Store
	secret string
	logger *slog.Logger
}

func New(st Store, secret string, logger *slog.Logger) *Handler {
	return &Handler{store: st, secret: secret, logger: logger}
}

// Register wires the route table. Credential endpoints sit behind the rate
// limiter; everything else behind authentication and a role gate.
func (h *Handler) Register(e *echo.Echo, auth *middleware.Auth, rl *middleware.RateLimiter) {
	api := e.Group("/api")

	api.GET("/health", h.Health)

	ag := api.Group("/auth")
	ag.POST("/register", h.RegisterUser, rl.Middleware())
	ag.POST("/login", h.Login, rl.Middleware())
	ag.POST("/refresh", h.Refresh)
	ag.POST("/logout", h.Logout, auth.Authenticate)

	ap := api.Group("/appointments", auth.Authenticate)
	ap.POST("", h.CreateAppointment, middleware.RequireRole(model.RoleUser))
	ap.GET("/my", h.ListOwnAppointments, middleware.RequireRole(model.RoleUser))
	ap.GET("", h.ListAllAppointments, middleware.RequireRole(model.RoleAdmin))
	ap.PUT("/:id/status", h.UpdateAppointmentStatus, middleware.RequireRole(model.RoleAdmin))

	api.GET("/users", h.ListUsers, auth.Authenticate, middleware.RequireRole(model.RoleAdmin))
}

func (h *Handler) Health(c echo.Context) error {
	return response.Success(c, http.StatusOK, nil, "Backend is healthy")
}

// Validator adapts go-playground/validator to echo's Validator interface.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

func (v *Validator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return apperr.ErrValidation.WithDetails(err.Error())
	}
	return nil
}

// bind decodes and validates a request body, folding both failure modes into
// ValidationError.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.ErrValidation.WithDetails(err.Error())
	}
	if err := c.Validate(v); err != nil {
		return err
	}
	return nil
}
