package middleware

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"medicamp-api/internal/apperr"
	"medicamp-api/internal/identity"
	"medicamp-api/internal/model"
	"medicamp-api/internal/store"
)

const profileKey = "profile"

// ProfileFrom returns the profile Authenticate resolved, or nil when the
// request never passed through it.
func ProfileFrom(c echo.Context) *model.Profile {
	p, _ := c.Get(profileKey).(*model.Profile)
	return p
}

// ProfileStore is the slice of the store the resolver needs.
type ProfileStore interface {
	ProfileByID(ctx context.Context, c store.Caller, id string) (*model.Profile, error)
	UpsertProfile(ctx context.Context, c store.Caller, p *model.Profile) (*model.Profile, error)
	BackfillRole(ctx context.Context, c store.Caller, id string, role model.Role) error
}

type Auth struct {
	verifier identity.Verifier
	profiles ProfileStore
	logger   *slog.Logger
}

func NewAuth(verifier identity.Verifier, profiles ProfileStore, logger *slog.Logger) *Auth {
	return &Auth{verifier: verifier, profiles: profiles, logger: logger}
}

// Authenticate verifies the bearer token and resolves the caller's profile,
// provisioning a default one on first contact. A request past this point
// always carries a profile with a role.
func (m *Auth) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		if header == "" {
			return apperr.ErrUnauthenticated.WithDetails("no token")
		}
		raw := strings.TrimPrefix(header, "Bearer ")
		if raw == header || raw == "" {
			return apperr.ErrUnauthenticated.WithDetails("malformed Authorization header")
		}

		ctx := c.Request().Context()
		principal, err := m.verifier.Verify(ctx, raw)
		if err != nil {
			return apperr.ErrUnauthenticated.WithDetails(err.Error())
		}

		p, err := m.resolve(ctx, principal)
		if err != nil {
			return err
		}

		c.Set(profileKey, p)
		return next(c)
	}
}

// resolve maps a principal to its profile. The profile row can lag behind
// the identity account (client-side provisioning skipped or failed), so a
// missing row is repaired here rather than treated as fatal.
func (m *Auth) resolve(ctx context.Context, principal identity.Principal) (*model.Profile, error) {
	caller := store.Caller{ID: principal.Subject, Email: principal.Email}

	p, err := m.profiles.ProfileByID(ctx, caller, principal.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		m.logger.Warn("profile missing, provisioning default",
			slog.String("user_id", principal.Subject))
		p, err = m.profiles.UpsertProfile(ctx, caller, &model.Profile{
			ID:    principal.Subject,
			Email: principal.Email,
			Role:  model.RoleUser,
		})
		if err != nil {
			m.logger.Error("profile provisioning failed",
				slog.String("user_id", principal.Subject), slog.Any("error", err))
			return nil, apperr.ErrProfileUnavailable
		}
	case err != nil:
		return nil, apperr.Store(err)
	}

	if p.Role == "" {
		// best effort; the request proceeds on the in-memory default
		if err := m.profiles.BackfillRole(ctx, caller, p.ID, model.RoleUser); err != nil {
			m.logger.Warn("role backfill failed",
				slog.String("user_id", p.ID), slog.Any("error", err))
		}
		p.Role = model.RoleUser
	}
	return p, nil
}

// RequireRole gates a route on the resolved role. Must run after
// Authenticate; an unresolved role is a deny, never an implicit allow.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := ProfileFrom(c)
			if p == nil || p.Role == "" {
				return apperr.Forbidden("")
			}
			if !slices.Contains(roles, p.Role) {
				return apperr.Forbidden(string(p.Role))
			}
			return next(c)
		}
	}
}
