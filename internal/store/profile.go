package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"medicamp-api/internal/model"
)

const profileCols = `id, email, COALESCE(name,''), COALESCE(phone,''), COALESCE(age,0),
	COALESCE(address,''), COALESCE(role,''), created_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	p := &model.Profile{}
	err := row.Scan(&p.ID, &p.Email, &p.Name, &p.Phone, &p.Age, &p.Address, &p.Role, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ProfileByID fetches the caller's profile through the caller's own scope so
// the row policies apply as the caller, not as a privileged role.
func (s *Store) ProfileByID(ctx context.Context, c Caller, id string) (*model.Profile, error) {
	var p *model.Profile
	err := s.asCaller(ctx, c, func(tx pgx.Tx) error {
		var err error
		p, err = scanProfile(tx.QueryRow(ctx,
			`SELECT `+profileCols+` FROM users WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertProfile provisions a missing profile idempotently: a lost race on
// first sign-in lands on the conflict arm instead of failing.
func (s *Store) UpsertProfile(ctx context.Context, c Caller, p *model.Profile) (*model.Profile, error) {
	var out *model.Profile
	err := s.asCaller(ctx, c, func(tx pgx.Tx) error {
		var err error
		out, err = scanProfile(tx.QueryRow(ctx,
			`INSERT INTO users (id, email, role) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email
			 RETURNING `+profileCols,
			p.ID, p.Email, p.Role))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BackfillRole repairs a profile whose role was never set. Best effort; the
// caller proceeds with an in-memory default when this fails.
func (s *Store) BackfillRole(ctx context.Context, c Caller, id string, role model.Role) error {
	return s.asCaller(ctx, c, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE users SET role = $2 WHERE id = $1 AND (role IS NULL OR role = '')`,
			id, role)
		return err
	})
}

// ListProfiles returns every profile, newest first. Admin only; the role gate
// upstream and the row policy below both enforce that.
func (s *Store) ListProfiles(ctx context.Context, c Caller) ([]model.Profile, error) {
	var out []model.Profile
	err := s.asCaller(ctx, c, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+profileCols+` FROM users ORDER BY created_at DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p model.Profile
			if err := rows.Scan(&p.ID, &p.Email, &p.Name, &p.Phone, &p.Age,
				&p.Address, &p.Role, &p.CreatedAt); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateUser registers a local-identity user. Unscoped: the caller has no
// token yet.
func (s *Store) CreateUser(ctx context.Context, p *model.Profile, passwordHash string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, role, password_hash) VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.Email, p.Name, p.Role, passwordHash,
	)
	return err
}

// ProfileByEmail looks up a local-identity user for credential checks.
func (s *Store) ProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	p := &model.Profile{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, COALESCE(name,''), COALESCE(role,''), COALESCE(password_hash,''), created_at
		 FROM users WHERE email = $1`, email,
	).Scan(&p.ID, &p.Email, &p.Name, &p.Role, &p.PasswordHash, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
