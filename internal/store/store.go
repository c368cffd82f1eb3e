package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"medicamp-api/internal/model"
)

var ErrNotFound = errors.New("store: not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Caller is the identity a scoped operation runs as. Row policies see its
// fields as the request's JWT claims.
type Caller struct {
	ID    string
	Email string
	Role  model.Role
}

func CallerFor(p *model.Profile) Caller {
	return Caller{ID: p.ID, Email: p.Email, Role: p.Role}
}

// asCaller runs fn in a transaction with the caller's claims exposed as
// transaction-local settings, so the row policies in the schema evaluate as
// the caller rather than as the connection's own role.
func (s *Store) asCaller(ctx context.Context, c Caller, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`SELECT set_config('request.jwt.claim.sub', $1, true),
		        set_config('request.jwt.claim.email', $2, true),
		        set_config('request.jwt.claim.role', $3, true)`,
		c.ID, c.Email, string(c.Role),
	)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// IsUniqueViolation reports whether err is a unique-constraint violation,
// e.g. the partial slot index catching a booking race.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
