package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"medicamp-api/internal/model"
)

const apptCols = `id, user_id, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI'), status, created_at`

// HasActiveAppointment reports whether the caller already holds the slot.
// Cancelled appointments release it.
func (s *Store) HasActiveAppointment(ctx context.Context, c Caller, date, tod string) (bool, error) {
	var exists bool
	err := s.asCaller(ctx, c, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`SELECT EXISTS(
				SELECT 1 FROM appointments
				WHERE user_id = $1 AND date = $2::date AND time = $3::time
				  AND status <> 'Cancelled')`,
			c.ID, date, tod,
		).Scan(&exists)
	})
	return exists, err
}

// CreateAppointment inserts the booking. The partial unique index over
// non-Cancelled (user_id, date, time) is the arbiter when two requests race
// past the existence check; the caller translates that violation to a
// conflict.
func (s *Store) CreateAppointment(ctx context.Context, c Caller, a *model.Appointment) error {
	return s.asCaller(ctx, c, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO appointments (user_id, date, time, status)
			 VALUES ($1, $2::date, $3::time, $4)
			 RETURNING id, created_at`,
			a.UserID, a.Date, a.Time, a.Status,
		).Scan(&a.ID, &a.CreatedAt)
	})
}

func (s *Store) ListAppointmentsByUser(ctx context.Context, c Caller) ([]model.Appointment, error) {
	var out []model.Appointment
	err := s.asCaller(ctx, c, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+apptCols+` FROM appointments
			 WHERE user_id = $1
			 ORDER BY date, time`, c.ID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var a model.Appointment
			if err := rows.Scan(&a.ID, &a.UserID, &a.Date, &a.Time, &a.Status, &a.CreatedAt); err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListAllAppointments joins each appointment with its owner's name and email,
// already flattened for the admin view.
func (s *Store) ListAllAppointments(ctx context.Context, c Caller) ([]model.Appointment, error) {
	var out []model.Appointment
	err := s.asCaller(ctx, c, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT a.id, a.user_id, to_char(a.date, 'YYYY-MM-DD'), to_char(a.time, 'HH24:MI'),
			        a.status, a.created_at, COALESCE(u.name,''), u.email
			 FROM appointments a
			 JOIN users u ON u.id = a.user_id
			 ORDER BY a.date, a.time`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var a model.Appointment
			if err := rows.Scan(&a.ID, &a.UserID, &a.Date, &a.Time, &a.Status,
				&a.CreatedAt, &a.UserName, &a.UserEmail); err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAppointmentStatus moves the appointment to any member of the status
// enum. No transition graph is enforced.
func (s *Store) UpdateAppointmentStatus(ctx context.Context, c Caller, id int64, status model.Status) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := s.asCaller(ctx, c, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE appointments SET status = $2 WHERE id = $1
			 RETURNING `+apptCols, id, status,
		).Scan(&a.ID, &a.UserID, &a.Date, &a.Time, &a.Status, &a.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}
