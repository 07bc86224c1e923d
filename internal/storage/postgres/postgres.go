package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"booking-service/internal/models"
	"booking-service/pkg/response"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	codeExclusionViolation = "23P01"
	codeCheckViolation     = "23514"
	codeUniqueViolation    = "23505"
)

type Storage struct {
	db          *sql.DB
	storagePath string
	log         *slog.Logger
}

func New(storagePath string, log *slog.Logger) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db, storagePath: storagePath, log: log}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

const bookingColumns = `id, date, room, start_min, end_min, teacher, type, note`

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner) (models.Booking, error) {
	var (
		b    models.Booking
		note sql.NullString
	)
	if err := row.Scan(&b.ID, &b.Date, &b.Room, &b.Start, &b.End, &b.Teacher, &b.Type, &note); err != nil {
		return models.Booking{}, err
	}
	b.Note = note.String
	return b, nil
}

func (s *Storage) ListBookings(ctx context.Context, date string) ([]models.Booking, error) {
	const op = "storage.postgres.ListBookings"

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE date = $1 ORDER BY start_min, room`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Storage) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	const op = "storage.postgres.GetBooking"

	if _, err := uuid.Parse(id); err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	b, err := scanBooking(s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`,
		id,
	))
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return b, nil
}

// InsertBooking stores b. An empty ID is generated by the database.
func (s *Storage) InsertBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	const op = "storage.postgres.InsertBooking"

	if b.ID != "" {
		if _, err := uuid.Parse(b.ID); err != nil {
			return models.Booking{}, fmt.Errorf("%s: %w: id is not a uuid", op, response.ErrValidation)
		}
	}

	created, err := scanBooking(s.db.QueryRowContext(ctx,
		`INSERT INTO bookings (id, date, room, start_min, end_min, teacher, type, note)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		RETURNING `+bookingColumns,
		b.ID, b.Date, b.Room, b.Start, b.End, b.Teacher, b.Type, b.Note,
	))
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return created, nil
}

func (s *Storage) UpdateBookingSpan(ctx context.Context, id string, start, end int) (models.Booking, error) {
	const op = "storage.postgres.UpdateBookingSpan"

	if _, err := uuid.Parse(id); err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	b, err := scanBooking(s.db.QueryRowContext(ctx,
		`UPDATE bookings SET start_min = $2, end_min = $3 WHERE id = $1 RETURNING `+bookingColumns,
		id, start, end,
	))
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return b, nil
}

func (s *Storage) DeleteBooking(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteBooking"

	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// mapError translates driver errors into the response sentinels, keeping the
// driver error in the chain for logging.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return response.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeExclusionViolation:
			return fmt.Errorf("%w: %s", response.ErrConstraintViolation, pqErr.Message)
		case codeCheckViolation:
			return fmt.Errorf("%w: %s", response.ErrValidation, pqErr.Constraint)
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", response.ErrAlreadyExists, pqErr.Constraint)
		}
	}

	return err
}
