package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/pkg/database"
)

// Store is the registration persistence used by the handler.
type Store interface {
	Register(ctx context.Context, userID, eventID uuid.UUID, info map[string]string, now time.Time) (*models.Registration, error)
	Cancel(ctx context.Context, id, userID uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error)
	ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error)
}

// Repository handles registration persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a registrations repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const (
	lockEventSQL = `SELECT status, registration_start_date, registration_end_date, total_seats, available_seats, registration_fields
		FROM events WHERE id = $1 FOR UPDATE`

	findExistingSQL = `SELECT id, status FROM registrations WHERE user_id = $1 AND event_id = $2 FOR UPDATE`

	reactivateSQL = `UPDATE registrations SET status = 'REGISTERED', additional_info = $2, updated_at = NOW()
		WHERE id = $1 RETURNING created_at, updated_at`

	insertSQL = `INSERT INTO registrations (user_id, event_id, status, additional_info)
		VALUES ($1, $2, 'REGISTERED', $3) RETURNING id, created_at, updated_at`

	takeSeatSQL = `UPDATE events SET available_seats = COALESCE(available_seats, total_seats) - 1, updated_at = NOW()
		WHERE id = $1 AND total_seats IS NOT NULL AND COALESCE(available_seats, total_seats) > 0`

	lockRegistrationSQL = `SELECT user_id, event_id, status FROM registrations WHERE id = $1 FOR UPDATE`

	cancelSQL = `UPDATE registrations SET status = 'CANCELLED', updated_at = NOW() WHERE id = $1`

	releaseSeatSQL = `UPDATE events SET available_seats = LEAST(COALESCE(available_seats, total_seats) + 1, total_seats), updated_at = NOW()
		WHERE id = $1 AND total_seats IS NOT NULL`
)

// Register enrolls userID into eventID in one transaction. A previously cancelled record is
// reused; capacity is taken with a conditional decrement.
func (r *Repository) Register(ctx context.Context, userID, eventID uuid.UUID, info map[string]string, now time.Time) (*models.Registration, error) {
	if info == nil {
		info = map[string]string{}
	}
	reg := &models.Registration{UserID: userID, EventID: eventID, Status: models.RegistrationRegistered, AdditionalInfo: info}
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var st EventState
		err := tx.QueryRow(ctx, lockEventSQL, eventID).Scan(&st.Status, &st.RegistrationStartDate, &st.RegistrationEndDate,
			&st.TotalSeats, &st.AvailableSeats, &st.Fields)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEventNotFound
		}
		if err != nil {
			return fmt.Errorf("lock event: %w", err)
		}
		if err := CheckOpen(st, info, now); err != nil {
			return err
		}

		var existingID uuid.UUID
		var existingStatus models.RegistrationStatus
		err = tx.QueryRow(ctx, findExistingSQL, userID, eventID).Scan(&existingID, &existingStatus)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			err = tx.QueryRow(ctx, insertSQL, userID, eventID, info).Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrAlreadyRegistered
			}
			if err != nil {
				return fmt.Errorf("insert registration: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find registration: %w", err)
		case existingStatus == models.RegistrationRegistered:
			return ErrAlreadyRegistered
		default:
			reg.ID = existingID
			if err := tx.QueryRow(ctx, reactivateSQL, existingID, info).Scan(&reg.CreatedAt, &reg.UpdatedAt); err != nil {
				return fmt.Errorf("reactivate registration: %w", err)
			}
		}

		if st.TotalSeats != nil {
			tag, err := tx.Exec(ctx, takeSeatSQL, eventID)
			if err != nil {
				return fmt.Errorf("take seat: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrFull
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Cancel marks the caller's registration cancelled and gives the seat back, capped at total.
func (r *Repository) Cancel(ctx context.Context, id, userID uuid.UUID) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var owner, eventID uuid.UUID
		var status models.RegistrationStatus
		err := tx.QueryRow(ctx, lockRegistrationSQL, id).Scan(&owner, &eventID, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock registration: %w", err)
		}
		if owner != userID {
			return ErrForbidden
		}
		if status == models.RegistrationCancelled {
			return ErrAlreadyCancelled
		}
		if _, err := tx.Exec(ctx, cancelSQL, id); err != nil {
			return fmt.Errorf("cancel registration: %w", err)
		}
		if _, err := tx.Exec(ctx, releaseSeatSQL, eventID); err != nil {
			return fmt.Errorf("release seat: %w", err)
		}
		return nil
	})
}

const registrationSelect = `SELECT r.id, r.user_id, u.name, u.email, r.event_id, e.title, e.start_date, e.end_date,
	e.venue, e.address, e.city, e.status, r.status, r.additional_info, r.created_at, r.updated_at
	FROM registrations r
	JOIN users u ON u.id = r.user_id
	JOIN events e ON e.id = r.event_id`

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	var u models.UserSummary
	var e models.EventSummary
	err := row.Scan(&reg.ID, &reg.UserID, &u.Name, &u.Email, &reg.EventID, &e.Title, &e.StartDate, &e.EndDate,
		&e.Location.Venue, &e.Location.Address, &e.Location.City, &e.Status,
		&reg.Status, &reg.AdditionalInfo, &reg.CreatedAt, &reg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.ID = reg.UserID
	e.ID = reg.EventID
	reg.User = &u
	reg.Event = &e
	if reg.AdditionalInfo == nil {
		reg.AdditionalInfo = map[string]string{}
	}
	return &reg, nil
}

func (r *Repository) list(ctx context.Context, where string, arg interface{}) ([]models.Registration, error) {
	rows, err := r.db.Query(ctx, registrationSelect+" WHERE "+where+" ORDER BY r.created_at DESC", arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// Get returns a registration with user and event populated.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return scanRegistration(r.db.QueryRow(ctx, registrationSelect+` WHERE r.id = $1`, id))
}

// ListForUser returns the user's registrations, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	return r.list(ctx, "r.user_id = $1", userID)
}

// ListForEvent returns all registrations of an event, newest first.
func (r *Repository) ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	return r.list(ctx, "r.event_id = $1", eventID)
}
