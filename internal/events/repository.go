package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/pkg/database"
)

var (
	ErrNotFound         = errors.New("event not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrDuplicateSeat    = errors.New("duplicate seat number")
	ErrCapacity         = errors.New("Available seats cannot exceed total seats")

	ErrTotalNegative     = errors.New("Total seats cannot be negative")
	ErrAvailableNegative = errors.New("Available seats cannot be negative")
	ErrCapacityUntracked = errors.New("Set totalSeats before availableSeats")
)

// Store is the event persistence used by the handler.
type Store interface {
	Create(ctx context.Context, e *models.Event, seats []models.Seat) error
	Get(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]models.Event, int, error)
	Update(ctx context.Context, e *models.Event, capacity Capacity) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error
	SetBanner(ctx context.Context, id uuid.UUID, url, key string) error
	Delete(ctx context.Context, id uuid.UUID) error
	Seats(ctx context.Context, eventID uuid.UUID) ([]models.Seat, error)
	RegisteredUserIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
}

// ListFilter narrows the public event listing. Empty fields are ignored.
type ListFilter struct {
	CategoryID *uuid.UUID
	Status     models.EventStatus
	Search     string
}

// Repository handles event and seat persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates an event repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const eventSelect = `SELECT e.id, e.title, e.description, e.category_id, c.name, c.description,
	e.organizer_id, u.name, u.email, u.profile_pic,
	e.venue, e.address, e.city, e.lat, e.lng,
	e.start_date, e.end_date, e.registration_start_date, e.registration_end_date,
	e.total_seats, e.available_seats, e.price, e.registration_fields, e.status,
	e.banner_image, e.banner_key, e.reminder_sent_at, e.created_at, e.updated_at
	FROM events e
	JOIN categories c ON c.id = e.category_id
	JOIN users u ON u.id = e.organizer_id`

// scanEvent scans one row of eventSelect into an event with category and organizer populated.
func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	var cat models.Category
	var org models.UserSummary
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.CategoryID, &cat.Name, &cat.Description,
		&e.OrganizerID, &org.Name, &org.Email, &org.ProfilePic,
		&e.Location.Venue, &e.Location.Address, &e.Location.City, &e.Location.Coordinates.Lat, &e.Location.Coordinates.Lng,
		&e.StartDate, &e.EndDate, &e.RegistrationStartDate, &e.RegistrationEndDate,
		&e.TotalSeats, &e.AvailableSeats, &e.Price, &e.RegistrationFields, &e.Status,
		&e.BannerImage, &e.BannerKey, &e.ReminderSentAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	cat.ID = e.CategoryID
	org.ID = e.OrganizerID
	e.Category = &cat
	e.Organizer = &org
	if e.RegistrationFields == nil {
		e.RegistrationFields = []models.RegistrationField{}
	}
	return &e, nil
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return ErrCategoryNotFound
		case "23505":
			return ErrDuplicateSeat
		case "23514":
			return ErrCapacity
		}
	}
	return err
}

// Create inserts the event and its seat layout in one transaction.
func (r *Repository) Create(ctx context.Context, e *models.Event, seats []models.Seat) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const q = `INSERT INTO events (title, description, category_id, organizer_id, venue, address, city, lat, lng,
			start_date, end_date, registration_start_date, registration_end_date, total_seats, available_seats,
			price, registration_fields, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING id, created_at, updated_at`
		err := tx.QueryRow(ctx, q, e.Title, e.Description, e.CategoryID, e.OrganizerID,
			e.Location.Venue, e.Location.Address, e.Location.City, e.Location.Coordinates.Lat, e.Location.Coordinates.Lng,
			e.StartDate, e.EndDate, e.RegistrationStartDate, e.RegistrationEndDate, e.TotalSeats, e.AvailableSeats,
			e.Price, e.RegistrationFields, string(e.Status)).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return translate(err)
		}
		for i := range seats {
			s := &seats[i]
			s.EventID = e.ID
			err := tx.QueryRow(ctx, `INSERT INTO seats (event_id, seat_number, row_label, section, price, status)
				VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`,
				e.ID, s.SeatNumber, s.Row, s.Section, s.Price, string(s.Status)).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert seat %s: %w", s.SeatNumber, translate(err))
			}
		}
		return nil
	})
}

// Get returns an event with category and organizer populated.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.db.QueryRow(ctx, eventSelect+` WHERE e.id = $1`, id))
}

// List returns events matching f ordered by start date, plus the total match count.
func (r *Repository) List(ctx context.Context, f ListFilter, limit, offset int) ([]models.Event, int, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.CategoryID != nil {
		add("e.category_id = ?", *f.CategoryID)
	}
	if f.Status != "" {
		add("e.status = ?", string(f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add("(e.title ILIKE ? OR e.description ILIKE ?)", "%"+s+"%")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM events e`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.db.Query(ctx, eventSelect+where+
		fmt.Sprintf(` ORDER BY e.start_date ASC LIMIT $%d OFFSET $%d`, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *e)
	}
	return list, total, rows.Err()
}

const (
	lockCapacitySQL = `SELECT total_seats, available_seats FROM events WHERE id = $1 FOR UPDATE`

	setCapacitySQL = `UPDATE events SET total_seats = $2, available_seats = $3 WHERE id = $1`

	updateEventSQL = `UPDATE events SET title = $2, description = $3, category_id = $4, venue = $5, address = $6, city = $7,
		lat = $8, lng = $9, start_date = $10, end_date = $11, registration_start_date = $12, registration_end_date = $13,
		price = $14, registration_fields = $15, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
)

// Update writes the descriptive columns of e. Seat counts are only written when capacity
// changes, and then resolved against the locked row so concurrent bookings and
// registrations are not overwritten.
func (r *Repository) Update(ctx context.Context, e *models.Event, capacity Capacity) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if capacity.Changed() {
			var total, available *int
			if err := tx.QueryRow(ctx, lockCapacitySQL, e.ID).Scan(&total, &available); err != nil {
				return translate(err)
			}
			total, available, err := capacity.Resolve(total, available)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, setCapacitySQL, e.ID, total, available); err != nil {
				return translate(err)
			}
			e.TotalSeats, e.AvailableSeats = total, available
		}
		err := tx.QueryRow(ctx, updateEventSQL, e.ID, e.Title, e.Description, e.CategoryID,
			e.Location.Venue, e.Location.Address, e.Location.City, e.Location.Coordinates.Lat, e.Location.Coordinates.Lng,
			e.StartDate, e.EndDate, e.RegistrationStartDate, e.RegistrationEndDate,
			e.Price, e.RegistrationFields).Scan(&e.UpdatedAt)
		return translate(err)
	})
}

// SetStatus changes the lifecycle status of an event.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBanner stores the banner URL and object key.
func (r *Repository) SetBanner(ctx context.Context, id uuid.UUID, url, key string) error {
	tag, err := r.db.Exec(ctx, `UPDATE events SET banner_image = $2, banner_key = $3, updated_at = NOW() WHERE id = $1`, id, url, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an event; seats, bookings and registrations cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Seats returns the seat map of an event ordered by section, row and number.
func (r *Repository) Seats(ctx context.Context, eventID uuid.UUID) ([]models.Seat, error) {
	rows, err := r.db.Query(ctx, `SELECT id, event_id, seat_number, row_label, section, price, status, created_at, updated_at
		FROM seats WHERE event_id = $1 ORDER BY section, row_label, seat_number`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Seat{}
	for rows.Next() {
		var s models.Seat
		if err := rows.Scan(&s.ID, &s.EventID, &s.SeatNumber, &s.Row, &s.Section, &s.Price, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// RegisteredUserIDs returns users currently registered for an event.
func (r *Repository) RegisteredUserIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM registrations WHERE event_id = $1 AND status = 'REGISTERED'`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DueForReminder returns published events starting before the horizon that have no reminder yet.
func (r *Repository) DueForReminder(ctx context.Context, now, horizon time.Time) ([]models.Event, error) {
	rows, err := r.db.Query(ctx, eventSelect+` WHERE e.status = 'PUBLISHED' AND e.reminder_sent_at IS NULL
		AND e.start_date > $1 AND e.start_date <= $2 ORDER BY e.start_date`, now, horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// MarkReminderSent records that the reminder for an event went out.
func (r *Repository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE events SET reminder_sent_at = $2 WHERE id = $1`, id, at)
	return err
}
