package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/pkg/database"
)

// Store is the booking persistence used by the handler.
type Store interface {
	Book(ctx context.Context, req Request) (*models.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error)
}

// Repository handles booking persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a booking repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const (
	lockEventSQL = `SELECT status, price, total_seats, available_seats FROM events WHERE id = $1 FOR UPDATE`

	lockSeatsSQL = `SELECT id, seat_number, row_label, section, price, status FROM seats
		WHERE event_id = $1 AND id IN (SELECT unnest($2::text[])::uuid) AND status = 'AVAILABLE'
		ORDER BY id FOR UPDATE`

	insertBookingSQL = `INSERT INTO bookings (user_id, event_id, total_amount, booking_status, payment_status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`

	linkSeatsSQL = `INSERT INTO booking_seats (booking_id, seat_id) SELECT $1, unnest($2::text[])::uuid`

	markBookedSQL = `UPDATE seats SET status = 'BOOKED', updated_at = NOW()
		WHERE event_id = $1 AND id IN (SELECT unnest($2::text[])::uuid) AND status = 'AVAILABLE'`

	decrementSQL = `UPDATE events SET available_seats = $2, updated_at = NOW() WHERE id = $1`
)

// Book reserves the requested seats in one transaction. The event row and the seat rows are
// locked first; seats flip to BOOKED only while still AVAILABLE, and the affected count must
// match the request.
func (r *Repository) Book(ctx context.Context, req Request) (*models.Booking, error) {
	b := &models.Booking{
		UserID:        req.UserID,
		EventID:       req.EventID,
		SeatIDs:       req.SeatIDs,
		BookingStatus: models.BookingConfirmed,
		PaymentStatus: models.PaymentUnpaid,
	}
	ids := idStrings(req.SeatIDs)
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var status models.EventStatus
		var price float64
		var total, available *int
		err := tx.QueryRow(ctx, lockEventSQL, req.EventID).Scan(&status, &price, &total, &available)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEventNotFound
		}
		if err != nil {
			return fmt.Errorf("lock event: %w", err)
		}
		if status.Closed() {
			return ErrNotOpen
		}

		seats, err := lockSeats(ctx, tx, req.EventID, ids)
		if err != nil {
			return err
		}
		if len(seats) != len(req.SeatIDs) {
			return ErrSeatsUnavailable
		}
		b.TotalAmount = TotalAmount(req.TotalAmount, seats, price)

		if err := tx.QueryRow(ctx, insertBookingSQL, req.UserID, req.EventID, b.TotalAmount,
			string(b.BookingStatus), string(b.PaymentStatus)).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		if _, err := tx.Exec(ctx, linkSeatsSQL, b.ID, ids); err != nil {
			return fmt.Errorf("link seats: %w", err)
		}
		tag, err := tx.Exec(ctx, markBookedSQL, req.EventID, ids)
		if err != nil {
			return fmt.Errorf("mark seats booked: %w", err)
		}
		if tag.RowsAffected() != int64(len(req.SeatIDs)) {
			return ErrSeatsUnavailable
		}
		if left := RemainingSeats(total, available, len(seats)); left != nil {
			if _, err := tx.Exec(ctx, decrementSQL, req.EventID, *left); err != nil {
				return fmt.Errorf("update available seats: %w", err)
			}
		}
		for i := range seats {
			seats[i].EventID = req.EventID
			seats[i].Status = models.SeatBooked
		}
		b.Seats = seats
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func lockSeats(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, ids []string) ([]models.Seat, error) {
	rows, err := tx.Query(ctx, lockSeatsSQL, eventID, ids)
	if err != nil {
		return nil, fmt.Errorf("lock seats: %w", err)
	}
	defer rows.Close()
	var seats []models.Seat
	for rows.Next() {
		var s models.Seat
		if err := rows.Scan(&s.ID, &s.SeatNumber, &s.Row, &s.Section, &s.Price, &s.Status); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

const bookingSelect = `SELECT b.id, b.user_id, u.name, u.email, b.event_id, e.title, e.start_date, e.end_date,
	e.venue, e.address, e.city, e.status, b.total_amount, b.booking_status, b.payment_status, b.created_at, b.updated_at
	FROM bookings b
	JOIN users u ON u.id = b.user_id
	JOIN events e ON e.id = b.event_id`

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var b models.Booking
	var u models.UserSummary
	var e models.EventSummary
	err := row.Scan(&b.ID, &b.UserID, &u.Name, &u.Email, &b.EventID, &e.Title, &e.StartDate, &e.EndDate,
		&e.Location.Venue, &e.Location.Address, &e.Location.City, &e.Status,
		&b.TotalAmount, &b.BookingStatus, &b.PaymentStatus, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.ID = b.UserID
	e.ID = b.EventID
	b.User = &u
	b.Event = &e
	b.Seats = []models.Seat{}
	return &b, nil
}

const bookedSeatsSQL = `SELECT bs.booking_id, s.id, s.event_id, s.seat_number, s.row_label, s.section, s.price, s.status, s.created_at, s.updated_at
	FROM booking_seats bs JOIN seats s ON s.id = bs.seat_id`

// attachSeats loads the seats of every booking in list with one query.
func (r *Repository) attachSeats(ctx context.Context, where string, arg interface{}, list []*models.Booking) error {
	rows, err := r.db.Query(ctx, bookedSeatsSQL+" WHERE "+where+" ORDER BY s.seat_number", arg)
	if err != nil {
		return err
	}
	defer rows.Close()
	byID := make(map[uuid.UUID]*models.Booking, len(list))
	for _, b := range list {
		byID[b.ID] = b
	}
	for rows.Next() {
		var bookingID uuid.UUID
		var s models.Seat
		if err := rows.Scan(&bookingID, &s.ID, &s.EventID, &s.SeatNumber, &s.Row, &s.Section, &s.Price, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return err
		}
		if b, ok := byID[bookingID]; ok {
			b.Seats = append(b.Seats, s)
			b.SeatIDs = append(b.SeatIDs, s.ID)
		}
	}
	return rows.Err()
}

// Get returns a booking with user, event and seats populated.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, bookingSelect+` WHERE b.id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachSeats(ctx, "bs.booking_id = $1", id, []*models.Booking{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// ListForUser returns a user's bookings, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	rows, err := r.db.Query(ctx, bookingSelect+` WHERE b.user_id = $1 ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	var ptrs []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ptrs = append(ptrs, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ptrs) > 0 {
		if err := r.attachSeats(ctx, "bs.booking_id IN (SELECT id FROM bookings WHERE user_id = $1)", userID, ptrs); err != nil {
			return nil, err
		}
	}
	list := make([]models.Booking, len(ptrs))
	for i, b := range ptrs {
		list[i] = *b
	}
	return list, nil
}
