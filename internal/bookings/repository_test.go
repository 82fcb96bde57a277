package bookings

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/backend/internal/models"
)

func intPtr(v int) *int { return &v }

func seatRows(ids []uuid.UUID) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "seat_number", "row_label", "section", "price", "status"})
	for i, id := range ids {
		rows.AddRow(id, "A"+string(rune('1'+i)), "A", "Main", nil, models.SeatAvailable)
	}
	return rows
}

// Event with 10 tracked seats; booking 3 leaves 7 and confirms the booking.
func TestRepository_BookThreeOfTen(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, eventID, bookingID := uuid.New(), uuid.New(), uuid.New()
	seatIDs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventSQL)).WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "price", "total_seats", "available_seats"}).
			AddRow(models.EventPublished, 20.0, intPtr(10), intPtr(10)))
	mock.ExpectQuery(regexp.QuoteMeta(lockSeatsSQL)).WithArgs(eventID, pgxmock.AnyArg()).
		WillReturnRows(seatRows(seatIDs))
	mock.ExpectQuery(regexp.QuoteMeta(insertBookingSQL)).
		WithArgs(userID, eventID, 60.0, "CONFIRMED", "UNPAID").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(bookingID, now, now))
	mock.ExpectExec(regexp.QuoteMeta(linkSeatsSQL)).WithArgs(bookingID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 3))
	mock.ExpectExec(regexp.QuoteMeta(markBookedSQL)).WithArgs(eventID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectExec(regexp.QuoteMeta(decrementSQL)).WithArgs(eventID, 7).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	b, err := NewRepository(mock).Book(context.Background(), Request{UserID: userID, EventID: eventID, SeatIDs: seatIDs})
	require.NoError(t, err)
	assert.Equal(t, bookingID, b.ID)
	assert.Equal(t, models.BookingConfirmed, b.BookingStatus)
	assert.Equal(t, models.PaymentUnpaid, b.PaymentStatus)
	assert.Equal(t, 60.0, b.TotalAmount)
	require.Len(t, b.Seats, 3)
	for _, s := range b.Seats {
		assert.Equal(t, models.SeatBooked, s.Status)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_BookRejectsTakenSeat(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID := uuid.New()
	seatIDs := []uuid.UUID{uuid.New(), uuid.New()}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventSQL)).WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "price", "total_seats", "available_seats"}).
			AddRow(models.EventPublished, 0.0, intPtr(2), intPtr(1)))
	mock.ExpectQuery(regexp.QuoteMeta(lockSeatsSQL)).WithArgs(eventID, pgxmock.AnyArg()).
		WillReturnRows(seatRows(seatIDs[:1]))
	mock.ExpectRollback()

	_, err = NewRepository(mock).Book(context.Background(), Request{UserID: uuid.New(), EventID: eventID, SeatIDs: seatIDs})
	assert.ErrorIs(t, err, ErrSeatsUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_BookConditionalUpdateMismatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID, bookingID := uuid.New(), uuid.New()
	seatIDs := []uuid.UUID{uuid.New(), uuid.New()}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventSQL)).WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "price", "total_seats", "available_seats"}).
			AddRow(models.EventDraft, 0.0, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta(lockSeatsSQL)).WithArgs(eventID, pgxmock.AnyArg()).
		WillReturnRows(seatRows(seatIDs))
	mock.ExpectQuery(regexp.QuoteMeta(insertBookingSQL)).
		WithArgs(pgxmock.AnyArg(), eventID, 0.0, "CONFIRMED", "UNPAID").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(bookingID, now, now))
	mock.ExpectExec(regexp.QuoteMeta(linkSeatsSQL)).WithArgs(bookingID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	// Another transaction booked one seat between the lock and the update.
	mock.ExpectExec(regexp.QuoteMeta(markBookedSQL)).WithArgs(eventID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectRollback()

	_, err = NewRepository(mock).Book(context.Background(), Request{UserID: uuid.New(), EventID: eventID, SeatIDs: seatIDs})
	assert.ErrorIs(t, err, ErrSeatsUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_BookClosedEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	eventID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventSQL)).WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "price", "total_seats", "available_seats"}).
			AddRow(models.EventCancelled, 0.0, nil, nil))
	mock.ExpectRollback()

	_, err = NewRepository(mock).Book(context.Background(), Request{UserID: uuid.New(), EventID: eventID, SeatIDs: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_BookMissingEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	eventID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventSQL)).WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "price", "total_seats", "available_seats"}))
	mock.ExpectRollback()

	_, err = NewRepository(mock).Book(context.Background(), Request{UserID: uuid.New(), EventID: eventID, SeatIDs: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, ErrEventNotFound)
}
