package bookings

import (
	"errors"

	"github.com/google/uuid"

	"github.com/campus-hub/backend/internal/models"
)

var (
	ErrNotFound         = errors.New("booking not found")
	ErrEventNotFound    = errors.New("event not found")
	ErrNotOpen          = errors.New("event is not open for booking")
	ErrSeatsUnavailable = errors.New("one or more seats are not available")
)

// Request is a validated booking request.
type Request struct {
	UserID      uuid.UUID
	EventID     uuid.UUID
	SeatIDs     []uuid.UUID
	TotalAmount *float64
}

// Validate checks the request shape before any database work.
func (r Request) Validate() error {
	if r.EventID == uuid.Nil || len(r.SeatIDs) == 0 {
		return errors.New("eventId and at least one seatId are required")
	}
	seen := make(map[uuid.UUID]struct{}, len(r.SeatIDs))
	for _, id := range r.SeatIDs {
		if _, dup := seen[id]; dup {
			return errors.New("Duplicate seatIds are not allowed")
		}
		seen[id] = struct{}{}
	}
	if r.TotalAmount != nil && *r.TotalAmount < 0 {
		return errors.New("totalAmount cannot be negative")
	}
	return nil
}

// TotalAmount prices a booking. An explicit amount wins; otherwise the sum of seat prices when
// positive, else the event price per seat.
func TotalAmount(requested *float64, seats []models.Seat, eventPrice float64) float64 {
	if requested != nil {
		return *requested
	}
	var sum float64
	for _, s := range seats {
		if s.Price != nil {
			sum += *s.Price
		}
	}
	if sum > 0 {
		return sum
	}
	return eventPrice * float64(len(seats))
}

// RemainingSeats returns the available count after booking n seats, floored at zero.
// Untracked capacity stays nil; a missing available count starts from total.
func RemainingSeats(total, available *int, n int) *int {
	if total == nil {
		return nil
	}
	current := *total
	if available != nil {
		current = *available
	}
	left := current - n
	if left < 0 {
		left = 0
	}
	return &left
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
