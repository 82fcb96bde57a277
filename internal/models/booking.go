package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingFailed    BookingStatus = "FAILED"
)

// PaymentStatus is the payment state of a booking.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Booking reserves specific seats of one event for a user.
type Booking struct {
	ID            uuid.UUID     `json:"_id"`
	UserID        uuid.UUID     `json:"-"`
	User          *UserSummary  `json:"user,omitempty"`
	EventID       uuid.UUID     `json:"-"`
	Event         *EventSummary `json:"event,omitempty"`
	SeatIDs       []uuid.UUID   `json:"-"`
	Seats         []Seat        `json:"seats"`
	TotalAmount   float64       `json:"totalAmount"`
	BookingStatus BookingStatus `json:"bookingStatus"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}
