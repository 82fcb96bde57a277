package models

import (
	"time"

	"github.com/google/uuid"
)

// SeatStatus is the lifecycle tag of a bookable seat.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatReserved  SeatStatus = "RESERVED"
	SeatBooked    SeatStatus = "BOOKED"
)

// Seat is a bookable unit of an event.
type Seat struct {
	ID         uuid.UUID  `json:"_id"`
	EventID    uuid.UUID  `json:"event"`
	SeatNumber string     `json:"seatNumber"`
	Row        string     `json:"row"`
	Section    string     `json:"section"`
	Price      *float64   `json:"price,omitempty"`
	Status     SeatStatus `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
