package events

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campus-hub/backend/internal/models"
)

// SeatInput is one seat of the layout submitted with a new event.
type SeatInput struct {
	SeatNumber string   `json:"seatNumber"`
	Row        string   `json:"row"`
	Section    string   `json:"section"`
	Price      *float64 `json:"price"`
}

// CreateRequest is the body for POST /api/events.
type CreateRequest struct {
	Title                 string                     `json:"title"`
	Description           string                     `json:"description"`
	Category              uuid.UUID                  `json:"category"`
	Location              models.Location            `json:"location"`
	StartDate             *time.Time                 `json:"startDate"`
	EndDate               *time.Time                 `json:"endDate"`
	RegistrationStartDate *time.Time                 `json:"registrationStartDate"`
	RegistrationEndDate   *time.Time                 `json:"registrationEndDate"`
	TotalSeats            *int                       `json:"totalSeats"`
	Price                 float64                    `json:"price"`
	RegistrationFields    []models.RegistrationField `json:"registrationFields"`
	Status                models.EventStatus         `json:"status"`
	Seats                 []SeatInput                `json:"seats"`
}

// UpdateRequest is the body for PUT /api/events/:id. Nil fields are left unchanged.
type UpdateRequest struct {
	Title                 *string                    `json:"title"`
	Description           *string                    `json:"description"`
	Category              *uuid.UUID                 `json:"category"`
	Location              *models.Location           `json:"location"`
	StartDate             *time.Time                 `json:"startDate"`
	EndDate               *time.Time                 `json:"endDate"`
	RegistrationStartDate *time.Time                 `json:"registrationStartDate"`
	RegistrationEndDate   *time.Time                 `json:"registrationEndDate"`
	TotalSeats            *int                       `json:"totalSeats"`
	AvailableSeats        *int                       `json:"availableSeats"`
	Price                 *float64                   `json:"price"`
	RegistrationFields    []models.RegistrationField `json:"registrationFields"`
}

// StatusRequest is the body for POST /api/events/:id/status.
type StatusRequest struct {
	Status models.EventStatus `json:"status"`
}

func checkDates(start, end time.Time, regStart, regEnd *time.Time) error {
	if end.Before(start) {
		return errors.New("End date must be after start date")
	}
	if regStart != nil && regEnd != nil && regEnd.Before(*regStart) {
		return errors.New("Registration end date must be after registration start date")
	}
	return nil
}

// Build validates the request and returns the event and seat layout to insert.
func (r *CreateRequest) Build(organizerID uuid.UUID) (*models.Event, []models.Seat, error) {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" || r.Category == uuid.Nil || r.StartDate == nil || r.EndDate == nil {
		return nil, nil, errors.New("Title, category, startDate and endDate are required")
	}
	if err := checkDates(*r.StartDate, *r.EndDate, r.RegistrationStartDate, r.RegistrationEndDate); err != nil {
		return nil, nil, err
	}
	status := r.Status
	if status == "" {
		status = models.EventDraft
	}
	if !status.Valid() {
		return nil, nil, errors.New("Invalid status")
	}
	if r.Price < 0 {
		return nil, nil, errors.New("Price cannot be negative")
	}
	fields := r.RegistrationFields
	if fields == nil {
		fields = []models.RegistrationField{}
	}
	if err := models.ValidateRegistrationFields(fields); err != nil {
		return nil, nil, err
	}

	seats := make([]models.Seat, 0, len(r.Seats))
	seen := make(map[string]struct{}, len(r.Seats))
	for _, s := range r.Seats {
		num := strings.TrimSpace(s.SeatNumber)
		if num == "" {
			return nil, nil, errors.New("Every seat needs a seatNumber")
		}
		if _, dup := seen[num]; dup {
			return nil, nil, errors.New("Duplicate seatNumber " + num)
		}
		seen[num] = struct{}{}
		if s.Price != nil && *s.Price < 0 {
			return nil, nil, errors.New("Seat price cannot be negative")
		}
		seats = append(seats, models.Seat{SeatNumber: num, Row: s.Row, Section: s.Section, Price: s.Price, Status: models.SeatAvailable})
	}

	total := r.TotalSeats
	if total == nil && len(seats) > 0 {
		n := len(seats)
		total = &n
	}
	var available *int
	if total != nil {
		if *total < 0 {
			return nil, nil, errors.New("Total seats cannot be negative")
		}
		if *total < len(seats) {
			return nil, nil, errors.New("Total seats cannot be less than the number of seats in the layout")
		}
		v := *total
		available = &v
	}

	e := &models.Event{
		Title:                 r.Title,
		Description:           r.Description,
		CategoryID:            r.Category,
		OrganizerID:           organizerID,
		Location:              r.Location,
		StartDate:             *r.StartDate,
		EndDate:               *r.EndDate,
		RegistrationStartDate: r.RegistrationStartDate,
		RegistrationEndDate:   r.RegistrationEndDate,
		TotalSeats:            total,
		AvailableSeats:        available,
		Price:                 r.Price,
		RegistrationFields:    fields,
		Status:                status,
	}
	return e, seats, nil
}

// Apply merges the request into e and re-validates the result.
func (r *UpdateRequest) Apply(e *models.Event) error {
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		if t == "" {
			return errors.New("Title cannot be empty")
		}
		e.Title = t
	}
	if r.Description != nil {
		e.Description = *r.Description
	}
	if r.Category != nil && *r.Category != uuid.Nil {
		e.CategoryID = *r.Category
		e.Category = nil
	}
	if r.Location != nil {
		e.Location = *r.Location
	}
	if r.StartDate != nil {
		e.StartDate = *r.StartDate
	}
	if r.EndDate != nil {
		e.EndDate = *r.EndDate
	}
	if r.RegistrationStartDate != nil {
		e.RegistrationStartDate = r.RegistrationStartDate
	}
	if r.RegistrationEndDate != nil {
		e.RegistrationEndDate = r.RegistrationEndDate
	}
	if err := checkDates(e.StartDate, e.EndDate, e.RegistrationStartDate, e.RegistrationEndDate); err != nil {
		return err
	}
	if r.Price != nil {
		if *r.Price < 0 {
			return errors.New("Price cannot be negative")
		}
		e.Price = *r.Price
	}
	if r.RegistrationFields != nil {
		if err := models.ValidateRegistrationFields(r.RegistrationFields); err != nil {
			return err
		}
		e.RegistrationFields = r.RegistrationFields
	}
	if !r.Capacity().Changed() {
		return nil
	}
	total, available, err := r.Capacity().Resolve(e.TotalSeats, e.AvailableSeats)
	if err != nil {
		return err
	}
	e.TotalSeats, e.AvailableSeats = total, available
	return nil
}

// Capacity returns the seat count change carried by the request.
func (r *UpdateRequest) Capacity() Capacity {
	return Capacity{Total: r.TotalSeats, Available: r.AvailableSeats}
}

// Capacity is a requested change to an event's seat counts. Nil fields are left unchanged.
type Capacity struct {
	Total     *int
	Available *int
}

// Changed reports whether any seat count was requested.
func (c Capacity) Changed() bool { return c.Total != nil || c.Available != nil }

// Resolve applies c to the current counts and returns the new ones. A new total without an
// explicit available count shifts availability by the same delta, clamped to [0, total].
func (c Capacity) Resolve(total, available *int) (*int, *int, error) {
	if c.Total != nil {
		if *c.Total < 0 {
			return nil, nil, ErrTotalNegative
		}
		t, a := *c.Total, *c.Total
		if total != nil && available != nil {
			a = *available + (t - *total)
		}
		total, available = &t, &a
	}
	if c.Available != nil {
		v := *c.Available
		available = &v
	}
	if available == nil {
		return total, nil, nil
	}
	if total == nil {
		return nil, nil, ErrCapacityUntracked
	}
	if *available < 0 {
		if c.Available != nil {
			return nil, nil, ErrAvailableNegative
		}
		zero := 0
		available = &zero
	}
	if *available > *total {
		if c.Available != nil {
			return nil, nil, ErrCapacity
		}
		v := *total
		available = &v
	}
	return total, available, nil
}
