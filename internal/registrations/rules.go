package registrations

import (
	"errors"
	"strings"
	"time"

	"github.com/campus-hub/backend/internal/models"
)

var (
	ErrNotFound          = errors.New("registration not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrForbidden         = errors.New("not the registration owner")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrAlreadyCancelled  = errors.New("registration already cancelled")
	ErrFull              = errors.New("event is full")
)

// RuleError is a rejected registration; its message is returned to the client.
type RuleError struct {
	msg string
}

func (e *RuleError) Error() string { return e.msg }

func rejected(msg string) error { return &RuleError{msg: msg} }

// EventState is the part of an event that decides whether registration is open.
type EventState struct {
	Status                models.EventStatus
	RegistrationStartDate *time.Time
	RegistrationEndDate   *time.Time
	TotalSeats            *int
	AvailableSeats        *int
	Fields                []models.RegistrationField
}

// remaining returns the open capacity; ok is false when capacity is not tracked.
func (s EventState) remaining() (n int, ok bool) {
	if s.TotalSeats == nil {
		return 0, false
	}
	if s.AvailableSeats != nil {
		return *s.AvailableSeats, true
	}
	return *s.TotalSeats, true
}

// CheckOpen reports why a registration at now must be rejected, or nil.
func CheckOpen(s EventState, info map[string]string, now time.Time) error {
	switch s.Status {
	case models.EventPublished:
	case models.EventDraft:
		return rejected("Event is still in draft.")
	case models.EventCancelled, models.EventCompleted:
		return rejected("Event is " + strings.ToLower(string(s.Status)) + ".")
	default:
		return rejected("This event is not open for registration")
	}
	if s.RegistrationStartDate != nil && now.Before(*s.RegistrationStartDate) {
		return rejected("Registration opens on " + s.RegistrationStartDate.UTC().Format("Jan 2, 2006 15:04 MST"))
	}
	if s.RegistrationEndDate != nil && now.After(*s.RegistrationEndDate) {
		return rejected("Registration for this event has already closed")
	}
	if n, tracked := s.remaining(); tracked && n <= 0 {
		return rejected("This event is full")
	}
	if missing := models.MissingRequiredFields(s.Fields, info); len(missing) > 0 {
		return rejected("Missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}
