package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventCancelled EventStatus = "CANCELLED"
	EventCompleted EventStatus = "COMPLETED"
)

// Valid reports whether s is one of the closed set of statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventPublished, EventCancelled, EventCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether an event in s may move to next. COMPLETED is terminal.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	return next.Valid() && s != EventCompleted
}

// Closed reports whether the event no longer accepts bookings.
func (s EventStatus) Closed() bool {
	return s == EventCancelled || s == EventCompleted
}

// FieldType is the input kind of a custom registration field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
)

// RegistrationField describes one organizer-defined registration question.
type RegistrationField struct {
	Label     string    `json:"label"`
	Name      string    `json:"name"`
	FieldType FieldType `json:"fieldType"`
	Options   []string  `json:"options,omitempty"`
	Required  bool      `json:"required"`
}

// ValidateRegistrationFields checks labels, unique names, known types and select options.
// An empty field type defaults to text.
func ValidateRegistrationFields(fields []RegistrationField) error {
	seen := make(map[string]struct{}, len(fields))
	for i := range fields {
		f := &fields[i]
		if f.Label == "" || f.Name == "" {
			return fmt.Errorf("registration field %d: label and name are required", i+1)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("registration field %q is defined twice", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.FieldType == "" {
			f.FieldType = FieldText
		}
		switch f.FieldType {
		case FieldText, FieldNumber, FieldCheckbox:
		case FieldSelect:
			if len(f.Options) == 0 {
				return fmt.Errorf("registration field %q: select requires options", f.Name)
			}
		default:
			return fmt.Errorf("registration field %q: unknown type %q", f.Name, f.FieldType)
		}
	}
	return nil
}

// Coordinates is a geographic point.
type Coordinates struct {
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

// Location is where an event takes place.
type Location struct {
	Venue       string      `json:"venue"`
	Address     string      `json:"address"`
	City        string      `json:"city"`
	Coordinates Coordinates `json:"coordinates"`
}

// Event is a campus event.
type Event struct {
	ID                    uuid.UUID           `json:"_id"`
	Title                 string              `json:"title"`
	Description           string              `json:"description"`
	CategoryID            uuid.UUID           `json:"-"`
	Category              *Category           `json:"category,omitempty"`
	OrganizerID           uuid.UUID           `json:"-"`
	Organizer             *UserSummary        `json:"organizer,omitempty"`
	Location              Location            `json:"location"`
	StartDate             time.Time           `json:"startDate"`
	EndDate               time.Time           `json:"endDate"`
	RegistrationStartDate *time.Time          `json:"registrationStartDate,omitempty"`
	RegistrationEndDate   *time.Time          `json:"registrationEndDate,omitempty"`
	TotalSeats            *int                `json:"totalSeats,omitempty"`
	AvailableSeats        *int                `json:"availableSeats,omitempty"`
	Price                 float64             `json:"price"`
	RegistrationFields    []RegistrationField `json:"registrationFields"`
	Status                EventStatus         `json:"status"`
	BannerImage           *string             `json:"bannerImage,omitempty"`
	BannerKey             *string             `json:"-"`
	ReminderSentAt        *time.Time          `json:"-"`
	CreatedAt             time.Time           `json:"createdAt"`
	UpdatedAt             time.Time           `json:"updatedAt"`
}

// TracksCapacity reports whether the event has a seat limit.
func (e *Event) TracksCapacity() bool { return e.TotalSeats != nil }

// CanManage reports whether user may modify the event: its organizer or an admin.
func (e *Event) CanManage(userID uuid.UUID, role Role) bool {
	return role == RoleAdmin || e.OrganizerID == userID
}

// EventSummary is the populated form of an event reference.
type EventSummary struct {
	ID        uuid.UUID   `json:"_id"`
	Title     string      `json:"title"`
	StartDate time.Time   `json:"startDate"`
	EndDate   time.Time   `json:"endDate"`
	Location  Location    `json:"location"`
	Status    EventStatus `json:"status"`
}
