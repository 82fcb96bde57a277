package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the state of an enrollment.
type RegistrationStatus string

const (
	RegistrationRegistered RegistrationStatus = "REGISTERED"
	RegistrationCancelled  RegistrationStatus = "CANCELLED"
)

// Registration is a capacity-only enrollment of a user into an event.
type Registration struct {
	ID             uuid.UUID          `json:"_id"`
	UserID         uuid.UUID          `json:"-"`
	User           *UserSummary       `json:"user,omitempty"`
	EventID        uuid.UUID          `json:"-"`
	Event          *EventSummary      `json:"event,omitempty"`
	Status         RegistrationStatus `json:"status"`
	AdditionalInfo map[string]string  `json:"additionalInfo"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// MissingRequiredFields returns the names of required fields absent or empty in info.
func MissingRequiredFields(fields []RegistrationField, info map[string]string) []string {
	var missing []string
	for _, f := range fields {
		if !f.Required {
			continue
		}
		if v, ok := info[f.Name]; !ok || v == "" {
			missing = append(missing, f.Name)
		}
	}
	return missing
}
