package registrations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/campus-hub/backend/internal/models"
)

func intPtr(v int) *int { return &v }

func TestCheckOpen(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	later := now.Add(24 * time.Hour)
	earlier := now.Add(-time.Hour)

	cases := []struct {
		name  string
		state EventState
		info  map[string]string
		want  string
	}{
		{"draft", EventState{Status: models.EventDraft}, nil, "Event is still in draft."},
		{"cancelled", EventState{Status: models.EventCancelled}, nil, "Event is cancelled."},
		{"completed", EventState{Status: models.EventCompleted}, nil, "Event is completed."},
		{"not yet open", EventState{Status: models.EventPublished, RegistrationStartDate: &later}, nil,
			"Registration opens on Oct 19, 2026 12:00 UTC"},
		{"closed", EventState{Status: models.EventPublished, RegistrationEndDate: &earlier}, nil,
			"Registration for this event has already closed"},
		{"full", EventState{Status: models.EventPublished, TotalSeats: intPtr(50), AvailableSeats: intPtr(0)}, nil,
			"This event is full"},
		{"missing field", EventState{Status: models.EventPublished, Fields: []models.RegistrationField{
			{Label: "Roll number", Name: "roll", Required: true},
			{Label: "Notes", Name: "notes"},
		}}, map[string]string{"notes": "x"}, "Missing required fields: roll"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckOpen(tc.state, tc.info, now)
			var rule *RuleError
			assert.ErrorAs(t, err, &rule)
			assert.EqualError(t, err, tc.want)
		})
	}
}

func TestCheckOpen_Accepts(t *testing.T) {
	now := time.Now()
	assert.NoError(t, CheckOpen(EventState{Status: models.EventPublished}, nil, now))
	assert.NoError(t, CheckOpen(EventState{Status: models.EventPublished, TotalSeats: intPtr(3)}, nil, now))
	assert.NoError(t, CheckOpen(EventState{Status: models.EventPublished, TotalSeats: intPtr(3), AvailableSeats: intPtr(1),
		Fields: []models.RegistrationField{{Name: "roll", Required: true}}}, map[string]string{"roll": "42"}, now))
}
