package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/backend/internal/models"
)

func intPtr(v int) *int { return &v }

func validCreate() CreateRequest {
	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	return CreateRequest{Title: " Tech Fest ", Category: uuid.New(), StartDate: &start, EndDate: &end}
}

func TestBuild_Defaults(t *testing.T) {
	req := validCreate()
	organizer := uuid.New()
	e, seats, err := req.Build(organizer)
	require.NoError(t, err)
	assert.Equal(t, "Tech Fest", e.Title)
	assert.Equal(t, models.EventDraft, e.Status)
	assert.Equal(t, organizer, e.OrganizerID)
	assert.Nil(t, e.TotalSeats)
	assert.Nil(t, e.AvailableSeats)
	assert.Empty(t, seats)
	assert.NotNil(t, e.RegistrationFields)
}

func TestBuild_SeatLayoutSetsCapacity(t *testing.T) {
	req := validCreate()
	price := 50.0
	req.Seats = []SeatInput{{SeatNumber: "A1", Row: "A", Price: &price}, {SeatNumber: "A2", Row: "A"}}
	e, seats, err := req.Build(uuid.New())
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, models.SeatAvailable, seats[0].Status)
	assert.Equal(t, 2, *e.TotalSeats)
	assert.Equal(t, 2, *e.AvailableSeats)
}

func TestBuild_Rejects(t *testing.T) {
	cases := map[string]func(r *CreateRequest){
		"missing title":     func(r *CreateRequest) { r.Title = "  " },
		"missing category":  func(r *CreateRequest) { r.Category = uuid.Nil },
		"missing end":       func(r *CreateRequest) { r.EndDate = nil },
		"end before start":  func(r *CreateRequest) { e := r.StartDate.Add(-time.Hour); r.EndDate = &e },
		"unknown status":    func(r *CreateRequest) { r.Status = "ARCHIVED" },
		"duplicate seats":   func(r *CreateRequest) { r.Seats = []SeatInput{{SeatNumber: "A1"}, {SeatNumber: "A1"}} },
		"blank seat number": func(r *CreateRequest) { r.Seats = []SeatInput{{SeatNumber: ""}} },
		"total below seats": func(r *CreateRequest) {
			r.TotalSeats = intPtr(1)
			r.Seats = []SeatInput{{SeatNumber: "A1"}, {SeatNumber: "A2"}}
		},
		"select without options": func(r *CreateRequest) {
			r.RegistrationFields = []models.RegistrationField{{Label: "Size", Name: "size", FieldType: models.FieldSelect}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validCreate()
			mutate(&req)
			_, _, err := req.Build(uuid.New())
			assert.Error(t, err)
		})
	}
}

func TestApply_Capacity(t *testing.T) {
	newEvent := func() *models.Event {
		start := time.Now()
		return &models.Event{StartDate: start, EndDate: start.Add(time.Hour), TotalSeats: intPtr(100), AvailableSeats: intPtr(40)}
	}

	e := newEvent()
	require.NoError(t, (&UpdateRequest{TotalSeats: intPtr(120)}).Apply(e))
	assert.Equal(t, 120, *e.TotalSeats)
	assert.Equal(t, 60, *e.AvailableSeats)

	e = newEvent()
	require.NoError(t, (&UpdateRequest{TotalSeats: intPtr(30)}).Apply(e))
	assert.Equal(t, 0, *e.AvailableSeats)

	e = newEvent()
	err := (&UpdateRequest{AvailableSeats: intPtr(101)}).Apply(e)
	assert.EqualError(t, err, "Available seats cannot exceed total seats")

	e = newEvent()
	require.NoError(t, (&UpdateRequest{TotalSeats: intPtr(50), AvailableSeats: intPtr(50)}).Apply(e))
	assert.Equal(t, 50, *e.AvailableSeats)

	e = &models.Event{StartDate: time.Now(), EndDate: time.Now().Add(time.Hour)}
	err = (&UpdateRequest{AvailableSeats: intPtr(5)}).Apply(e)
	assert.Error(t, err)
}

func TestApply_Fields(t *testing.T) {
	start := time.Now()
	e := &models.Event{Title: "Old", StartDate: start, EndDate: start.Add(time.Hour)}
	title := "New"
	require.NoError(t, (&UpdateRequest{Title: &title}).Apply(e))
	assert.Equal(t, "New", e.Title)

	before := start.Add(-time.Hour)
	assert.Error(t, (&UpdateRequest{EndDate: &before}).Apply(e))
}
