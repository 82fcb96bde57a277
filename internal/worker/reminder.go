package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/internal/notifications"
	"github.com/campus-hub/backend/pkg/queue"
)

// EventSource finds events that need a reminder.
type EventSource interface {
	DueForReminder(ctx context.Context, now, horizon time.Time) ([]models.Event, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Registrants lists an event's registrations with users populated.
type Registrants interface {
	ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error)
}

// Notifier creates and fans out a notification.
type Notifier interface {
	Create(ctx context.Context, in notifications.CreateInput) (*models.Notification, error)
}

// EmailEnqueuer queues transactional email.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// ReminderScheduler periodically reminds registered users of upcoming events.
type ReminderScheduler struct {
	events      EventSource
	registrants Registrants
	notifier    Notifier
	emails      EmailEnqueuer
	interval    time.Duration
	lead        time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewReminderScheduler creates a scheduler. emails may be nil to skip reminder email.
func NewReminderScheduler(events EventSource, registrants Registrants, notifier Notifier, emails EmailEnqueuer,
	interval, lead time.Duration, logger *zap.Logger) *ReminderScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReminderScheduler{
		events:      events,
		registrants: registrants,
		notifier:    notifier,
		emails:      emails,
		interval:    interval,
		lead:        lead,
		now:         time.Now,
		logger:      logger,
	}
}

// Run ticks every interval until ctx is done.
func (s *ReminderScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if n, err := s.Tick(ctx); err != nil {
			s.logger.Error("reminder tick failed", zap.Error(err))
		} else if n > 0 {
			s.logger.Info("event reminders sent", zap.Int("events", n))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopping")
			return
		case <-ticker.C:
		}
	}
}

// Tick sends reminders for every due event and returns how many events were handled.
func (s *ReminderScheduler) Tick(ctx context.Context) (int, error) {
	now := s.now().UTC()
	due, err := s.events.DueForReminder(ctx, now, now.Add(s.lead))
	if err != nil {
		return 0, fmt.Errorf("due events: %w", err)
	}
	sent := 0
	for i := range due {
		if err := s.remind(ctx, &due[i], now); err != nil {
			s.logger.Error("event reminder failed", zap.Error(err), zap.String("event_id", due[i].ID.String()))
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *ReminderScheduler) remind(ctx context.Context, e *models.Event, now time.Time) error {
	regs, err := s.registrants.ListForEvent(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("registrants: %w", err)
	}
	var users []uuid.UUID
	var active []models.Registration
	for _, r := range regs {
		if r.Status == models.RegistrationRegistered {
			users = append(users, r.UserID)
			active = append(active, r)
		}
	}

	if len(users) > 0 {
		eventID := e.ID
		_, err := s.notifier.Create(ctx, notifications.CreateInput{
			Title:    "Upcoming: " + e.Title,
			Message:  fmt.Sprintf("%s starts at %s", e.Title, e.StartDate.UTC().Format("Jan 2, 2006 15:04 MST")),
			Category: models.NotifyEventReminder,
			Scope:    models.ScopePersonalized,
			Data:     models.NotificationData{EventID: &eventID, Action: "view_event"},
			UserIDs:  users,
		})
		if err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		s.enqueueEmails(ctx, e, active)
	}
	return s.events.MarkReminderSent(ctx, e.ID, now)
}

func (s *ReminderScheduler) enqueueEmails(ctx context.Context, e *models.Event, regs []models.Registration) {
	if s.emails == nil {
		return
	}
	for _, r := range regs {
		if r.User == nil || r.User.Email == "" {
			continue
		}
		err := s.emails.EnqueueEmail(ctx, queue.EmailPayload{
			Template:       queue.EmailEventReminder,
			RecipientEmail: r.User.Email,
			RecipientName:  r.User.Name,
			Data: map[string]string{
				"eventTitle": e.Title,
				"startDate":  e.StartDate.UTC().Format("2006-01-02 15:04 MST"),
				"venue":      e.Location.Venue,
			},
		})
		if err != nil {
			s.logger.Warn("enqueue reminder email failed", zap.Error(err), zap.String("user_id", r.UserID.String()))
		}
	}
}
