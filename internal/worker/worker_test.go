package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/internal/notifications"
	"github.com/campus-hub/backend/pkg/email"
	"github.com/campus-hub/backend/pkg/queue"
)

type sentMail struct {
	to, subject, html string
}

type recordingMailer struct {
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, html, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, html: html})
	return nil
}

type fakeQueue struct {
	retried []string
}

func (q *fakeQueue) Dequeue(context.Context, ...string) (*queue.Job, string, error) {
	return nil, "", nil
}

func (q *fakeQueue) Retry(_ context.Context, key string, job *queue.Job) error {
	job.Attempt++
	q.retried = append(q.retried, key)
	return nil
}

func emailJob(t *testing.T, p queue.EmailPayload) *queue.Job {
	job, err := queue.NewJob(queue.JobTypeEmail, p)
	require.NoError(t, err)
	return job
}

func TestEmailProcessor_RendersAndSends(t *testing.T) {
	mailer := &recordingMailer{}
	p := NewEmailProcessor(email.NewRenderer(), mailer, &fakeQueue{}, nil)

	err := p.Process(context.Background(), emailJob(t, queue.EmailPayload{
		Template:       queue.EmailEventReminder,
		RecipientEmail: "asha@campus.edu",
		RecipientName:  "Asha",
		Data:           map[string]string{"eventTitle": "Hack Night", "startDate": "2026-11-01 18:00 UTC"},
	}))
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "asha@campus.edu", mailer.sent[0].to)
	assert.Equal(t, "Reminder: Hack Night", mailer.sent[0].subject)
	assert.Contains(t, mailer.sent[0].html, "Asha")
}

func TestEmailProcessor_Rejects(t *testing.T) {
	p := NewEmailProcessor(email.NewRenderer(), &recordingMailer{}, &fakeQueue{}, nil)
	ctx := context.Background()

	assert.Error(t, p.Process(ctx, &queue.Job{ID: "1", Type: "other", Payload: json.RawMessage(`{}`)}))
	assert.Error(t, p.Process(ctx, emailJob(t, queue.EmailPayload{Template: queue.EmailWelcome})))
	assert.Error(t, p.Process(ctx, emailJob(t, queue.EmailPayload{Template: "missing", RecipientEmail: "a@b.c"})))
}

func TestEmailProcessor_FailedJobIsRetried(t *testing.T) {
	q := &fakeQueue{}
	p := NewEmailProcessor(email.NewRenderer(), &recordingMailer{err: errors.New("ses down")}, q, nil)
	p.backoff = time.Millisecond
	job := emailJob(t, queue.EmailPayload{Template: queue.EmailWelcome, RecipientEmail: "a@b.c", RecipientName: "A"})

	p.handle(context.Background(), queue.QueueEmails, job)
	assert.Equal(t, []string{queue.QueueEmails}, q.retried)
	assert.Equal(t, 1, job.Attempt)
}

type fakeEvents struct {
	due    []models.Event
	marked []uuid.UUID
	from   time.Time
	to     time.Time
}

func (f *fakeEvents) DueForReminder(_ context.Context, now, horizon time.Time) ([]models.Event, error) {
	f.from, f.to = now, horizon
	return f.due, nil
}

func (f *fakeEvents) MarkReminderSent(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.marked = append(f.marked, id)
	return nil
}

type fakeRegistrants map[uuid.UUID][]models.Registration

func (f fakeRegistrants) ListForEvent(_ context.Context, id uuid.UUID) ([]models.Registration, error) {
	return f[id], nil
}

type recordingNotifier struct {
	created []notifications.CreateInput
}

func (n *recordingNotifier) Create(_ context.Context, in notifications.CreateInput) (*models.Notification, error) {
	n.created = append(n.created, in)
	return &models.Notification{ID: uuid.New(), Scope: in.Scope}, nil
}

type recordingEnqueuer struct {
	payloads []queue.EmailPayload
}

func (r *recordingEnqueuer) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	r.payloads = append(r.payloads, p)
	return nil
}

func TestReminderScheduler_Tick(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	withRegs, empty := uuid.New(), uuid.New()
	alice, bob := uuid.New(), uuid.New()
	events := &fakeEvents{due: []models.Event{
		{ID: withRegs, Title: "Hack Night", StartDate: now.Add(3 * time.Hour), Location: models.Location{Venue: "Main Hall"}},
		{ID: empty, Title: "Quiet Talk", StartDate: now.Add(5 * time.Hour)},
	}}
	regs := fakeRegistrants{withRegs: {
		{UserID: alice, Status: models.RegistrationRegistered, User: &models.UserSummary{ID: alice, Name: "Alice", Email: "alice@campus.edu"}},
		{UserID: bob, Status: models.RegistrationCancelled, User: &models.UserSummary{ID: bob, Name: "Bob", Email: "bob@campus.edu"}},
	}}
	notifier := &recordingNotifier{}
	emails := &recordingEnqueuer{}
	s := NewReminderScheduler(events, regs, notifier, emails, time.Minute, 24*time.Hour, nil)
	s.now = func() time.Time { return now }

	n, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, now.Add(24*time.Hour), events.to)
	assert.ElementsMatch(t, []uuid.UUID{withRegs, empty}, events.marked)

	require.Len(t, notifier.created, 1)
	in := notifier.created[0]
	assert.Equal(t, models.ScopePersonalized, in.Scope)
	assert.Equal(t, models.NotifyEventReminder, in.Category)
	assert.Equal(t, []uuid.UUID{alice}, in.UserIDs)
	require.NotNil(t, in.Data.EventID)
	assert.Equal(t, withRegs, *in.Data.EventID)

	require.Len(t, emails.payloads, 1)
	assert.Equal(t, "alice@campus.edu", emails.payloads[0].RecipientEmail)
	assert.Equal(t, queue.EmailEventReminder, emails.payloads[0].Template)
	assert.Equal(t, "Main Hall", emails.payloads[0].Data["venue"])
}
