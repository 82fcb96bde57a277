package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campus-hub/backend/pkg/email"
	"github.com/campus-hub/backend/pkg/queue"
)

// JobSource is the queue side the email processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context, keys ...string) (*queue.Job, string, error)
	Retry(ctx context.Context, key string, job *queue.Job) error
}

// Renderer produces subject and bodies for a template.
type Renderer interface {
	Render(name string, data interface{}) (subject, htmlBody, textBody string, err error)
}

// EmailProcessor renders and sends queued email jobs.
type EmailProcessor struct {
	renderer Renderer
	mailer   email.Mailer
	queue    JobSource
	backoff  time.Duration
	logger   *zap.Logger
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(renderer Renderer, mailer email.Mailer, q JobSource, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{renderer: renderer, mailer: mailer, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.RecipientEmail == "" {
		return fmt.Errorf("job %s has no recipient", job.ID)
	}

	data := make(map[string]string, len(payload.Data)+1)
	for k, v := range payload.Data {
		data[k] = v
	}
	if _, ok := data["name"]; !ok {
		data["name"] = payload.RecipientName
	}
	subject, html, text, err := p.renderer.Render(payload.Template, data)
	if err != nil {
		return fmt.Errorf("render %s: %w", payload.Template, err)
	}
	if err := p.mailer.Send(ctx, payload.RecipientEmail, subject, html, text); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	p.logger.Info("email sent", zap.String("job_id", job.ID), zap.String("template", payload.Template))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, key, err := p.queue.Dequeue(ctx, queue.QueueEmails)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		p.handle(ctx, key, job)
	}
}

func (p *EmailProcessor) handle(ctx context.Context, key string, job *queue.Job) {
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	if err := p.Process(ctx, job); err != nil {
		p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		if reErr := p.queue.Retry(ctx, key, job); reErr != nil {
			p.logger.Error("retry enqueue failed", zap.Error(reErr))
		}
		p.sleep(ctx)
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.backoff):
	}
}
