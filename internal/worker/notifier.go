package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mcp-registry/backend/internal/models"
	"github.com/mcp-registry/backend/pkg/queue"
)

// Recorder persists notification outcomes. Satisfied by *Repository.
type Recorder interface {
	Record(ctx context.Context, log *models.NotificationLog) error
}

// NotificationProcessor consumes review outcome jobs and records the
// delivery in notification_logs. Actual delivery (mail, chat) is left to
// downstream systems reading the log; the worker's contract is that every
// review outcome ends up recorded exactly once per job.
type NotificationProcessor struct {
	repo   Recorder
	queue  *queue.Queue
	logger *zap.Logger
}

// NewNotificationProcessor creates a review notification processor.
func NewNotificationProcessor(repo Recorder, q *queue.Queue, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{repo: repo, queue: q, logger: logger}
}

// Process executes one review notification job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeReviewNotification {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ReviewNotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	kind := models.NotificationReviewApproved
	if payload.Outcome == string(models.StatusRejected) {
		kind = models.NotificationReviewRejected
	}
	now := time.Now().UTC()
	log := &models.NotificationLog{
		RegistrationID: payload.RegistrationID,
		Recipient:      payload.Recipient,
		Kind:           kind,
		Status:         models.NotificationStatusRecorded,
		SentAt:         &now,
	}
	if err := p.repo.Record(ctx, log); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	p.logger.Info("review notification recorded",
		zap.String("registration_id", payload.RegistrationID.String()),
		zap.String("recipient", payload.Recipient),
		zap.String("kind", kind))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("notification worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if job.Attempt+1 >= queue.MaxRetries {
				failLog := &models.NotificationLog{
					Recipient: "unknown",
					Kind:      string(job.Type),
					Status:    models.NotificationStatusFailed,
				}
				if perr := recordFailure(ctx, p.repo, job, failLog, err); perr != nil {
					p.logger.Error("record failure failed", zap.Error(perr))
				}
			}
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

// recordFailure writes a failed delivery record when a job exhausts its
// retries, so the outcome is still visible next to the audit trail.
func recordFailure(ctx context.Context, repo Recorder, job *queue.Job, log *models.NotificationLog, cause error) error {
	var payload queue.ReviewNotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err == nil {
		log.RegistrationID = payload.RegistrationID
		if payload.Recipient != "" {
			log.Recipient = payload.Recipient
		}
		if payload.Outcome == string(models.StatusRejected) {
			log.Kind = models.NotificationReviewRejected
		} else {
			log.Kind = models.NotificationReviewApproved
		}
	}
	log.ErrorMessage = cause.Error()
	return repo.Record(ctx, log)
}
