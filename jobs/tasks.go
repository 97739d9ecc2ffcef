package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeIdempotencyCleanup prunes expired idempotency keys.
	TaskTypeIdempotencyCleanup = "maintenance:idempotency_cleanup"
	// TaskTypeViewsRefresh rebuilds the receivables reporting view.
	TaskTypeViewsRefresh = "maintenance:views_refresh"
	// TaskTypeLedgerIntegrity audits posted journal entries for balance.
	TaskTypeLedgerIntegrity = "maintenance:ledger_integrity"
)

// IdempotencyRetention is how long consumed idempotency keys are kept
// before the cleanup cron removes them.
const IdempotencyRetention = 7 * 24 * time.Hour

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewIdempotencyCleanupTask constructs the cleanup cron task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil)
}

// NewViewsRefreshTask constructs the nightly view refresh task.
func NewViewsRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskTypeViewsRefresh, nil)
}

// NewLedgerIntegrityTask constructs the nightly ledger audit task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLedgerIntegrity, nil)
}

// EmailSender delivers a single message.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewSendEmailHandler builds the handler processing TaskTypeSendEmail.
func NewSendEmailHandler(sender EmailSender, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := sender.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
			logger.Warn("send email", slog.String("to", payload.To), slog.Any("error", err))
			return err
		}
		logger.Info("sent email", slog.String("to", payload.To), slog.String("subject", payload.Subject))
		return nil
	}
}

// IdempotencyCleaner prunes consumed idempotency keys past retention.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewIdempotencyCleanupHandler builds the cleanup cron handler.
func NewIdempotencyCleanupHandler(cleaner IdempotencyCleaner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if err := cleaner.Cleanup(ctx, IdempotencyRetention); err != nil {
			logger.Error("idempotency cleanup", slog.Any("error", err))
			return err
		}
		logger.Info("idempotency cleanup", slog.Duration("retention", IdempotencyRetention))
		return nil
	}
}
