package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-dms/meridian/jobs"
)

// Enqueuer submits email tasks to the job queue.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// OrderCreatedEvent carries what the order-created email needs.
type OrderCreatedEvent struct {
	OrderID          int64
	Number           string
	CustomerName     string
	AssigneeEmail    string
	Total            float64
	ItemCount        int
	BackorderedCount int
}

// Notifier sends fire-and-forget notifications. Every failure is logged
// and swallowed; notification delivery never fails the calling workflow.
type Notifier struct {
	enqueuer Enqueuer
	logger   *slog.Logger
	printer  *message.Printer
}

// NewNotifier constructs a Notifier.
func NewNotifier(enqueuer Enqueuer, logger *slog.Logger) *Notifier {
	return &Notifier{
		enqueuer: enqueuer,
		logger:   logger,
		printer:  message.NewPrinter(language.English),
	}
}

// OrderCreated enqueues the order-created email to the assignee.
func (n *Notifier) OrderCreated(ctx context.Context, evt OrderCreatedEvent) {
	if n == nil || n.enqueuer == nil || evt.AssigneeEmail == "" {
		return
	}
	body := n.printer.Sprintf(
		"Order %s for %s has been created.\nFulfillable lines: %d\nBackordered lines: %d\nOrder total: LKR %.2f\n",
		evt.Number, evt.CustomerName, evt.ItemCount, evt.BackorderedCount, evt.Total,
	)
	payload := jobs.SendEmailPayload{
		To:      evt.AssigneeEmail,
		Subject: fmt.Sprintf("New order %s", evt.Number),
		Body:    body,
	}
	if _, err := n.enqueuer.EnqueueSendEmail(ctx, payload); err != nil {
		n.logger.Warn("enqueue order-created email",
			slog.Int64("order_id", evt.OrderID), slog.Any("error", err))
	}
}
