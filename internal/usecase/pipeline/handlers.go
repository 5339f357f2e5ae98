package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tg-moderation-bot/internal/domain"
	"tg-moderation-bot/internal/infra/metrics"
)

// AuditLogHandler дописывает решение по завершённой записи в журнал модерации.
type AuditLogHandler struct {
	audit domain.AuditRepo
}

var _ domain.PostHandler = (*AuditLogHandler)(nil)

// NewAuditLogHandler создаёт обработчик журнала.
func NewAuditLogHandler(audit domain.AuditRepo) *AuditLogHandler {
	return &AuditLogHandler{audit: audit}
}

func (h *AuditLogHandler) Name() string { return "audit_log" }

func (h *AuditLogHandler) Handle(ctx context.Context, record *domain.ContentRecord) error {
	if record.Decision == nil {
		return nil
	}
	return h.audit.AppendAudit(ctx, domain.AuditEntry{
		RecordID:   record.RecordID,
		GroupID:    record.GroupID,
		ChatID:     record.ChatID,
		UserID:     record.UserID,
		Action:     record.Decision.Value,
		Risk:       record.Decision.Risk,
		Confidence: record.Decision.Confidence,
		Reasons:    record.Decision.AllReasons,
		CreatedAt:  time.Now().UTC(),
	})
}

// ReviewEnqueueHandler ставит запись в очередь ручной проверки,
// когда решение требует модератора.
type ReviewEnqueueHandler struct {
	queue domain.ReviewQueue
}

var _ domain.PostHandler = (*ReviewEnqueueHandler)(nil)

// NewReviewEnqueueHandler создаёт обработчик очереди проверки.
func NewReviewEnqueueHandler(queue domain.ReviewQueue) *ReviewEnqueueHandler {
	return &ReviewEnqueueHandler{queue: queue}
}

func (h *ReviewEnqueueHandler) Name() string { return "review_enqueue" }

func (h *ReviewEnqueueHandler) Handle(ctx context.Context, record *domain.ContentRecord) error {
	if record.Decision == nil || !record.Decision.RequiresReview {
		return nil
	}
	job := domain.ReviewJob{
		ID:          uuid.NewString(),
		RecordID:    record.RecordID,
		GroupID:     record.GroupID,
		ChatID:      record.ChatID,
		UserID:      record.UserID,
		Priority:    record.Decision.ReviewPriority,
		RequestedAt: time.Now().UTC(),
		Cause:       domain.ReviewCausePipeline,
	}
	if err := h.queue.Enqueue(ctx, job); err != nil {
		return err
	}
	metrics.ReviewEnqueued.Inc()
	return nil
}
