package domain

import (
	"context"
	"time"
)

// ReviewJobCause описывает источник задачи на ручную проверку.
type ReviewJobCause string

const (
	// ReviewCausePipeline — конвейер пометил запись как требующую проверки.
	ReviewCausePipeline ReviewJobCause = "pipeline"
	// ReviewCauseAppeal — пользователь подал апелляцию на решение.
	ReviewCauseAppeal ReviewJobCause = "appeal"
)

// ReviewJob содержит информацию о задаче на ручную проверку записи.
type ReviewJob struct {
	ID          string         `json:"job_id,omitempty"`
	RecordID    string         `json:"record_id"`
	GroupID     int64          `json:"group_id"`
	ChatID      int64          `json:"chat_id"`
	UserID      int64          `json:"user_id"`
	Priority    int            `json:"priority"`
	RequestedAt time.Time      `json:"requested_at"`
	Cause       ReviewJobCause `json:"cause"`
}

// ReviewQueue описывает очередь задач на ручную проверку.
type ReviewQueue interface {
	Enqueue(ctx context.Context, job ReviewJob) error
	Pop(ctx context.Context) (ReviewJob, error)
}
