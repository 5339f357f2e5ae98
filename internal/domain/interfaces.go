package domain

import (
	"context"
	"errors"
	"time"
)

// ErrRecordNotFound возвращается хранилищем, если запись отсутствует или истекла.
var ErrRecordNotFound = errors.New("запись не найдена")

// FeatureExtractor строит признаки по входящему сообщению. Обязан быть тотальным:
// любой вход даёт корректный результат без паник.
type FeatureExtractor interface {
	Extract(msg InboundMessage) ContentFeatures
}

// Analyzer — модуль скоринга одного аспекта модерации (спам, токсичность, дубликаты).
type Analyzer interface {
	Name() string
	Analyze(record *ContentRecord) (AnalysisResult, error)
}

// PreFilter может исключить запись из конвейера до запуска анализаторов.
type PreFilter interface {
	Name() string
	Filter(record *ContentRecord) (filtered bool, reason string, err error)
}

// PostHandler выполняется после завершения записи. Ошибки не прерывают конвейер.
type PostHandler interface {
	Name() string
	Handle(ctx context.Context, record *ContentRecord) error
}

// DecisionEngine агрегирует результаты анализа и выбирает решение.
type DecisionEngine interface {
	Evaluate(record *ContentRecord) Decision
}

// Cache — простое TTL key-value хранилище для JSON значений.
type Cache interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dst any) error
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// RecordStore сохраняет записи и апелляции с ограниченным сроком хранения.
type RecordStore interface {
	SaveRecord(ctx context.Context, record ContentRecord, ttl time.Duration) error
	GetRecord(ctx context.Context, recordID string) (ContentRecord, error)
	SaveAppeal(ctx context.Context, appeal Appeal, ttl time.Duration) error
	GetAppeal(ctx context.Context, appealID string) (Appeal, error)
}

// ModerationService — входная точка конвейера модерации.
type ModerationService interface {
	Process(ctx context.Context, msg InboundMessage, groupID int64) (ContentRecord, error)
	Appeal(ctx context.Context, recordID string, userID int64, reason string) (bool, error)
}

// RuleRepo управляет правилами политики в БД.
type RuleRepo interface {
	ListRules(ctx context.Context, groupID int64) ([]PolicyRule, error)
	ListAllRules(ctx context.Context) ([]PolicyRule, error)
	CreateRule(ctx context.Context, rule PolicyRule) (PolicyRule, error)
	DeleteRule(ctx context.Context, groupID, ruleID int64) error
}

// AuditRepo пишет журнал модерации.
type AuditRepo interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAuditByUser(ctx context.Context, groupID, userID int64, limit int) ([]AuditEntry, error)
}

// AppealRepo хранит долговременную историю апелляций.
type AppealRepo interface {
	SaveAppeal(ctx context.Context, appeal Appeal) error
	ListAppeals(ctx context.Context, groupID int64, status AppealStatus, limit int) ([]Appeal, error)
}

// ActionExecutor применяет решение на стороне платформы. Конвейер его не вызывает —
// это обязанность гейтвея.
type ActionExecutor interface {
	Execute(ctx context.Context, record ContentRecord) error
}

// ReviewNotifier доводит запись до модераторов, когда требуется ручная проверка.
type ReviewNotifier interface {
	NotifyReview(ctx context.Context, record ContentRecord) error
}
