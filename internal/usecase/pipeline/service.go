package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-moderation-bot/internal/domain"
	"tg-moderation-bot/internal/infra/metrics"
)

// Service реализует конвейер модерации: префильтры, параллельные анализаторы,
// политика, сохранение, пост-обработчики и приём апелляций.
type Service struct {
	extractor    domain.FeatureExtractor
	engine       domain.DecisionEngine
	store        domain.RecordStore
	appeals      domain.AppealRepo
	analyzers    []domain.Analyzer
	prefilters   []domain.PreFilter
	posthandlers []domain.PostHandler
	log          zerolog.Logger
	recordTTL    time.Duration
	appealTTL    time.Duration
}

var _ domain.ModerationService = (*Service)(nil)

// NewService создаёт конвейер. appeals может быть nil — тогда долговременная
// история апелляций не ведётся.
func NewService(extractor domain.FeatureExtractor, engine domain.DecisionEngine, store domain.RecordStore, appeals domain.AppealRepo, logger zerolog.Logger, recordTTL, appealTTL time.Duration) *Service {
	if recordTTL <= 0 {
		recordTTL = 7 * 24 * time.Hour
	}
	if appealTTL <= 0 {
		appealTTL = 30 * 24 * time.Hour
	}
	return &Service{
		extractor: extractor,
		engine:    engine,
		store:     store,
		appeals:   appeals,
		log:       logger,
		recordTTL: recordTTL,
		appealTTL: appealTTL,
	}
}

// RegisterAnalyzer добавляет анализатор в конец упорядоченного набора.
// Порядок регистрации разрешает ничьи при агрегации.
func (s *Service) RegisterAnalyzer(a domain.Analyzer) {
	s.analyzers = append(s.analyzers, a)
}

// RegisterPreFilter добавляет префильтр. Префильтры выполняются последовательно.
func (s *Service) RegisterPreFilter(f domain.PreFilter) {
	s.prefilters = append(s.prefilters, f)
}

// RegisterPostHandler добавляет пост-обработчик. Ошибки обработчиков не
// прерывают конвейер.
func (s *Service) RegisterPostHandler(h domain.PostHandler) {
	s.posthandlers = append(s.posthandlers, h)
}

// Process проводит сообщение через весь конвейер и возвращает запись.
// Запущенная обработка всегда доходит до конца: отмена контекста влияет
// только на сохранение и пост-обработчики.
func (s *Service) Process(ctx context.Context, msg domain.InboundMessage, groupID int64) (domain.ContentRecord, error) {
	started := time.Now()
	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = started.UTC()
	}

	record := domain.ContentRecord{
		RecordID:    fmt.Sprintf("%d-%d-%d", groupID, msg.MessageID, started.UnixNano()),
		MessageID:   msg.MessageID,
		ChatID:      msg.ChatID,
		UserID:      msg.UserID,
		GroupID:     groupID,
		ContentType: msg.ContentType,
		Text:        msg.Text,
		FileHash:    msg.FileHash,
		Status:      domain.StatusPending,
		ReceivedAt:  receivedAt,
	}

	record.Features = s.extractor.Extract(msg)
	record.Status = domain.StatusProcessing

	if filtered := s.runPreFilters(&record); filtered {
		record.Status = domain.StatusFiltered
		record.ProcessingTimeMs = float64(time.Since(started).Microseconds()) / 1000
		metrics.PipelineTotal.WithLabelValues(string(record.Status)).Inc()
		return record, nil
	}

	record.AnalysisResults = s.runAnalyzers(&record)

	decision := s.engine.Evaluate(&record)
	record.Decision = &decision
	record.Status = domain.StatusCompleted
	record.ProcessedAt = time.Now().UTC()
	record.ProcessingTimeMs = float64(time.Since(started).Microseconds()) / 1000

	metrics.PipelineDuration.Observe(time.Since(started).Seconds())
	metrics.PipelineTotal.WithLabelValues(string(record.Status)).Inc()
	metrics.ObserveDecision(string(decision.Value), decision.Risk.String())

	// недоступность хранилища не должна терять уже принятое решение
	if err := s.store.SaveRecord(ctx, record, s.recordTTL); err != nil {
		metrics.StoreErrors.Inc()
		s.log.Error().Err(err).Str("record_id", record.RecordID).Msg("pipeline: запись не сохранена")
	}

	s.runPostHandlers(ctx, &record)

	return record, nil
}

// runPreFilters выполняет префильтры по порядку. Ошибка фильтра логируется и
// пропускается, решение «отфильтровать» останавливает конвейер.
func (s *Service) runPreFilters(record *domain.ContentRecord) bool {
	for _, f := range s.prefilters {
		filtered, reason, err := f.Filter(record)
		if err != nil {
			s.log.Warn().Err(err).Str("filter", f.Name()).Msg("pipeline: ошибка префильтра")
			continue
		}
		if filtered {
			record.FilterReason = reason
			s.log.Debug().Str("filter", f.Name()).Str("reason", reason).Msg("pipeline: запись отфильтрована")
			return true
		}
	}
	return false
}

// runAnalyzers запускает все анализаторы параллельно и ждёт каждого.
// Паника или ошибка одного анализатора исключает только его результат.
func (s *Service) runAnalyzers(record *domain.ContentRecord) []domain.AnalysisResult {
	slots := make([]*domain.AnalysisResult, len(s.analyzers))
	var wg sync.WaitGroup
	for i, a := range s.analyzers {
		wg.Add(1)
		go func(i int, a domain.Analyzer) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					metrics.AnalyzerErrors.WithLabelValues(a.Name()).Inc()
					s.log.Error().Any("panic", r).Str("analyzer", a.Name()).Msg("pipeline: паника анализатора")
				}
			}()
			start := time.Now()
			res, err := a.Analyze(record)
			metrics.ObserveAnalyzer(a.Name(), start, err)
			if err != nil {
				s.log.Error().Err(err).Str("analyzer", a.Name()).Msg("pipeline: ошибка анализатора")
				return
			}
			slots[i] = &res
		}(i, a)
	}
	wg.Wait()

	// порядок регистрации сохраняется и при параллельном выполнении
	results := make([]domain.AnalysisResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results
}

// runPostHandlers выполняет обработчики последовательно, best-effort.
func (s *Service) runPostHandlers(ctx context.Context, record *domain.ContentRecord) {
	for _, h := range s.posthandlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().Any("panic", r).Str("handler", h.Name()).Msg("pipeline: паника пост-обработчика")
				}
			}()
			if err := h.Handle(ctx, record); err != nil {
				s.log.Warn().Err(err).Str("handler", h.Name()).Msg("pipeline: ошибка пост-обработчика")
			}
		}()
	}
}

// remainingTTL возвращает остаток срока хранения записи от момента её
// создания. Повторное сохранение не продлевает удержание.
func (s *Service) remainingTTL(record domain.ContentRecord) time.Duration {
	if record.ReceivedAt.IsZero() {
		return s.recordTTL
	}
	remaining := time.Until(record.ReceivedAt.Add(s.recordTTL))
	if remaining <= 0 || remaining > s.recordTTL {
		return s.recordTTL
	}
	return remaining
}

// Appeal принимает апелляцию: запись должна существовать, принадлежать
// отправителю и допускать обжалование. Повторная апелляция не принимается.
func (s *Service) Appeal(ctx context.Context, recordID string, userID int64, reason string) (bool, error) {
	record, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			metrics.AppealsTotal.WithLabelValues("false").Inc()
			return false, nil
		}
		return false, fmt.Errorf("чтение записи: %w", err)
	}

	switch {
	case record.UserID != userID,
		record.Decision == nil,
		!record.Decision.Appealable,
		record.AppealStatus != domain.AppealNone:
		metrics.AppealsTotal.WithLabelValues("false").Inc()
		return false, nil
	}
	if d := record.Decision.AppealDeadline; d != nil && time.Now().After(*d) {
		metrics.AppealsTotal.WithLabelValues("false").Inc()
		return false, nil
	}

	record.AppealStatus = domain.AppealPending
	if err := s.store.SaveRecord(ctx, record, s.remainingTTL(record)); err != nil {
		return false, fmt.Errorf("обновление записи: %w", err)
	}

	appeal := domain.Appeal{
		ID:        uuid.NewString(),
		RecordID:  record.RecordID,
		GroupID:   record.GroupID,
		UserID:    userID,
		Reason:    reason,
		Status:    domain.AppealPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveAppeal(ctx, appeal, s.appealTTL); err != nil {
		return false, fmt.Errorf("сохранение апелляции: %w", err)
	}
	if s.appeals != nil {
		if err := s.appeals.SaveAppeal(ctx, appeal); err != nil {
			s.log.Warn().Err(err).Str("appeal_id", appeal.ID).Msg("pipeline: история апелляций недоступна")
		}
	}

	metrics.AppealsTotal.WithLabelValues("true").Inc()
	return true, nil
}
