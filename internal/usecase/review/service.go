package review

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"tg-moderation-bot/internal/domain"
)

const defaultRetryDelay = 3 * time.Second

// Service обрабатывает задачи ручной проверки: читает очередь, поднимает
// запись из хранилища и доводит её до модераторов.
type Service struct {
	queue      domain.ReviewQueue
	store      domain.RecordStore
	notifier   domain.ReviewNotifier
	log        zerolog.Logger
	retryDelay time.Duration
}

// NewService создаёт обработчик задач проверки. retryDelay — пауза перед
// повторным чтением после ошибки очереди.
func NewService(queue domain.ReviewQueue, store domain.RecordStore, notifier domain.ReviewNotifier, logger zerolog.Logger, retryDelay time.Duration) *Service {
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &Service{
		queue:      queue,
		store:      store,
		notifier:   notifier,
		log:        logger,
		retryDelay: retryDelay,
	}
}

// Run читает и обрабатывает задачи до отмены контекста.
func (s *Service) Run(ctx context.Context) error {
	for {
		job, err := s.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			s.log.Error().Err(err).Msg("review: чтение очереди")
			// недоступный брокер не должен крутить горячий цикл
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.retryDelay):
			}
			continue
		}
		s.handle(ctx, job)
	}
}

func (s *Service) handle(ctx context.Context, job domain.ReviewJob) {
	record, err := s.store.GetRecord(ctx, job.RecordID)
	if err != nil {
		// запись могла истечь до проверки, задача снимается
		s.log.Warn().Err(err).Str("record_id", job.RecordID).Msg("review: запись недоступна")
		return
	}
	if err := s.notifier.NotifyReview(ctx, record); err != nil {
		s.log.Error().Err(err).Str("record_id", job.RecordID).Msg("review: уведомление не отправлено")
	}
}
