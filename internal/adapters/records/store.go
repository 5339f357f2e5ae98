package records

import (
	"context"
	"fmt"
	"time"

	"tg-moderation-bot/internal/domain"
)

const (
	recordKeyPrefix = "modrec:"
	appealKeyPrefix = "modappeal:"
)

// Store реализует domain.RecordStore поверх TTL key-value кэша.
// Идентификатор записи начинается с идентификатора группы, поэтому ключи
// естественно скоупятся по группе.
type Store struct {
	cache domain.Cache
}

var _ domain.RecordStore = (*Store)(nil)

// NewStore создаёт хранилище записей.
func NewStore(cache domain.Cache) *Store {
	return &Store{cache: cache}
}

// SaveRecord сохраняет запись с ограниченным сроком хранения.
func (s *Store) SaveRecord(ctx context.Context, record domain.ContentRecord, ttl time.Duration) error {
	if err := s.cache.SetJSON(ctx, recordKeyPrefix+record.RecordID, record, ttl); err != nil {
		return fmt.Errorf("сохранение записи %s: %w", record.RecordID, err)
	}
	return nil
}

// GetRecord возвращает запись или domain.ErrRecordNotFound.
func (s *Store) GetRecord(ctx context.Context, recordID string) (domain.ContentRecord, error) {
	var record domain.ContentRecord
	if err := s.cache.GetJSON(ctx, recordKeyPrefix+recordID, &record); err != nil {
		return domain.ContentRecord{}, err
	}
	return record, nil
}

// SaveAppeal сохраняет апелляцию с собственным, независимым от записи TTL.
func (s *Store) SaveAppeal(ctx context.Context, appeal domain.Appeal, ttl time.Duration) error {
	if err := s.cache.SetJSON(ctx, appealKeyPrefix+appeal.ID, appeal, ttl); err != nil {
		return fmt.Errorf("сохранение апелляции %s: %w", appeal.ID, err)
	}
	return nil
}

// GetAppeal возвращает апелляцию или domain.ErrRecordNotFound.
func (s *Store) GetAppeal(ctx context.Context, appealID string) (domain.Appeal, error) {
	var appeal domain.Appeal
	if err := s.cache.GetJSON(ctx, appealKeyPrefix+appealID, &appeal); err != nil {
		return domain.Appeal{}, err
	}
	return appeal, nil
}
