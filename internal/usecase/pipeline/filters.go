package pipeline

import (
	"tg-moderation-bot/internal/domain"
)

// EmptyContentFilter отсекает записи, в которых нечего анализировать:
// ни текста, ни хэша вложения.
type EmptyContentFilter struct{}

var _ domain.PreFilter = (*EmptyContentFilter)(nil)

func (f *EmptyContentFilter) Name() string { return "empty_content" }

func (f *EmptyContentFilter) Filter(record *domain.ContentRecord) (bool, string, error) {
	if record.Features.TextLength == 0 && record.FileHash == "" {
		return true, "пустое содержимое", nil
	}
	return false, "", nil
}

// TrustedSenderFilter пропускает сообщения доверенных отправителей
// (администраторы группы, сервисные аккаунты) мимо анализаторов.
type TrustedSenderFilter struct {
	trusted map[int64]struct{}
}

var _ domain.PreFilter = (*TrustedSenderFilter)(nil)

// NewTrustedSenderFilter создаёт фильтр по списку идентификаторов.
func NewTrustedSenderFilter(userIDs []int64) *TrustedSenderFilter {
	trusted := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		trusted[id] = struct{}{}
	}
	return &TrustedSenderFilter{trusted: trusted}
}

func (f *TrustedSenderFilter) Name() string { return "trusted_sender" }

func (f *TrustedSenderFilter) Filter(record *domain.ContentRecord) (bool, string, error) {
	if _, ok := f.trusted[record.UserID]; ok {
		return true, "доверенный отправитель", nil
	}
	return false, "", nil
}
