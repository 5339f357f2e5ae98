package review

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-moderation-bot/internal/domain"
)

type stubQueue struct {
	mu   sync.Mutex
	pops []func() (domain.ReviewJob, error)
}

func (q *stubQueue) Enqueue(context.Context, domain.ReviewJob) error { return nil }

func (q *stubQueue) Pop(ctx context.Context) (domain.ReviewJob, error) {
	q.mu.Lock()
	if len(q.pops) > 0 {
		next := q.pops[0]
		q.pops = q.pops[1:]
		q.mu.Unlock()
		return next()
	}
	q.mu.Unlock()
	<-ctx.Done()
	return domain.ReviewJob{}, ctx.Err()
}

type stubRecordStore struct {
	records map[string]domain.ContentRecord
}

func (s *stubRecordStore) SaveRecord(context.Context, domain.ContentRecord, time.Duration) error {
	return nil
}

func (s *stubRecordStore) GetRecord(_ context.Context, recordID string) (domain.ContentRecord, error) {
	record, ok := s.records[recordID]
	if !ok {
		return domain.ContentRecord{}, domain.ErrRecordNotFound
	}
	return record, nil
}

func (s *stubRecordStore) SaveAppeal(context.Context, domain.Appeal, time.Duration) error {
	return nil
}

func (s *stubRecordStore) GetAppeal(context.Context, string) (domain.Appeal, error) {
	return domain.Appeal{}, domain.ErrRecordNotFound
}

type stubNotifier struct {
	mu       sync.Mutex
	notified []string
}

func (n *stubNotifier) NotifyReview(_ context.Context, record domain.ContentRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, record.RecordID)
	return nil
}

func TestRunNotifiesForQueuedJob(t *testing.T) {
	queue := &stubQueue{pops: []func() (domain.ReviewJob, error){
		func() (domain.ReviewJob, error) { return domain.ReviewJob{RecordID: "r1"}, nil },
	}}
	store := &stubRecordStore{records: map[string]domain.ContentRecord{
		"r1": {RecordID: "r1", Decision: &domain.Decision{Value: domain.DecisionDelete}},
	}}
	notifier := &stubNotifier{}
	svc := NewService(queue, store, notifier, zerolog.Nop(), 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go func() {
		for {
			notifier.mu.Lock()
			done := len(notifier.notified) > 0
			notifier.mu.Unlock()
			if done {
				cancel()
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	if err := svc.Run(ctx); err != nil {
		t.Fatalf("отмена контекста не должна возвращать ошибку: %v", err)
	}
	if len(notifier.notified) != 1 || notifier.notified[0] != "r1" {
		t.Fatalf("модераторы должны получить запись r1: %v", notifier.notified)
	}
}

func TestRunBacksOffOnQueueError(t *testing.T) {
	queue := &stubQueue{pops: []func() (domain.ReviewJob, error){
		func() (domain.ReviewJob, error) { return domain.ReviewJob{}, errors.New("брокер недоступен") },
		func() (domain.ReviewJob, error) { return domain.ReviewJob{}, errors.New("брокер недоступен") },
		func() (domain.ReviewJob, error) { return domain.ReviewJob{RecordID: "r1"}, nil },
	}}
	store := &stubRecordStore{records: map[string]domain.ContentRecord{
		"r1": {RecordID: "r1"},
	}}
	notifier := &stubNotifier{}
	svc := NewService(queue, store, notifier, zerolog.Nop(), 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go func() {
		for {
			notifier.mu.Lock()
			done := len(notifier.notified) > 0
			notifier.mu.Unlock()
			if done {
				cancel()
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	started := time.Now()
	if err := svc.Run(ctx); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// две ошибки подряд — минимум две паузы перед успешным чтением
	if elapsed := time.Since(started); elapsed < 40*time.Millisecond {
		t.Fatalf("ожидали паузу после ошибок очереди, цикл занял %s", elapsed)
	}
	if len(notifier.notified) != 1 {
		t.Fatalf("после восстановления очереди задача должна обработаться: %v", notifier.notified)
	}
}

func TestRunSkipsExpiredRecord(t *testing.T) {
	queue := &stubQueue{pops: []func() (domain.ReviewJob, error){
		func() (domain.ReviewJob, error) { return domain.ReviewJob{RecordID: "истёкшая"}, nil },
	}}
	store := &stubRecordStore{records: map[string]domain.ContentRecord{}}
	notifier := &stubNotifier{}
	svc := NewService(queue, store, notifier, zerolog.Nop(), 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := svc.Run(ctx); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(notifier.notified) != 0 {
		t.Fatalf("истёкшая запись не должна уходить модераторам")
	}
}
