package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-moderation-bot/internal/domain"
	"tg-moderation-bot/internal/usecase/policy"
)

type stubExtractor struct{}

func (stubExtractor) Extract(msg domain.InboundMessage) domain.ContentFeatures {
	return domain.ContentFeatures{TextLength: len([]rune(msg.Text))}
}

type stubAnalyzer struct {
	name   string
	result domain.AnalysisResult
	err    error
	panics bool
}

func (a *stubAnalyzer) Name() string { return a.name }

func (a *stubAnalyzer) Analyze(record *domain.ContentRecord) (domain.AnalysisResult, error) {
	if a.panics {
		panic("стубовая паника")
	}
	if a.err != nil {
		return domain.AnalysisResult{}, a.err
	}
	res := a.result
	res.AnalyzerName = a.name
	return res, nil
}

type stubStore struct {
	records  map[string]domain.ContentRecord
	appeals  map[string]domain.Appeal
	ttls     map[string]time.Duration
	failSave bool
	saves    int
}

func newStubStore() *stubStore {
	return &stubStore{
		records: make(map[string]domain.ContentRecord),
		appeals: make(map[string]domain.Appeal),
		ttls:    make(map[string]time.Duration),
	}
}

func (s *stubStore) SaveRecord(_ context.Context, record domain.ContentRecord, ttl time.Duration) error {
	if s.failSave {
		return errors.New("хранилище недоступно")
	}
	s.saves++
	s.records[record.RecordID] = record
	s.ttls[record.RecordID] = ttl
	return nil
}

func (s *stubStore) GetRecord(_ context.Context, recordID string) (domain.ContentRecord, error) {
	record, ok := s.records[recordID]
	if !ok {
		return domain.ContentRecord{}, domain.ErrRecordNotFound
	}
	return record, nil
}

func (s *stubStore) SaveAppeal(_ context.Context, appeal domain.Appeal, _ time.Duration) error {
	if s.failSave {
		return errors.New("хранилище недоступно")
	}
	s.appeals[appeal.ID] = appeal
	return nil
}

func (s *stubStore) GetAppeal(_ context.Context, appealID string) (domain.Appeal, error) {
	appeal, ok := s.appeals[appealID]
	if !ok {
		return domain.Appeal{}, domain.ErrRecordNotFound
	}
	return appeal, nil
}

type stubFilter struct {
	name     string
	filtered bool
	reason   string
	err      error
}

func (f *stubFilter) Name() string { return f.name }

func (f *stubFilter) Filter(*domain.ContentRecord) (bool, string, error) {
	return f.filtered, f.reason, f.err
}

type stubHandler struct {
	name   string
	err    error
	panics bool
	calls  int
}

func (h *stubHandler) Name() string { return h.name }

func (h *stubHandler) Handle(context.Context, *domain.ContentRecord) error {
	h.calls++
	if h.panics {
		panic("стубовая паника обработчика")
	}
	return h.err
}

func newTestService(store *stubStore) *Service {
	engine := policy.NewEngine(zerolog.Nop(), time.Hour)
	return NewService(stubExtractor{}, engine, store, nil, zerolog.Nop(), time.Hour, time.Hour)
}

func TestProcessCompletedFlow(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)
	svc.RegisterAnalyzer(&stubAnalyzer{name: "spam", result: domain.AnalysisResult{
		Risk: domain.RiskHigh, Confidence: 0.8, Flagged: true, Reasons: []string{"спам"},
	}})

	record, err := svc.Process(context.Background(), domain.InboundMessage{MessageID: 10, UserID: 5, Text: "текст"}, 100)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if record.Status != domain.StatusCompleted {
		t.Fatalf("ожидали статус completed, получили %s", record.Status)
	}
	if record.Decision == nil || record.Decision.Value != domain.DecisionDelete {
		t.Fatalf("high должен давать delete: %+v", record.Decision)
	}
	if len(record.AnalysisResults) != 1 {
		t.Fatalf("ожидали один результат анализа, получили %d", len(record.AnalysisResults))
	}
	if _, ok := store.records[record.RecordID]; !ok {
		t.Fatalf("завершённая запись должна сохраняться")
	}
}

func TestProcessAnalyzerFailuresIsolated(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)
	svc.RegisterAnalyzer(&stubAnalyzer{name: "ok", result: domain.AnalysisResult{Risk: domain.RiskLow, Confidence: 0.5, Flagged: true, Reasons: []string{"причина"}}})
	svc.RegisterAnalyzer(&stubAnalyzer{name: "broken", err: errors.New("сломан")})
	svc.RegisterAnalyzer(&stubAnalyzer{name: "panicky", panics: true})

	record, err := svc.Process(context.Background(), domain.InboundMessage{Text: "текст"}, 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(record.AnalysisResults) != 1 || record.AnalysisResults[0].AnalyzerName != "ok" {
		t.Fatalf("должен остаться только результат рабочего анализатора: %+v", record.AnalysisResults)
	}
	if record.Status != domain.StatusCompleted {
		t.Fatalf("падение части анализаторов не должно срывать конвейер")
	}
}

func TestProcessAllAnalyzersFailAllows(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)
	svc.RegisterAnalyzer(&stubAnalyzer{name: "broken", err: errors.New("сломан")})
	svc.RegisterAnalyzer(&stubAnalyzer{name: "panicky", panics: true})

	record, err := svc.Process(context.Background(), domain.InboundMessage{Text: "текст"}, 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if record.Decision == nil || record.Decision.Value != domain.DecisionAllow {
		t.Fatalf("без результатов решение должно быть allow: %+v", record.Decision)
	}
	if record.Decision.Confidence != 0 {
		t.Fatalf("уверенность без результатов должна быть 0")
	}
}

func TestProcessPreFilterStopsPipeline(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)
	svc.RegisterPreFilter(&stubFilter{name: "trusted", filtered: true, reason: "доверенный отправитель"})
	analyzer := &stubAnalyzer{name: "spam"}
	svc.RegisterAnalyzer(analyzer)
	handler := &stubHandler{name: "audit"}
	svc.RegisterPostHandler(handler)

	record, err := svc.Process(context.Background(), domain.InboundMessage{Text: "текст"}, 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if record.Status != domain.StatusFiltered {
		t.Fatalf("ожидали статус filtered, получили %s", record.Status)
	}
	if record.FilterReason != "доверенный отправитель" {
		t.Fatalf("причина фильтрации должна сохраняться: %q", record.FilterReason)
	}
	if record.Decision != nil || len(record.AnalysisResults) != 0 {
		t.Fatalf("после фильтрации анализ и политика не выполняются")
	}
	if store.saves != 0 || handler.calls != 0 {
		t.Fatalf("отфильтрованная запись не сохраняется и не попадает в пост-обработчики")
	}
}

func TestProcessPreFilterErrorSkipped(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)
	svc.RegisterPreFilter(&stubFilter{name: "broken", err: errors.New("сломан")})

	record, err := svc.Process(context.Background(), domain.InboundMessage{Text: "текст"}, 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if record.Status != domain.StatusCompleted {
		t.Fatalf("ошибка префильтра не должна останавливать конвейер: %s", record.Status)
	}
}

func TestProcessPostHandlerFailuresSwallowed(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)
	failing := &stubHandler{name: "failing", err: errors.New("сломан")}
	panicking := &stubHandler{name: "panicky", panics: true}
	last := &stubHandler{name: "last"}
	svc.RegisterPostHandler(failing)
	svc.RegisterPostHandler(panicking)
	svc.RegisterPostHandler(last)

	if _, err := svc.Process(context.Background(), domain.InboundMessage{Text: "текст"}, 1); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if last.calls != 1 {
		t.Fatalf("падение обработчика не должно мешать следующим")
	}
}

func TestProcessStoreFailureKeepsDecision(t *testing.T) {
	store := newStubStore()
	store.failSave = true
	svc := newTestService(store)
	svc.RegisterAnalyzer(&stubAnalyzer{name: "spam", result: domain.AnalysisResult{Risk: domain.RiskMedium, Confidence: 0.6, Flagged: true, Reasons: []string{"спам"}}})

	record, err := svc.Process(context.Background(), domain.InboundMessage{Text: "текст"}, 1)
	if err != nil {
		t.Fatalf("недоступное хранилище не должно возвращать ошибку: %v", err)
	}
	if record.Decision == nil || record.Decision.Value != domain.DecisionRestrict {
		t.Fatalf("решение должно вернуться даже без сохранения: %+v", record.Decision)
	}
}

func appealableRecord(recordID string, userID int64) domain.ContentRecord {
	deadline := time.Now().Add(time.Hour)
	return domain.ContentRecord{
		RecordID: recordID,
		UserID:   userID,
		GroupID:  1,
		Status:   domain.StatusCompleted,
		Decision: &domain.Decision{
			Value:          domain.DecisionDelete,
			Risk:           domain.RiskHigh,
			Appealable:     true,
			AppealDeadline: &deadline,
		},
	}
}

func TestAppealAccepted(t *testing.T) {
	store := newStubStore()
	store.records["r1"] = appealableRecord("r1", 5)
	svc := newTestService(store)

	ok, err := svc.Appeal(context.Background(), "r1", 5, "это была цитата")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !ok {
		t.Fatalf("валидная апелляция должна приниматься")
	}
	if store.records["r1"].AppealStatus != domain.AppealPending {
		t.Fatalf("запись должна перейти в appeal pending")
	}
	if len(store.appeals) != 1 {
		t.Fatalf("апелляция должна сохраняться, получили %d", len(store.appeals))
	}
}

func TestAppealKeepsOriginalRetention(t *testing.T) {
	store := newStubStore()
	record := appealableRecord("r1", 5)
	record.ReceivedAt = time.Now().Add(-30 * time.Minute)
	store.records["r1"] = record
	svc := newTestService(store) // срок хранения записей в тестах — час

	if ok, err := svc.Appeal(context.Background(), "r1", 5, "прошу пересмотреть"); !ok || err != nil {
		t.Fatalf("апелляция должна приниматься: ok=%v err=%v", ok, err)
	}

	ttl := store.ttls["r1"]
	if ttl > 30*time.Minute {
		t.Fatalf("пересохранение не должно продлевать срок хранения: %s", ttl)
	}
	if ttl < 29*time.Minute {
		t.Fatalf("остаток срока посчитан неверно: %s", ttl)
	}
}

func TestAppealWrongUserRejected(t *testing.T) {
	store := newStubStore()
	store.records["r1"] = appealableRecord("r1", 5)
	svc := newTestService(store)

	ok, err := svc.Appeal(context.Background(), "r1", 6, "не моё")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ok {
		t.Fatalf("чужую запись обжаловать нельзя")
	}
	if store.records["r1"].AppealStatus != domain.AppealNone {
		t.Fatalf("отклонённая апелляция не должна менять запись")
	}
}

func TestAppealNotAppealableRejected(t *testing.T) {
	store := newStubStore()
	record := appealableRecord("r1", 5)
	record.Decision.Appealable = false
	store.records["r1"] = record
	svc := newTestService(store)

	ok, err := svc.Appeal(context.Background(), "r1", 5, "прошу пересмотреть")
	if err != nil || ok {
		t.Fatalf("необжалуемое решение должно отклоняться: ok=%v err=%v", ok, err)
	}
}

func TestAppealRepeatRejected(t *testing.T) {
	store := newStubStore()
	store.records["r1"] = appealableRecord("r1", 5)
	svc := newTestService(store)

	if ok, _ := svc.Appeal(context.Background(), "r1", 5, "первая"); !ok {
		t.Fatalf("первая апелляция должна приниматься")
	}
	if ok, _ := svc.Appeal(context.Background(), "r1", 5, "вторая"); ok {
		t.Fatalf("повторная апелляция не принимается")
	}
}

func TestAppealExpiredDeadlineRejected(t *testing.T) {
	store := newStubStore()
	record := appealableRecord("r1", 5)
	past := time.Now().Add(-time.Minute)
	record.Decision.AppealDeadline = &past
	store.records["r1"] = record
	svc := newTestService(store)

	ok, err := svc.Appeal(context.Background(), "r1", 5, "поздно")
	if err != nil || ok {
		t.Fatalf("просроченная апелляция должна отклоняться: ok=%v err=%v", ok, err)
	}
}

func TestAppealMissingRecord(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)

	ok, err := svc.Appeal(context.Background(), "нет такой", 5, "причина")
	if err != nil {
		t.Fatalf("отсутствующая запись — не ошибка: %v", err)
	}
	if ok {
		t.Fatalf("апелляция по отсутствующей записи не принимается")
	}
}
