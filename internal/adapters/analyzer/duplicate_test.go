package analyzer

import (
	"testing"
	"time"

	"tg-moderation-bot/internal/domain"
)

func TestDuplicateFlagsRepeatWithinWindow(t *testing.T) {
	a := NewDuplicate(16, time.Minute)
	record := &domain.ContentRecord{Text: "Одно и то же сообщение"}

	first, err := a.Analyze(record)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if first.Flagged {
		t.Fatalf("первое вхождение не должно помечаться")
	}

	second, err := a.Analyze(&domain.ContentRecord{Text: "  одно и то же сообщение "})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !second.Flagged {
		t.Fatalf("повтор нормализованного текста должен помечаться")
	}
	if second.Risk != domain.RiskHigh {
		t.Fatalf("ожидали high для дубликата, получили %s", second.Risk)
	}
}

func TestDuplicateExpiresAfterWindow(t *testing.T) {
	a := NewDuplicate(16, 30*time.Millisecond)
	if _, err := a.Analyze(&domain.ContentRecord{Text: "временный текст"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	res, err := a.Analyze(&domain.ContentRecord{Text: "временный текст"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Flagged {
		t.Fatalf("после истечения окна повтор не должен помечаться")
	}
}

func TestDuplicateByFileHash(t *testing.T) {
	a := NewDuplicate(16, time.Minute)
	if _, err := a.Analyze(&domain.ContentRecord{FileHash: "AgADBAAD"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	res, err := a.Analyze(&domain.ContentRecord{FileHash: "AgADBAAD", Text: "другой текст"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !res.Flagged {
		t.Fatalf("повтор вложения должен помечаться по хэшу файла")
	}
}

func TestDuplicateEmptyContentNone(t *testing.T) {
	a := NewDuplicate(16, time.Minute)
	res, err := a.Analyze(&domain.ContentRecord{Text: "   "})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Flagged || res.Risk != domain.RiskNone {
		t.Fatalf("пустой контент не должен помечаться")
	}
}

func TestDuplicateConcurrentAccess(t *testing.T) {
	a := NewDuplicate(64, time.Minute)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				_, _ = a.Analyze(&domain.ContentRecord{Text: "конкурентный текст"})
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
