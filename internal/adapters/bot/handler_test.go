package bot

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestEntityTextUTF16Offsets(t *testing.T) {
	// «привет» занимает 6 UTF-16 единиц, эмодзи 😀 — две
	text := "привет 😀 @user"
	if got := entityText(text, 10, 5); got != "@user" {
		t.Fatalf("ожидали @user, получили %q", got)
	}
	if got := entityText(text, 0, 6); got != "привет" {
		t.Fatalf("ожидали привет, получили %q", got)
	}
}

func TestEntityTextOutOfRange(t *testing.T) {
	if got := entityText("abc", 10, 2); got != "" {
		t.Fatalf("смещение за пределами текста должно давать пустую строку: %q", got)
	}
	if got := entityText("abc", 1, 100); got != "bc" {
		t.Fatalf("длина должна обрезаться по концу текста: %q", got)
	}
	if got := entityText("abc", -1, 2); got != "" {
		t.Fatalf("отрицательное смещение должно давать пустую строку: %q", got)
	}
}

func TestObserveSenderCountsWindow(t *testing.T) {
	h := NewHandler(nil, zerolog.Nop(), nil, nil)
	if f := h.observeSender(1); f != 1 {
		t.Fatalf("первое сообщение даёт частоту 1, получили %f", f)
	}
	if f := h.observeSender(1); f != 2 {
		t.Fatalf("второе сообщение даёт частоту 2, получили %f", f)
	}
	if f := h.observeSender(2); f != 1 {
		t.Fatalf("частота считается на отправителя, получили %f", f)
	}
}

func TestObserveSenderBoundedMemory(t *testing.T) {
	h := NewHandler(nil, zerolog.Nop(), nil, nil)
	for id := int64(0); id < 3*senderCacheSize; id++ {
		h.observeSender(id)
	}
	if n := h.lastSeen.Len(); n > senderCacheSize {
		t.Fatalf("число отслеживаемых отправителей должно быть ограничено %d, получили %d", senderCacheSize, n)
	}
}

func TestPruneSeenDropsStaleMarks(t *testing.T) {
	now := time.Now()
	seen := []time.Time{
		now.Add(-2 * frequencyWindow),
		now.Add(-frequencyWindow - time.Second),
		now.Add(-time.Second),
	}
	kept := pruneSeen(seen, now)
	if len(kept) != 1 {
		t.Fatalf("вне окна должна остаться одна отметка, получили %d", len(kept))
	}
}
