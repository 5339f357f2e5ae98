package features

import (
	"testing"

	"tg-moderation-bot/internal/domain"
)

func TestExtractEmptyTextZeroRatios(t *testing.T) {
	e := NewExtractor()
	f := e.Extract(domain.InboundMessage{Text: "", ContentType: domain.ContentPhoto})
	if f.CapsRatio != 0 || f.DigitRatio != 0 || f.SpecialCharRatio != 0 {
		t.Fatalf("ожидали нулевые соотношения для пустого текста, получили %+v", f)
	}
	if f.TextLength != 0 || f.WordCount != 0 {
		t.Fatalf("ожидали нулевые счётчики для пустого текста")
	}
}

func TestExtractURLs(t *testing.T) {
	e := NewExtractor()
	f := e.Extract(domain.InboundMessage{Text: "смотри https://example.com/page и bit.ly/xyz"})
	if f.URLCount != 2 {
		t.Fatalf("ожидали 2 ссылки, получили %d: %v", f.URLCount, f.URLs)
	}
}

func TestExtractCapsRatio(t *testing.T) {
	e := NewExtractor()
	f := e.Extract(domain.InboundMessage{Text: "AAAA bbbb"})
	if f.CapsRatio != 0.5 {
		t.Fatalf("ожидали caps_ratio 0.5, получили %f", f.CapsRatio)
	}
}

func TestExtractDigitsAndSpecial(t *testing.T) {
	e := NewExtractor()
	f := e.Extract(domain.InboundMessage{Text: "ab12!!"})
	if f.DigitRatio != 2.0/6.0 {
		t.Fatalf("ожидали digit_ratio 1/3, получили %f", f.DigitRatio)
	}
	if f.SpecialCharRatio != 2.0/6.0 {
		t.Fatalf("ожидали special_char_ratio 1/3, получили %f", f.SpecialCharRatio)
	}
}

func TestExtractEmojiCount(t *testing.T) {
	e := NewExtractor()
	f := e.Extract(domain.InboundMessage{Text: "привет 😀😀🔥"})
	if f.EmojiCount != 3 {
		t.Fatalf("ожидали 3 эмодзи, получили %d", f.EmojiCount)
	}
}

func TestExtractEntityCountsFromSpans(t *testing.T) {
	e := NewExtractor()
	f := e.Extract(domain.InboundMessage{
		Text:     "без сущностей в тексте",
		Mentions: []string{"@a", "@b"},
		Hashtags: []string{"#x"},
		Commands: []string{"/start"},
	})
	if f.MentionCount != 2 || f.HashtagCount != 1 || f.CommandCount != 1 {
		t.Fatalf("счётчики сущностей должны браться из спанов: %+v", f)
	}
}

func TestExtractForwardAndFrequency(t *testing.T) {
	e := NewExtractor()
	f := e.Extract(domain.InboundMessage{
		Text:               "fwd",
		IsForwarded:        true,
		ForwardFromChannel: true,
		SenderFrequency:    12,
		DuplicateHint:      2,
	})
	if !f.IsForwarded || !f.ForwardFromChannel {
		t.Fatalf("ожидали признаки пересылки")
	}
	if f.SenderFrequency != 12 || f.DuplicateCount != 2 {
		t.Fatalf("ожидали перенос частоты и подсказки дубликатов")
	}
}

func TestDetectContentType(t *testing.T) {
	if got := DetectContentType(true, false, false, false, false, "caption"); got != domain.ContentPhoto {
		t.Fatalf("ожидали photo, получили %s", got)
	}
	if got := DetectContentType(false, false, false, false, false, "просто текст"); got != domain.ContentText {
		t.Fatalf("ожидали text, получили %s", got)
	}
	if got := DetectContentType(false, false, false, false, false, "  "); got != domain.ContentOther {
		t.Fatalf("ожидали other, получили %s", got)
	}
}
