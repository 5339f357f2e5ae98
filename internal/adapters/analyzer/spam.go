package analyzer

import (
	"fmt"
	"strings"
	"time"

	"tg-moderation-bot/internal/domain"
)

const (
	spamAnalyzerName    = "spam"
	spamAnalyzerVersion = "1.2.0"

	spamFlagThreshold  = 0.4
	spamKeywordWeight  = 0.15
	spamKeywordCap     = 0.5
	spamShortenerScore = 0.3
	spamMentionScore   = 0.2
	spamForwardScore   = 0.15
	spamFrequencyScore = 0.25
)

var urlShorteners = []string{
	"bit.ly", "t.co", "tinyurl.com", "goo.gl", "is.gd", "ow.ly",
	"cutt.ly", "rb.gy", "clck.ru", "vk.cc", "shorturl.at",
}

var spamKeywords = []string{
	"buy now", "click here", "free money", "limited offer", "act now",
	"earn from home", "guaranteed income", "crypto signals", "casino",
	"купи сейчас", "жми сюда", "быстрый заработок", "пассивный доход",
	"только сегодня", "розыгрыш", "халява",
}

// SpamAnalyzer оценивает сообщение по эвристикам спама: сокращатели ссылок,
// ключевые слова, массовые упоминания, пересылка из каналов и частота отправки.
type SpamAnalyzer struct {
	frequencyLimit float64
}

var _ domain.Analyzer = (*SpamAnalyzer)(nil)

// NewSpam создаёт анализатор спама. frequencyLimit — порог сообщений в минуту.
func NewSpam(frequencyLimit float64) *SpamAnalyzer {
	if frequencyLimit <= 0 {
		frequencyLimit = 10
	}
	return &SpamAnalyzer{frequencyLimit: frequencyLimit}
}

func (a *SpamAnalyzer) Name() string { return spamAnalyzerName }

// Analyze суммирует вклад каждой эвристики и переводит счёт в уровень риска.
func (a *SpamAnalyzer) Analyze(record *domain.ContentRecord) (domain.AnalysisResult, error) {
	start := time.Now()
	f := record.Features
	text := strings.ToLower(record.Text)

	var score float64
	var reasons []string

	shortenerHits := 0
	for _, u := range f.URLs {
		lower := strings.ToLower(u)
		for _, s := range urlShorteners {
			if strings.Contains(lower, s) {
				shortenerHits++
				break
			}
		}
	}
	if shortenerHits > 0 {
		score += spamShortenerScore * float64(shortenerHits)
		reasons = append(reasons, fmt.Sprintf("сокращённые ссылки: %d", shortenerHits))
	}

	keywordScore := 0.0
	keywordHits := 0
	for _, kw := range spamKeywords {
		if strings.Contains(text, kw) {
			keywordScore += spamKeywordWeight
			keywordHits++
		}
	}
	if keywordScore > spamKeywordCap {
		keywordScore = spamKeywordCap
	}
	if keywordHits > 0 {
		score += keywordScore
		reasons = append(reasons, fmt.Sprintf("спам-слова: %d", keywordHits))
	}

	if f.MentionCount > 5 {
		score += spamMentionScore
		reasons = append(reasons, fmt.Sprintf("массовые упоминания: %d", f.MentionCount))
	}
	if f.ForwardFromChannel {
		score += spamForwardScore
		reasons = append(reasons, "переслано из канала")
	}
	if f.SenderFrequency > a.frequencyLimit {
		score += spamFrequencyScore
		reasons = append(reasons, fmt.Sprintf("частота отправки %.1f/мин", f.SenderFrequency))
	}

	if score > 1 {
		score = 1
	}

	risk := spamRisk(score)
	flagged := score >= spamFlagThreshold
	confidence := score + 0.2
	if confidence > 1 {
		confidence = 1
	}

	return domain.AnalysisResult{
		AnalyzerName:    spamAnalyzerName,
		AnalyzerVersion: spamAnalyzerVersion,
		Risk:            risk,
		Confidence:      confidence,
		Score:           score,
		Category:        "spam",
		Flagged:         flagged,
		Reasons:         reasons,
		Metadata: map[string]any{
			"shortener_hits": shortenerHits,
			"keyword_hits":   keywordHits,
		},
		ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000,
	}, nil
}

func spamRisk(score float64) domain.RiskLevel {
	switch {
	case score >= 0.8:
		return domain.RiskCritical
	case score >= 0.6:
		return domain.RiskHigh
	case score >= 0.4:
		return domain.RiskMedium
	case score >= 0.2:
		return domain.RiskLow
	}
	return domain.RiskNone
}
