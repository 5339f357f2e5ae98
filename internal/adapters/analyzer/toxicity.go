package analyzer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"tg-moderation-bot/internal/domain"
)

const (
	toxicityAnalyzerName    = "toxicity"
	toxicityAnalyzerVersion = "1.1.0"

	toxicityMatchLimit     = 3
	toxicitySentimentBonus = 0.2
	toxicityTargetedBonus  = 0.2
)

type toxicPattern struct {
	re     *regexp.Regexp
	weight float64
	label  string
}

// Таблица весов: от лёгкой грубости (0.1) до прямых угроз (1.0).
// Для кириллицы \b не работает (границы слов в Go только ASCII),
// поэтому русские альтернативы идут без якорей.
var toxicPatterns = []toxicPattern{
	{regexp.MustCompile(`(?i)(\b(kys|kill\s*yourself|go\s*die)\b|убей\s*себя|сдохни)`), 1.0, "угроза"},
	{regexp.MustCompile(`(?i)(\b(f+u+c+k+\s*(you|u|off)|piece\s*of\s*shit)\b|мразь|тварь|ублюдок)`), 0.8, "грубое оскорбление"},
	{regexp.MustCompile(`(?i)(\b(idiot|moron|retard|loser)\b|идиот|дебил|придурок|тупой)`), 0.4, "оскорбление"},
	{regexp.MustCompile(`(?i)(\b(shut\s*up|stfu)\b|заткнись|отвали)`), 0.3, "агрессия"},
	{regexp.MustCompile(`(?i)(\b(damn|hell|wtf)\b|чёрт|блин)`), 0.1, "грубость"},
}

var negativeWords = map[string]struct{}{
	"hate": {}, "awful": {}, "terrible": {}, "disgusting": {}, "worst": {},
	"ненавижу": {}, "ужасно": {}, "отвратительно": {}, "мерзко": {},
}

var positiveWords = map[string]struct{}{
	"love": {}, "great": {}, "good": {}, "nice": {}, "thanks": {},
	"люблю": {}, "отлично": {}, "хорошо": {}, "спасибо": {},
}

// ToxicityAnalyzer оценивает токсичность по таблице взвешенных шаблонов,
// тональности текста и признаку адресной агрессии.
type ToxicityAnalyzer struct{}

var _ domain.Analyzer = (*ToxicityAnalyzer)(nil)

// NewToxicity создаёт анализатор токсичности.
func NewToxicity() *ToxicityAnalyzer {
	return &ToxicityAnalyzer{}
}

func (a *ToxicityAnalyzer) Name() string { return toxicityAnalyzerName }

// Analyze считает взвешенные совпадения (не более трёх на шаблон), добавляет
// бонусы за негативную тональность и за упоминания при уже заметном счёте.
func (a *ToxicityAnalyzer) Analyze(record *domain.ContentRecord) (domain.AnalysisResult, error) {
	start := time.Now()

	var score float64
	var reasons []string
	matched := 0
	for _, p := range toxicPatterns {
		hits := len(p.re.FindAllStringIndex(record.Text, toxicityMatchLimit))
		if hits == 0 {
			continue
		}
		matched += hits
		score += p.weight * float64(hits)
		reasons = append(reasons, fmt.Sprintf("%s: %d", p.label, hits))
	}

	sent := sentiment(record.Text)
	if sent < -0.5 {
		score += toxicitySentimentBonus
		reasons = append(reasons, fmt.Sprintf("негативная тональность %.2f", sent))
	}
	if record.Features.MentionCount > 0 && score > 0.3 {
		score += toxicityTargetedBonus
		reasons = append(reasons, "адресная агрессия")
	}

	if score > 1 {
		score = 1
	}

	risk := toxicityRisk(score)
	confidence := score + 0.1
	if confidence > 1 {
		confidence = 1
	}
	if score == 0 {
		confidence = 0
	}

	return domain.AnalysisResult{
		AnalyzerName:    toxicityAnalyzerName,
		AnalyzerVersion: toxicityAnalyzerVersion,
		Risk:            risk,
		Confidence:      confidence,
		Score:           score,
		Category:        "toxicity",
		Flagged:         score > 0,
		Reasons:         reasons,
		Metadata: map[string]any{
			"pattern_hits": matched,
			"sentiment":    sent,
		},
		ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000,
	}, nil
}

// sentiment — грубая лексическая оценка тональности в [-1,1].
func sentiment(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}
	var pos, neg int
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:()\"'")
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	return float64(pos-neg) / float64(len(words))
}

func toxicityRisk(score float64) domain.RiskLevel {
	switch {
	case score >= 0.7:
		return domain.RiskCritical
	case score >= 0.5:
		return domain.RiskHigh
	case score >= 0.3:
		return domain.RiskMedium
	case score > 0:
		return domain.RiskLow
	}
	return domain.RiskNone
}
