package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"tg-moderation-bot/internal/domain"
)

const (
	duplicateAnalyzerName    = "duplicate"
	duplicateAnalyzerVersion = "1.0.1"
)

// DuplicateAnalyzer помечает повторную отправку одинакового контента внутри
// скользящего окна. Единственный анализатор с состоянием: окно хэшей живёт в
// LRU с нативным TTL на запись, поэтому доступ из параллельных вызовов
// конвейера безопасен без внешнего мьютекса.
type DuplicateAnalyzer struct {
	seen   *expirable.LRU[string, time.Time]
	window time.Duration
}

var _ domain.Analyzer = (*DuplicateAnalyzer)(nil)

// NewDuplicate создаёт анализатор с окном window и ёмкостью capacity хэшей.
func NewDuplicate(capacity int, window time.Duration) *DuplicateAnalyzer {
	if capacity <= 0 {
		capacity = 4096
	}
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &DuplicateAnalyzer{
		seen:   expirable.NewLRU[string, time.Time](capacity, nil, window),
		window: window,
	}
}

func (a *DuplicateAnalyzer) Name() string { return duplicateAnalyzerName }

// Analyze проверяет хэш нормализованного текста и хэш вложения по окну.
// Истёкшие записи LRU отбрасывает сам при каждом обращении.
func (a *DuplicateAnalyzer) Analyze(record *domain.ContentRecord) (domain.AnalysisResult, error) {
	start := time.Now()

	hashes := make([]string, 0, 2)
	if norm := normalizeText(record.Text); norm != "" {
		hashes = append(hashes, contentHash(norm))
	}
	if record.FileHash != "" {
		hashes = append(hashes, record.FileHash)
	}

	result := domain.AnalysisResult{
		AnalyzerName:    duplicateAnalyzerName,
		AnalyzerVersion: duplicateAnalyzerVersion,
		Risk:            domain.RiskNone,
		Category:        "duplicate",
	}

	if len(hashes) == 0 {
		result.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000
		return result, nil
	}

	duplicate := false
	for _, h := range hashes {
		if firstSeen, ok := a.seen.Get(h); ok {
			duplicate = true
			result.Reasons = append(result.Reasons, "повтор контента за окно "+a.window.String())
			result.Metadata = map[string]any{
				"hash":       h,
				"first_seen": firstSeen.UTC().Format(time.RFC3339),
			}
			break
		}
	}
	for _, h := range hashes {
		a.seen.Add(h, time.Now())
	}

	if duplicate {
		result.Risk = domain.RiskHigh
		result.Score = 0.9
		result.Confidence = 0.9
		result.Flagged = true
	}
	result.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000
	return result, nil
}

func normalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func contentHash(norm string) string {
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}
