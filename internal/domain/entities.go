package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RiskLevel описывает порядковый уровень риска контента.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskNames = map[RiskLevel]string{
	RiskNone:     "none",
	RiskLow:      "low",
	RiskMedium:   "medium",
	RiskHigh:     "high",
	RiskCritical: "critical",
}

func (r RiskLevel) String() string {
	if name, ok := riskNames[r]; ok {
		return name
	}
	return "none"
}

// MarshalJSON сериализует уровень риска строкой.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON разбирает строковое представление уровня риска.
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for level, n := range riskNames {
		if n == name {
			*r = level
			return nil
		}
	}
	return fmt.Errorf("неизвестный уровень риска: %q", name)
}

// DecisionValue перечисляет модерационные действия.
type DecisionValue string

const (
	DecisionAllow     DecisionValue = "allow"
	DecisionFlag      DecisionValue = "flag"
	DecisionDelete    DecisionValue = "delete"
	DecisionRestrict  DecisionValue = "restrict"
	DecisionMute      DecisionValue = "mute"
	DecisionKick      DecisionValue = "kick"
	DecisionBan       DecisionValue = "ban"
	DecisionShadowban DecisionValue = "shadowban"
)

// IsEnforcement сообщает, требует ли действие вмешательства на стороне платформы.
func (d DecisionValue) IsEnforcement() bool {
	switch d {
	case DecisionDelete, DecisionMute, DecisionKick, DecisionBan, DecisionShadowban:
		return true
	}
	return false
}

// RecordStatus описывает состояние записи в конвейере.
type RecordStatus string

const (
	StatusPending    RecordStatus = "pending"
	StatusProcessing RecordStatus = "processing"
	StatusCompleted  RecordStatus = "completed"
	StatusError      RecordStatus = "error"
	StatusFiltered   RecordStatus = "filtered"
)

// AppealStatus описывает состояние апелляции.
type AppealStatus string

const (
	AppealNone     AppealStatus = ""
	AppealPending  AppealStatus = "pending"
	AppealApproved AppealStatus = "approved"
	AppealRejected AppealStatus = "rejected"
)

// ContentType определяет тип содержимого сообщения.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentPhoto    ContentType = "photo"
	ContentVideo    ContentType = "video"
	ContentDocument ContentType = "document"
	ContentSticker  ContentType = "sticker"
	ContentVoice    ContentType = "voice"
	ContentOther    ContentType = "other"
)

// InboundMessage — входящее сообщение группы в том виде, в каком его передаёт гейтвей.
type InboundMessage struct {
	MessageID          int64       `json:"message_id"`
	ChatID             int64       `json:"chat_id"`
	UserID             int64       `json:"user_id"`
	Text               string      `json:"text"`
	ContentType        ContentType `json:"content_type"`
	Mentions           []string    `json:"mentions,omitempty"`
	Hashtags           []string    `json:"hashtags,omitempty"`
	Commands           []string    `json:"commands,omitempty"`
	IsForwarded        bool        `json:"is_forwarded"`
	ForwardFromChannel bool        `json:"forward_from_channel"`
	FileHash           string      `json:"file_hash,omitempty"`
	SenderFrequency    float64     `json:"sender_frequency"`
	DuplicateHint      int         `json:"duplicate_hint"`
	ReceivedAt         time.Time   `json:"received_at"`
}

// ContentFeatures — неизменяемый набор признаков, извлечённых из сообщения.
type ContentFeatures struct {
	TextLength         int      `json:"text_length"`
	WordCount          int      `json:"word_count"`
	EmojiCount         int      `json:"emoji_count"`
	CapsRatio          float64  `json:"caps_ratio"`
	DigitRatio         float64  `json:"digit_ratio"`
	SpecialCharRatio   float64  `json:"special_char_ratio"`
	URLs               []string `json:"urls,omitempty"`
	URLCount           int      `json:"url_count"`
	MentionCount       int      `json:"mention_count"`
	HashtagCount       int      `json:"hashtag_count"`
	CommandCount       int      `json:"command_count"`
	IsForwarded        bool     `json:"is_forwarded"`
	ForwardFromChannel bool     `json:"forward_from_channel"`
	SenderFrequency    float64  `json:"sender_frequency"`
	DuplicateCount     int      `json:"duplicate_count"`
}

// AnalysisResult — результат одного анализатора по одной записи.
type AnalysisResult struct {
	AnalyzerName     string         `json:"analyzer_name"`
	AnalyzerVersion  string         `json:"analyzer_version"`
	Risk             RiskLevel      `json:"risk_level"`
	Confidence       float64        `json:"confidence"`
	Score            float64        `json:"score"`
	Category         string         `json:"category"`
	Flagged          bool           `json:"flagged"`
	Reasons          []string       `json:"reasons,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	ProcessingTimeMs float64        `json:"processing_time_ms"`
}

// Decision — итоговое решение по завершённой записи.
type Decision struct {
	Value          DecisionValue `json:"decision"`
	Risk           RiskLevel     `json:"risk_level"`
	Confidence     float64       `json:"confidence"`
	PrimaryReason  string        `json:"primary_reason"`
	AllReasons     []string      `json:"all_reasons,omitempty"`
	RequiresReview bool          `json:"requires_review"`
	ReviewPriority int           `json:"review_priority"`
	Appealable     bool          `json:"appealable"`
	AppealDeadline *time.Time    `json:"appeal_deadline,omitempty"`
}

// PolicyRule — упорядоченное правило политики, переопределяющее действие по умолчанию.
type PolicyRule struct {
	ID            int64         `json:"id"`
	GroupID       int64         `json:"group_id"`
	Name          string        `json:"name"`
	Condition     string        `json:"condition"`
	Action        DecisionValue `json:"action"`
	MinRisk       RiskLevel     `json:"min_risk"`
	MinConfidence float64       `json:"min_confidence"`
	Weight        float64       `json:"weight"`
	Position      int           `json:"position"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ContentRecord — полный жизненный цикл одного сообщения в конвейере.
type ContentRecord struct {
	RecordID         string           `json:"record_id"`
	MessageID        int64            `json:"message_id"`
	ChatID           int64            `json:"chat_id"`
	UserID           int64            `json:"user_id"`
	GroupID          int64            `json:"group_id"`
	ContentType      ContentType      `json:"content_type"`
	Text             string           `json:"text"`
	FileHash         string           `json:"file_hash,omitempty"`
	Features         ContentFeatures  `json:"features"`
	AnalysisResults  []AnalysisResult `json:"analysis_results,omitempty"`
	Decision         *Decision        `json:"decision,omitempty"`
	Status           RecordStatus     `json:"status"`
	FilterReason     string           `json:"filter_reason,omitempty"`
	ReceivedAt       time.Time        `json:"received_at"`
	ProcessedAt      time.Time        `json:"processed_at,omitempty"`
	ProcessingTimeMs float64          `json:"processing_time_ms"`
	ModeratedBy      int64            `json:"moderated_by,omitempty"`
	ModeratedAt      *time.Time       `json:"moderated_at,omitempty"`
	AppealStatus     AppealStatus     `json:"appeal_status,omitempty"`
}

// Appeal — пользовательская апелляция на решение, хранится независимо от записи.
type Appeal struct {
	ID        string       `json:"id"`
	RecordID  string       `json:"record_id"`
	GroupID   int64        `json:"group_id"`
	UserID    int64        `json:"user_id"`
	Reason    string       `json:"reason"`
	Status    AppealStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// AuditEntry — строка журнала модерации для завершённой записи.
type AuditEntry struct {
	RecordID   string        `json:"record_id"`
	GroupID    int64         `json:"group_id"`
	ChatID     int64         `json:"chat_id"`
	UserID     int64         `json:"user_id"`
	Action     DecisionValue `json:"action"`
	Risk       RiskLevel     `json:"risk_level"`
	Confidence float64       `json:"confidence"`
	Reasons    []string      `json:"reasons,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
