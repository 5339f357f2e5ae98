package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"

	"tg-moderation-bot/internal/domain"
)

// ErrEmptyCondition возвращается при регистрации правила без условия.
var ErrEmptyCondition = errors.New("правило без условия")

// defaultActions — отображение уровня риска в действие, когда ни одно правило не сработало.
var defaultActions = map[domain.RiskLevel]domain.DecisionValue{
	domain.RiskNone:     domain.DecisionAllow,
	domain.RiskLow:      domain.DecisionFlag,
	domain.RiskMedium:   domain.DecisionRestrict,
	domain.RiskHigh:     domain.DecisionDelete,
	domain.RiskCritical: domain.DecisionBan,
}

type compiledRule struct {
	rule    domain.PolicyRule
	program *vm.Program
}

// Engine агрегирует результаты анализаторов и применяет упорядоченные правила.
// Условия компилируются один раз при регистрации: кривое правило отбрасывается
// сразу, а не молча на каждом сообщении. Ошибка вычисления на конкретной записи
// по-прежнему означает «не совпало», а не отказ конвейера.
type Engine struct {
	rules        []compiledRule
	appealWindow time.Duration
	log          zerolog.Logger
}

var _ domain.DecisionEngine = (*Engine)(nil)

// NewEngine создаёт движок политики. appealWindow задаёт срок подачи апелляции.
func NewEngine(logger zerolog.Logger, appealWindow time.Duration) *Engine {
	return &Engine{appealWindow: appealWindow, log: logger}
}

// RegisterRule компилирует условие и добавляет правило в конец списка.
func (e *Engine) RegisterRule(rule domain.PolicyRule) error {
	if rule.Condition == "" {
		return ErrEmptyCondition
	}
	program, err := expr.Compile(rule.Condition, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return fmt.Errorf("компиляция условия %q: %w", rule.Condition, err)
	}
	e.rules = append(e.rules, compiledRule{rule: rule, program: program})
	return nil
}

// RegisterRules регистрирует набор правил, сохраняя порядок списка.
func (e *Engine) RegisterRules(rules []domain.PolicyRule) error {
	for _, r := range rules {
		if err := e.RegisterRule(r); err != nil {
			return err
		}
	}
	return nil
}

// Rules возвращает зарегистрированные правила в порядке применения.
func (e *Engine) Rules() []domain.PolicyRule {
	out := make([]domain.PolicyRule, 0, len(e.rules))
	for _, cr := range e.rules {
		out = append(out, cr.rule)
	}
	return out
}

// Evaluate строит решение по записи: агрегация риска по помеченным результатам,
// первое совпавшее правило, иначе отображение по умолчанию.
func (e *Engine) Evaluate(record *domain.ContentRecord) domain.Decision {
	risk, confidence, primary, allReasons := aggregate(record.AnalysisResults)

	decision := domain.Decision{
		Risk:          risk,
		Confidence:    confidence,
		PrimaryReason: primary,
		AllReasons:    allReasons,
	}

	env := buildEnv(record)
	ruleMatched := false
	for _, cr := range e.rules {
		// правило с group_id=0 глобально, остальные действуют только в своей группе
		if cr.rule.GroupID != 0 && cr.rule.GroupID != record.GroupID {
			continue
		}
		if risk < cr.rule.MinRisk || confidence < cr.rule.MinConfidence {
			continue
		}
		out, err := expr.Run(cr.program, env)
		if err != nil {
			// неизвестное поле или несовместимые типы — не совпало
			e.log.Debug().Err(err).Str("rule", cr.rule.Name).Msg("policy: условие не вычислилось")
			continue
		}
		matched, ok := out.(bool)
		if !ok || !matched {
			continue
		}
		decision.Value = cr.rule.Action
		if decision.PrimaryReason == "" {
			decision.PrimaryReason = cr.rule.Name
		}
		ruleMatched = true
		break
	}

	if !ruleMatched {
		decision.Value = defaultActions[risk]
	}

	decision.RequiresReview = risk >= domain.RiskMedium
	decision.ReviewPriority = reviewPriority(risk, ruleMatched)
	decision.Appealable = decision.Value != domain.DecisionAllow && decision.Value != domain.DecisionFlag
	if decision.Appealable && e.appealWindow > 0 {
		deadline := time.Now().UTC().Add(e.appealWindow)
		decision.AppealDeadline = &deadline
	}
	return decision
}

// aggregate возвращает максимальный риск среди помеченных результатов, уверенность
// и основную причину первого результата на этом уровне (порядок регистрации —
// разрешение ничьих) и полный список причин всех помеченных результатов.
func aggregate(results []domain.AnalysisResult) (domain.RiskLevel, float64, string, []string) {
	risk := domain.RiskNone
	for _, r := range results {
		if r.Flagged && r.Risk > risk {
			risk = r.Risk
		}
	}

	var confidence float64
	var primary string
	picked := false
	var allReasons []string
	for _, r := range results {
		if !r.Flagged {
			continue
		}
		if r.Risk == risk && !picked {
			picked = true
			confidence = r.Confidence
			if len(r.Reasons) > 0 {
				primary = r.Reasons[0]
			} else {
				primary = r.Category
			}
		}
		allReasons = append(allReasons, r.Reasons...)
	}
	if risk == domain.RiskNone {
		return domain.RiskNone, 0, "", nil
	}
	return risk, confidence, primary, allReasons
}

// buildEnv раскладывает запись в окружение для условий: features.<поле> и
// <имя_анализатора>.<атрибут>.
func buildEnv(record *domain.ContentRecord) map[string]any {
	f := record.Features
	env := map[string]any{
		"features": map[string]any{
			"text_length":          f.TextLength,
			"word_count":           f.WordCount,
			"emoji_count":          f.EmojiCount,
			"caps_ratio":           f.CapsRatio,
			"digit_ratio":          f.DigitRatio,
			"special_char_ratio":   f.SpecialCharRatio,
			"url_count":            f.URLCount,
			"mention_count":        f.MentionCount,
			"hashtag_count":        f.HashtagCount,
			"command_count":        f.CommandCount,
			"is_forwarded":         f.IsForwarded,
			"forward_from_channel": f.ForwardFromChannel,
			"sender_frequency":     f.SenderFrequency,
			"duplicate_count":      f.DuplicateCount,
		},
	}
	for _, r := range record.AnalysisResults {
		env[r.AnalyzerName] = map[string]any{
			"score":      r.Score,
			"confidence": r.Confidence,
			"risk_level": int(r.Risk),
			"flagged":    r.Flagged,
			"category":   r.Category,
		}
	}
	return env
}

func reviewPriority(risk domain.RiskLevel, ruleMatched bool) int {
	switch {
	case ruleMatched && risk == domain.RiskCritical:
		return 8
	case risk >= domain.RiskHigh:
		return 5
	case risk == domain.RiskMedium:
		return 3
	}
	return 1
}
