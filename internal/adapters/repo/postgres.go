package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-moderation-bot/internal/domain"
)

// Postgres реализует репозитории правил, журнала и апелляций на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.RuleRepo = (*Postgres)(nil)
var _ domain.AuditRepo = (*Postgres)(nil)
var _ domain.AppealRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// ListRules возвращает правила группы в порядке применения.
func (p *Postgres) ListRules(ctx context.Context, groupID int64) ([]domain.PolicyRule, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, `
		SELECT id, group_id, name, condition, action, min_risk, min_confidence, weight, position, created_at
		FROM moderation_rules
		WHERE group_id = $1
		ORDER BY position, weight DESC, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("выборка правил: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

// ListAllRules возвращает правила всех групп: глобальные (group_id = 0) и
// локальные. Скоупинг по группе выполняет движок политики при применении.
func (p *Postgres) ListAllRules(ctx context.Context) ([]domain.PolicyRule, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, `
		SELECT id, group_id, name, condition, action, min_risk, min_confidence, weight, position, created_at
		FROM moderation_rules
		ORDER BY group_id, position, weight DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("выборка всех правил: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

func scanRules(rows pgx.Rows) ([]domain.PolicyRule, error) {
	var rules []domain.PolicyRule
	for rows.Next() {
		var r domain.PolicyRule
		var minRisk int
		if err := rows.Scan(&r.ID, &r.GroupID, &r.Name, &r.Condition, &r.Action, &minRisk, &r.MinConfidence, &r.Weight, &r.Position, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("чтение правила: %w", err)
		}
		r.MinRisk = domain.RiskLevel(minRisk)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// CreateRule сохраняет новое правило и возвращает его с идентификатором.
func (p *Postgres) CreateRule(ctx context.Context, rule domain.PolicyRule) (domain.PolicyRule, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	err := p.pool.QueryRow(ctx, `
		INSERT INTO moderation_rules (group_id, name, condition, action, min_risk, min_confidence, weight, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING id, created_at`,
		rule.GroupID, rule.Name, rule.Condition, rule.Action, int(rule.MinRisk), rule.MinConfidence, rule.Weight, rule.Position,
	).Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return domain.PolicyRule{}, fmt.Errorf("создание правила: %w", err)
	}
	return rule, nil
}

// DeleteRule удаляет правило группы.
func (p *Postgres) DeleteRule(ctx context.Context, groupID, ruleID int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	tag, err := p.pool.Exec(ctx, `DELETE FROM moderation_rules WHERE group_id = $1 AND id = $2`, groupID, ruleID)
	if err != nil {
		return fmt.Errorf("удаление правила: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AppendAudit дописывает строку журнала модерации.
func (p *Postgres) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	reasons, err := json.Marshal(entry.Reasons)
	if err != nil {
		return fmt.Errorf("сериализация причин: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO moderation_audit (record_id, group_id, chat_id, user_id, action, risk, confidence, reasons, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.RecordID, entry.GroupID, entry.ChatID, entry.UserID, string(entry.Action), int(entry.Risk), entry.Confidence, reasons, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("запись журнала: %w", err)
	}
	return nil
}

// ListAuditByUser возвращает последние строки журнала по пользователю группы.
func (p *Postgres) ListAuditByUser(ctx context.Context, groupID, userID int64, limit int) ([]domain.AuditEntry, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx, `
		SELECT record_id, group_id, chat_id, user_id, action, risk, confidence, reasons, created_at
		FROM moderation_audit
		WHERE group_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, groupID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("выборка журнала: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var action string
		var risk int
		var reasons []byte
		if err := rows.Scan(&e.RecordID, &e.GroupID, &e.ChatID, &e.UserID, &action, &risk, &e.Confidence, &reasons, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("чтение журнала: %w", err)
		}
		e.Action = domain.DecisionValue(action)
		e.Risk = domain.RiskLevel(risk)
		if len(reasons) > 0 {
			if err := json.Unmarshal(reasons, &e.Reasons); err != nil {
				return nil, fmt.Errorf("разбор причин: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveAppeal сохраняет апелляцию в долговременную историю.
func (p *Postgres) SaveAppeal(ctx context.Context, appeal domain.Appeal) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx, `
		INSERT INTO moderation_appeals (id, record_id, group_id, user_id, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`,
		appeal.ID, appeal.RecordID, appeal.GroupID, appeal.UserID, appeal.Reason, string(appeal.Status), appeal.CreatedAt)
	if err != nil {
		return fmt.Errorf("сохранение апелляции: %w", err)
	}
	return nil
}

// ListAppeals возвращает апелляции группы, опционально по статусу.
func (p *Postgres) ListAppeals(ctx context.Context, groupID int64, status domain.AppealStatus, limit int) ([]domain.Appeal, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, record_id, group_id, user_id, reason, status, created_at
		FROM moderation_appeals
		WHERE group_id = $1`
	args := []any{groupID}
	if status != domain.AppealNone {
		query += ` AND status = $2 ORDER BY created_at DESC LIMIT $3`
		args = append(args, string(status), limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("выборка апелляций: %w", err)
	}
	defer rows.Close()

	var appeals []domain.Appeal
	for rows.Next() {
		var a domain.Appeal
		var st string
		if err := rows.Scan(&a.ID, &a.RecordID, &a.GroupID, &a.UserID, &a.Reason, &st, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("чтение апелляции: %w", err)
		}
		a.Status = domain.AppealStatus(st)
		appeals = append(appeals, a)
	}
	return appeals, rows.Err()
}
