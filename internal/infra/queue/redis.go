package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-moderation-bot/internal/domain"
)

// urgentPriority — порог, начиная с которого задача идёт в срочный список.
const urgentPriority = 5

// RedisReviewQueue реализует очередь задач на двух Redis-списках: срочном и
// обычном. BRPOP проверяет ключи в заданном порядке, поэтому срочный список
// вычерпывается первым.
type RedisReviewQueue struct {
	client *redis.Client
	key    string
}

var _ domain.ReviewQueue = (*RedisReviewQueue)(nil)

// NewRedisReviewQueue создаёт очередь по указанному базовому ключу.
func NewRedisReviewQueue(client *redis.Client, key string) *RedisReviewQueue {
	return &RedisReviewQueue{client: client, key: key}
}

func (q *RedisReviewQueue) urgentKey() string { return q.key + ":urgent" }

// keyFor выбирает список по приоритету задачи.
func (q *RedisReviewQueue) keyFor(priority int) string {
	if priority >= urgentPriority {
		return q.urgentKey()
	}
	return q.key
}

// Enqueue публикует задачу в список, соответствующий её приоритету.
func (q *RedisReviewQueue) Enqueue(ctx context.Context, job domain.ReviewJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("сериализация задачи: %w", err)
	}
	if err := q.client.LPush(ctx, q.keyFor(job.Priority), payload).Err(); err != nil {
		return fmt.Errorf("постановка задачи: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу, предпочитая срочный список обычному.
func (q *RedisReviewQueue) Pop(ctx context.Context) (domain.ReviewJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.ReviewJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.urgentKey(), q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.ReviewJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.ReviewJob{}, fmt.Errorf("чтение очереди: %w", err)
		}
		if len(res) != 2 {
			return domain.ReviewJob{}, errors.New("неожиданный ответ BRPOP")
		}
		var job domain.ReviewJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.ReviewJob{}, fmt.Errorf("разбор задачи: %w", err)
		}
		return job, nil
	}
}
