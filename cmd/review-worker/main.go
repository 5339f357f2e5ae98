package main

import (
	"context"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-moderation-bot/internal/adapters/notifier"
	"tg-moderation-bot/internal/adapters/records"
	"tg-moderation-bot/internal/domain"
	"tg-moderation-bot/internal/infra/cache"
	"tg-moderation-bot/internal/infra/config"
	"tg-moderation-bot/internal/infra/log"
	"tg-moderation-bot/internal/infra/metrics"
	"tg-moderation-bot/internal/infra/queue"
	"tg-moderation-bot/internal/usecase/review"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv, "review-worker")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	recordStore := records.NewStore(cache.NewRedis(redisClient))

	var reviewQueue domain.ReviewQueue
	if cfg.AMQPURL != "" {
		rq, err := queue.NewRabbitReviewQueue(cfg.AMQPURL, cfg.Queues.Review)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: очередь проверки недоступна")
		}
		defer rq.Close()
		reviewQueue = rq
	} else {
		reviewQueue = queue.NewRedisReviewQueue(redisClient, cfg.Queues.Review)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось создать бота")
	}
	reviewNotifier := notifier.NewTelegram(botAPI, logger.With().Str("component", "notifier").Logger(), cfg.Telegram.ReviewChat)

	svc := review.NewService(reviewQueue, recordStore, reviewNotifier, logger.With().Str("component", "review").Logger(), 0)

	logger.Info().Msg("воркер проверки запущен")
	if err := svc.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: цикл обработки завершился с ошибкой")
	}
	logger.Info().Msg("остановка воркера")
}
