package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-moderation-bot/internal/adapters/analyzer"
	"tg-moderation-bot/internal/adapters/bot"
	"tg-moderation-bot/internal/adapters/executor"
	"tg-moderation-bot/internal/adapters/features"
	"tg-moderation-bot/internal/adapters/records"
	"tg-moderation-bot/internal/adapters/repo"
	"tg-moderation-bot/internal/domain"
	"tg-moderation-bot/internal/infra/cache"
	"tg-moderation-bot/internal/infra/config"
	"tg-moderation-bot/internal/infra/db"
	"tg-moderation-bot/internal/infra/log"
	"tg-moderation-bot/internal/infra/metrics"
	"tg-moderation-bot/internal/infra/queue"
	"tg-moderation-bot/internal/usecase/pipeline"
	"tg-moderation-bot/internal/usecase/policy"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv, "bot-gateway")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(context.Background(), cfg.PGDSN, 5)
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	recordStore := records.NewStore(cache.NewRedis(redisClient))

	var reviewQueue domain.ReviewQueue
	if cfg.AMQPURL != "" {
		rq, err := queue.NewRabbitReviewQueue(cfg.AMQPURL, cfg.Queues.Review)
		if err != nil {
			logger.Fatal().Err(err).Msg("gateway: очередь проверки недоступна")
		}
		defer rq.Close()
		reviewQueue = rq
	} else {
		reviewQueue = queue.NewRedisReviewQueue(redisClient, cfg.Queues.Review)
	}

	engine := policy.NewEngine(logger.With().Str("component", "policy").Logger(), cfg.Retention.Record)
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	// движок получает правила всех групп и сам скоупит их при применении
	rules, err := repoAdapter.ListAllRules(loadCtx)
	loadCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway: не удалось загрузить правила")
	}
	for _, rule := range rules {
		if err := engine.RegisterRule(rule); err != nil {
			// кривое правило не должно ронять гейтвей
			logger.Warn().Err(err).Str("rule", rule.Name).Msg("gateway: правило пропущено")
		}
	}

	svc := pipeline.NewService(
		features.NewExtractor(),
		engine,
		recordStore,
		repoAdapter,
		logger.With().Str("component", "pipeline").Logger(),
		cfg.Retention.Record,
		cfg.Retention.Appeal,
	)
	svc.RegisterAnalyzer(analyzer.NewSpam(cfg.Limits.SpamFrequency))
	svc.RegisterAnalyzer(analyzer.NewToxicity())
	svc.RegisterAnalyzer(analyzer.NewDuplicate(cfg.Limits.DuplicateCacheSize, cfg.Retention.DuplicateWindow))
	svc.RegisterPreFilter(pipeline.NewTrustedSenderFilter(cfg.Moderation.TrustedUserIDs))
	svc.RegisterPreFilter(&pipeline.EmptyContentFilter{})
	svc.RegisterPostHandler(pipeline.NewAuditLogHandler(repoAdapter))
	svc.RegisterPostHandler(pipeline.NewReviewEnqueueHandler(reviewQueue))

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway: не удалось создать бота")
	}
	exec := executor.NewTelegram(botAPI, logger.With().Str("component", "executor").Logger(), cfg.Moderation.MuteDuration)
	h := bot.NewHandler(botAPI, logger.With().Str("component", "bot").Logger(), svc, exec)

	if cfg.Telegram.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("gateway: некорректный URL вебхука")
		}
		if _, err := botAPI.Request(wh); err != nil {
			logger.Fatal().Err(err).Msg("gateway: не удалось зарегистрировать вебхук")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	r := chi.NewRouter()
	r.Post("/bot/webhook", func(w http.ResponseWriter, req *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(req.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(req.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	go func() {
		logger.Info().Msg("гейтвей модерации запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("остановка гейтвея")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
