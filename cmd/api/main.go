package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tg-moderation-bot/internal/adapters/features"
	"tg-moderation-bot/internal/adapters/records"
	"tg-moderation-bot/internal/adapters/repo"
	"tg-moderation-bot/internal/domain"
	"tg-moderation-bot/internal/infra/cache"
	"tg-moderation-bot/internal/infra/config"
	"tg-moderation-bot/internal/infra/db"
	"tg-moderation-bot/internal/infra/metrics"
	"tg-moderation-bot/internal/usecase/pipeline"
	"tg-moderation-bot/internal/usecase/policy"
)

func main() {
	cfg := config.Load()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.PGDSN, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	recordStore := records.NewStore(cache.NewRedis(redisClient))

	// апелляции идут через тот же конвейерный сервис, что и в гейтвее;
	// анализаторы здесь не регистрируются — этому процессу они не нужны
	engine := policy.NewEngine(log.With().Str("component", "policy").Logger(), cfg.Retention.Record)
	svc := pipeline.NewService(
		features.NewExtractor(),
		engine,
		recordStore,
		repoAdapter,
		log.With().Str("component", "pipeline").Logger(),
		cfg.Retention.Record,
		cfg.Retention.Appeal,
	)

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Get("/api/v1/records/{recordID}", func(w http.ResponseWriter, req *http.Request) {
		record, err := recordStore.GetRecord(req.Context(), chi.URLParam(req, "recordID"))
		if err != nil {
			if errors.Is(err, domain.ErrRecordNotFound) {
				writeError(w, http.StatusNotFound, "record not found")
				return
			}
			log.Error().Err(err).Msg("api: чтение записи")
			writeError(w, http.StatusInternalServerError, "failed to load record")
			return
		}
		writeJSON(w, record)
	})

	r.Post("/api/v1/records/{recordID}/appeal", func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()
		var body appealRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.UserID == 0 {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		accepted, err := svc.Appeal(req.Context(), chi.URLParam(req, "recordID"), body.UserID, body.Reason)
		if err != nil {
			log.Error().Err(err).Msg("api: подача апелляции")
			writeError(w, http.StatusInternalServerError, "failed to submit appeal")
			return
		}
		writeJSON(w, map[string]any{"accepted": accepted})
	})

	r.Get("/api/v1/groups/{groupID}/rules", func(w http.ResponseWriter, req *http.Request) {
		groupID, err := strconv.ParseInt(chi.URLParam(req, "groupID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid group id")
			return
		}
		rules, err := repoAdapter.ListRules(req.Context(), groupID)
		if err != nil {
			log.Error().Err(err).Msg("api: список правил")
			writeError(w, http.StatusInternalServerError, "failed to list rules")
			return
		}
		writeJSON(w, rules)
	})

	r.Post("/api/v1/groups/{groupID}/rules", func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()
		groupID, err := strconv.ParseInt(chi.URLParam(req, "groupID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid group id")
			return
		}
		var rule domain.PolicyRule
		if err := json.NewDecoder(req.Body).Decode(&rule); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		rule.GroupID = groupID
		// условие проверяется компиляцией до записи в БД
		probe := policy.NewEngine(log.Logger, 0)
		if err := probe.RegisterRule(rule); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		saved, err := repoAdapter.CreateRule(req.Context(), rule)
		if err != nil {
			log.Error().Err(err).Msg("api: создание правила")
			writeError(w, http.StatusInternalServerError, "failed to create rule")
			return
		}
		writeJSON(w, saved)
	})

	r.Delete("/api/v1/groups/{groupID}/rules/{ruleID}", func(w http.ResponseWriter, req *http.Request) {
		groupID, err := strconv.ParseInt(chi.URLParam(req, "groupID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid group id")
			return
		}
		ruleID, err := strconv.ParseInt(chi.URLParam(req, "ruleID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid rule id")
			return
		}
		if err := repoAdapter.DeleteRule(req.Context(), groupID, ruleID); err != nil {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/api/v1/groups/{groupID}/appeals", func(w http.ResponseWriter, req *http.Request) {
		groupID, err := strconv.ParseInt(chi.URLParam(req, "groupID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid group id")
			return
		}
		status := domain.AppealStatus(req.URL.Query().Get("status"))
		appeals, err := repoAdapter.ListAppeals(req.Context(), groupID, status, 100)
		if err != nil {
			log.Error().Err(err).Msg("api: список апелляций")
			writeError(w, http.StatusInternalServerError, "failed to list appeals")
			return
		}
		writeJSON(w, appeals)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), ":9090")
	go func() {
		log.Info().Msg("api: старт")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	log.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type appealRequest struct {
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
