package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	PipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "moderation_pipeline_seconds",
		Help:    "Время обработки одного сообщения конвейером",
		Buckets: prometheus.DefBuckets,
	})
	PipelineTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_pipeline_total",
		Help: "Количество обработанных сообщений по итоговому статусу",
	}, []string{"status"})
	AnalyzerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_analyzer_errors_total",
		Help: "Ошибки анализаторов, исключённые из агрегации",
	}, []string{"analyzer"})
	AnalyzerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moderation_analyzer_seconds",
		Help:    "Время работы одного анализатора",
		Buckets: prometheus.DefBuckets,
	}, []string{"analyzer"})
	DecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_decisions_total",
		Help: "Принятые решения по действию и уровню риска",
	}, []string{"action", "risk"})
	ReviewEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "moderation_review_enqueued_total",
		Help: "Записи, отправленные на ручную проверку",
	})
	AppealsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_appeals_total",
		Help: "Поданные апелляции по результату приёма",
	}, []string{"accepted"})
	StoreErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "moderation_store_errors_total",
		Help: "Ошибки сохранения записей в хранилище",
	})
	ExecutorErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_executor_errors_total",
		Help: "Ошибки применения решений на стороне платформы",
	}, []string{"action"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		PipelineDuration,
		PipelineTotal,
		AnalyzerErrors,
		AnalyzerDuration,
		DecisionsTotal,
		ReviewEnqueued,
		AppealsTotal,
		StoreErrors,
		ExecutorErrors,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveAnalyzer записывает длительность и ошибку одного анализатора.
func ObserveAnalyzer(name string, start time.Time, err error) {
	AnalyzerDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		AnalyzerErrors.WithLabelValues(name).Inc()
	}
}

// ObserveDecision записывает итоговое решение конвейера.
func ObserveDecision(action, risk string) {
	DecisionsTotal.WithLabelValues(action, risk).Inc()
}
