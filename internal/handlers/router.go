// Package handlers assembles the HTTP API surface
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	domainports "github.com/kevin07696/subscription-service/internal/domain/ports"
	planhandler "github.com/kevin07696/subscription-service/internal/handlers/plan"
	subscriptionhandler "github.com/kevin07696/subscription-service/internal/handlers/subscription"
	webhookhandler "github.com/kevin07696/subscription-service/internal/handlers/webhook"
	"github.com/kevin07696/subscription-service/internal/services/ports"
)

// NewRouter builds the API router with all endpoints mounted under /api/v1
func NewRouter(
	subscriptionService ports.SubscriptionService,
	planService ports.PlanService,
	webhookService ports.WebhookService,
	webhookParser webhookhandler.Parser,
	logger domainports.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		subscriptionhandler.NewHandler(subscriptionService, logger).Routes(r)
		planhandler.NewHandler(planService, logger).Routes(r)
		webhookhandler.NewHandler(webhookService, webhookParser, logger).Routes(r)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

func requestLogger(logger domainports.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				domainports.String("method", r.Method),
				domainports.String("path", r.URL.Path),
				domainports.Int("status", ww.Status()),
				domainports.String("duration", time.Since(start).String()),
				domainports.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
