package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	certificatehandler "certledger/internal/certificate/handler"
	certificateservice "certledger/internal/certificate/service"
	"certledger/internal/certificate/store/ledger"
	"certledger/internal/jwtauth"
	"certledger/internal/keys"
	"certledger/internal/ocr"
	"certledger/internal/platform/audit"
	"certledger/internal/platform/config"
	"certledger/internal/platform/httpserver"
	"certledger/internal/platform/logger"
	"certledger/internal/platform/metrics"
	"certledger/internal/platform/middleware"
	platformredis "certledger/internal/platform/redis"
	sessionhandler "certledger/internal/session/handler"
	sessionservice "certledger/internal/session/service"
	sessionstore "certledger/internal/session/store"
	verificationhandler "certledger/internal/verification/handler"
	verificationservice "certledger/internal/verification/service"
	attemptstore "certledger/internal/verification/store/attempt"
	recordstore "certledger/internal/verification/store/record"
)

// main wires stores, services and handlers; business logic lives in the
// internal packages. Every infrastructure dependency is optional: without
// Postgres/Redis/Kafka the service runs fully in-memory for development.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	keyStore, err := keys.Load(cfg.IssuerKeyDir)
	if err != nil {
		log.Error("failed to load issuer keys", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	auditor := newAuditor(cfg, log)
	defer auditor.Close()

	ledgerStore, recordStore, attemptStore := newDurableStores(cfg, log)
	sessionStore, redisClient := newSessionStore(cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	jwtService := jwtauth.New(cfg.JWTSigningKey, "certledger", "certledger")
	extractor := ocr.NewClient(cfg.OCRBaseURL, cfg.OCRTimeout, m)

	certificates := certificateservice.New(ledgerStore, keyStore, log, m, auditor)
	sessions := sessionservice.New(sessionStore, log, auditor)
	verification := verificationservice.New(recordStore, attemptStore, sessions, extractor, keyStore, log, m, auditor)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(30 * time.Second))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	certificatehandler.New(certificates, log, jwtService).Register(router)
	sessionhandler.New(sessions, log).Register(router)
	router.Group(func(r chi.Router) {
		r.Use(sessionhandler.EnsureSession(sessions, log))
		verificationhandler.New(verification, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting certledger", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	if flusher, ok := auditor.(interface{ Flush(context.Context) error }); ok {
		_ = flusher.Flush(ctx)
	}
}

func newAuditor(cfg config.Config, log *slog.Logger) audit.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return audit.Noop{}
	}
	publisher, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic, log)
	if err != nil {
		log.Warn("kafka unavailable, audit disabled", "error", err)
		return audit.Noop{}
	}
	return publisher
}

// newDurableStores opens Postgres when configured and falls back to the
// in-memory stores otherwise. The memory record store gets seeded so a dev
// instance has something to verify against.
func newDurableStores(cfg config.Config, log *slog.Logger) (
	certificateservice.Ledger,
	verificationservice.RecordStore,
	verificationservice.AttemptStore,
) {
	if cfg.PostgresDSN == "" {
		memRecords := recordstore.NewInMemory()
		recordstore.SeedSampleRecords(memRecords)
		return ledger.NewInMemory(), memRecords, attemptstore.NewInMemory()
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err == nil {
		err = db.Ping()
	}
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	return ledger.NewPostgres(db), recordstore.NewPostgres(db), attemptstore.NewPostgres(db)
}

func newSessionStore(cfg config.Config, log *slog.Logger) (sessionservice.Store, *platformredis.Client) {
	client, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if client == nil {
		return sessionstore.NewInMemory(), nil
	}
	return sessionstore.NewRedis(client.Client, cfg.SessionTTL), client
}
