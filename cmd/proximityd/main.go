package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Vishal01x/reflekt-proximity/internal/config"
	dbRedis "github.com/Vishal01x/reflekt-proximity/internal/db/redis"
	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
	logpkg "github.com/Vishal01x/reflekt-proximity/internal/logger"
	"github.com/Vishal01x/reflekt-proximity/internal/metrics"
	positionrepo "github.com/Vishal01x/reflekt-proximity/internal/repository/position"
	profilerepo "github.com/Vishal01x/reflekt-proximity/internal/repository/profile"
	vocabularyrepo "github.com/Vishal01x/reflekt-proximity/internal/repository/vocabulary"
	chiTransport "github.com/Vishal01x/reflekt-proximity/internal/transport/chi"
	discoveryuc "github.com/Vishal01x/reflekt-proximity/internal/usecase/discovery"
	healthuc "github.com/Vishal01x/reflekt-proximity/internal/usecase/health"
	publisheruc "github.com/Vishal01x/reflekt-proximity/internal/usecase/publisher"
	sessionuc "github.com/Vishal01x/reflekt-proximity/internal/usecase/session"
	trackeruc "github.com/Vishal01x/reflekt-proximity/internal/usecase/tracker"
	vocabularyuc "github.com/Vishal01x/reflekt-proximity/internal/usecase/vocabulary"
	"github.com/Vishal01x/reflekt-proximity/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting proximity API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register proximity metrics explicitly (no init())
	metrics.RegisterProximityMetrics()

	// Repositories
	posRepo := positionrepo.New(store).
		WithKeyPrefix(cfg.Storage.KeyPrefix).
		WithLogger(logger)
	profRepo := profilerepo.New(store).WithKeyPrefix(cfg.Storage.KeyPrefix)
	vocabRepo := vocabularyrepo.New(store).WithKeyPrefix(cfg.Storage.KeyPrefix)

	// Use case services shared across sessions
	engine := discoveryuc.NewEngine(posRepo, profRepo, discoveryuc.Options{
		CoalesceWindow:  cfg.Location.Coalesce(),
		RequeryInterval: cfg.Location.RequeryInterval(),
	}, logger)
	vocabCache := vocabularyuc.New(vocabRepo, logger)
	healthSvc := healthuc.New(store, vocabCache)

	// Per-session component factory; the server assigns session IDs
	pubOpts := publisheruc.Options{
		Interval:       cfg.Location.PublishInterval(),
		MinMoveMeters:  cfg.Location.MinMoveMeters,
		StaleRepublish: cfg.Location.StaleRepublish(),
	}
	coordOpts := sessionuc.Options{TeardownGrace: cfg.Location.TeardownGrace()}

	newSession := func(userID string) *sessionuc.Session {
		consent := sessionuc.NewConsentSwitch(location.ConsentState{})
		loc := &sessionuc.ReportedLocation{}
		pub := publisheruc.New(posRepo, loc, consent, pubOpts, logger)
		trk := trackeruc.New(posRepo, logger)
		coord := sessionuc.NewCoordinator(
			userID, sessionuc.EngineWatcher{Engine: engine}, trk, pub, posRepo, consent,
			coordOpts, logger,
		)
		return &sessionuc.Session{
			UserID:      userID,
			Coordinator: coord,
			Consent:     consent,
			Location:    loc,
		}
	}

	server := chiTransport.NewServer(newSession, vocabCache, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	server.CloseSessions()

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
