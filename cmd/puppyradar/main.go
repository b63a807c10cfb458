package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/puppyradar/internal/config"
	dbRedis "github.com/kailas-cloud/puppyradar/internal/db/redis"
	"github.com/kailas-cloud/puppyradar/internal/domain"
	logpkg "github.com/kailas-cloud/puppyradar/internal/logger"
	"github.com/kailas-cloud/puppyradar/internal/metrics"
	sessionrepo "github.com/kailas-cloud/puppyradar/internal/repository/session"
	chiTransport "github.com/kailas-cloud/puppyradar/internal/transport/chi"
	"github.com/kailas-cloud/puppyradar/internal/transport/dogsapi"
	healthuc "github.com/kailas-cloud/puppyradar/internal/usecase/health"
	matchuc "github.com/kailas-cloud/puppyradar/internal/usecase/match"
	searchuc "github.com/kailas-cloud/puppyradar/internal/usecase/search"
	sessionuc "github.com/kailas-cloud/puppyradar/internal/usecase/session"
	"github.com/kailas-cloud/puppyradar/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	build := version.Current()
	logger, err := logpkg.NewLogger(env, logpkg.Options{
		Level:  cfg.Logging.Level,
		Fields: map[string]any{"version": build.Version},
	})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting puppyradar server",
		zap.Object("build", build),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("dogs_api", cfg.DogsAPI.BaseURL),
	)

	// Redis and Valkey speak the same protocol; one rueidis store serves both drivers.
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		DB:         cfg.Database.DB,
		Standalone: cfg.Database.Standalone,
	})
	if err != nil {
		logger.Fatal("Failed to create session store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Session store not ready", zap.Error(err))
	}
	logger.Info("Connected to session store")

	// Register upstream metrics explicitly (no init())
	metrics.RegisterUpstreamMetrics()
	metrics.SetBuildInfo(build)

	dogs := dogsapi.NewClient(&dogsapi.Config{
		BaseURL:    cfg.DogsAPI.BaseURL,
		Timeout:    time.Duration(cfg.DogsAPI.TimeoutSec) * time.Second,
		CookieName: cfg.DogsAPI.CookieName,
		Logger:     logger,
	})

	searchCfg := domain.SearchConfig{
		PageSize: cfg.Search.PageSize,
		AgeMin:   cfg.Search.AgeMin,
		AgeMax:   cfg.Search.AgeMax,
	}
	sessionTTL := time.Duration(cfg.Session.TTLMinutes) * time.Minute

	// Use cases
	sessionSvc := sessionuc.New(sessionrepo.New(store, sessionTTL), dogs, logger)
	registry := searchuc.NewRegistry(dogs, sessionSvc, searchCfg, cfg.Session.MaxControllers, logger)
	sessionSvc.OnLogout(registry.Drop)
	matchSvc := matchuc.New(dogs, logger)
	healthSvc := healthuc.New(store, dogs)

	server := chiTransport.NewServer(sessionSvc, registry, matchSvc, healthSvc, chiTransport.Options{
		CookieName:   cfg.Session.CookieName,
		CookieMaxAge: int(sessionTTL.Seconds()),
		SecureCookie: cfg.Session.SecureCookie,
		Search:       searchCfg,
	}, logger)

	r := chi.NewRouter()
	r.Use(recoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	r.Use(chiTransport.SessionAuthMiddleware(sessionSvc, cfg.Session.CookieName))
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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	logger.Info("Server stopped gracefully")
}

// recoverer turns a panic into a 500; JSON for API calls, plain text for pages.
func recoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					if strings.HasPrefix(r.URL.Path, "/api/") ||
						strings.Contains(r.Header.Get("Accept"), "application/json") {
						w.Header().Set("Content-Type", "application/json")
						w.WriteHeader(http.StatusInternalServerError)
						_ = json.NewEncoder(w).Encode(map[string]string{
							"code":    "internal_error",
							"message": "internal error",
						})
						return
					}
					http.Error(w, "internal error", http.StatusInternalServerError)
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
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
