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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/recall-labs/recall/internal/config"
	logpkg "github.com/recall-labs/recall/internal/logger"
	"github.com/recall-labs/recall/internal/metrics"
	"github.com/recall-labs/recall/internal/repository/corpus"
	"github.com/recall-labs/recall/internal/repository/embcache"
	chiTransport "github.com/recall-labs/recall/internal/transport/chi"
	openaiTransport "github.com/recall-labs/recall/internal/transport/openai"
	chatuc "github.com/recall-labs/recall/internal/usecase/chat"
	healthuc "github.com/recall-labs/recall/internal/usecase/health"
	"github.com/recall-labs/recall/internal/version"
)

func main() {
	// .env is for local development; absence is fine.
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting recall chat server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
	)

	ctx := context.Background()

	connectCtx, cancelConnect := context.WithTimeout(ctx,
		time.Duration(cfg.Database.ReadinessTimeout)*time.Second)
	pool, err := corpus.NewPool(connectCtx, corpus.PoolConfig{
		URL:      cfg.Database.URL,
		MaxConns: int32(cfg.Database.MaxConns),
	})
	cancelConnect()
	if err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	defer pool.Close()
	repo := corpus.New(pool)
	logger.Info("Connected to database")

	// Register domain metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterChatMetrics()

	providerCfg := &openaiTransport.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Logger:  logger,
	}
	baseEmbedder := openaiTransport.NewEmbedder(
		providerCfg, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.EmbeddingDimensions,
	)
	completer := openaiTransport.NewCompleter(providerCfg, cfg.OpenAI.ChatModel)

	// Embedding cache is optional: no cache addrs means every query hits
	// the provider directly.
	var embedder chatuc.Embedder = baseEmbedder
	var cacheStore *embcache.RedisStore
	if len(cfg.Cache.Addrs) > 0 {
		cacheStore, err = embcache.NewRedisStore(embcache.RedisConfig{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
			TTL:      time.Duration(cfg.Cache.TTLHours) * time.Hour,
		})
		if err != nil {
			logger.Fatal("Failed to connect to embedding cache", zap.Error(err))
		}
		defer cacheStore.Close()
		embedder = embcache.New(
			baseEmbedder, cfg.OpenAI.EmbeddingModel, cacheStore,
			metrics.EmbeddingCacheTotal, logger,
		)
		logger.Info("Embedding cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	webChat := chatuc.New(embedder, repo, repo, completer, chatConfig(cfg, cfg.Chat.MatchThreshold), logger)
	webhookChat := chatuc.New(embedder, repo, repo, completer,
		chatConfig(cfg, cfg.Channels.Webhook.MatchThreshold), logger)

	var cachePinger healthuc.CachePinger
	if cacheStore != nil {
		cachePinger = cacheStore
	}
	healthSvc := healthuc.New(repo, cachePinger, baseEmbedder)

	server := chiTransport.NewServer(webChat, webhookChat, repo, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.RegisterRoutes(r)

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

	logger.Info("Server stopped gracefully")
}

// chatConfig maps the shared chat settings with one channel's threshold.
func chatConfig(cfg config.Config, threshold float64) chatuc.Config {
	return chatuc.Config{
		MatchThreshold:    threshold,
		MatchCount:        cfg.Chat.MatchCount,
		DisplayLimit:      cfg.Chat.DisplayLimit,
		MaxSources:        cfg.Chat.MaxSources,
		KeywordLimit:      cfg.Chat.KeywordLimit,
		RecencyLimit:      cfg.Chat.RecencyLimit,
		MaxAnswerTokens:   cfg.Chat.MaxAnswerTokens,
		Temperature:       cfg.Chat.Temperature,
		EmbedTimeout:      time.Duration(cfg.Chat.EmbedTimeoutSec) * time.Second,
		SearchTimeout:     time.Duration(cfg.Chat.SearchTimeoutSec) * time.Second,
		CompletionTimeout: time.Duration(cfg.Chat.CompletionTimeoutSec) * time.Second,
	}
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

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
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
