// Command server is the process entrypoint: it wires internal/config,
// internal/store, internal/imagegen, internal/game, internal/gateway, and
// internal/httpapi into one *http.Server and runs it until SIGINT/SIGTERM,
// then drains in-flight requests before exiting. Grounded on the MUD-Engine
// example's cmd/server/main.go shutdown sequence (signal.Notify on
// SIGINT/SIGTERM, a buffered shutdown context) generalized from its
// stdlib-logger style to zap, matching the rest of this module's logging.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cmacnamara/prompt-guessr/internal"
	"github.com/cmacnamara/prompt-guessr/internal/config"
	"github.com/cmacnamara/prompt-guessr/internal/game"
	"github.com/cmacnamara/prompt-guessr/internal/gateway"
	"github.com/cmacnamara/prompt-guessr/internal/httpapi"
	"github.com/cmacnamara/prompt-guessr/internal/imagegen"
	"github.com/cmacnamara/prompt-guessr/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	redisClient, err := store.NewClient(cfg.RedisAddr)
	if err != nil {
		logger.Fatal("build redis client", zap.Error(err))
	}

	readyCtx, cancelReady := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.WaitReady(readyCtx, redisClient, 500*time.Millisecond); err != nil {
		cancelReady()
		logger.Fatal("redis not ready", zap.Error(err))
	}
	cancelReady()
	logger.Info("redis ready", zap.String("addr", cfg.RedisAddr))

	kvStore := store.New(redisClient, logger)

	imagePort, err := buildImagePort(cfg)
	if err != nil {
		logger.Fatal("build image generation port", zap.Error(err))
	}

	service := game.NewService(kvStore, imagePort, logger)
	gw := gateway.New(service, logger)
	httpHandler := httpapi.New(service, kvStore, imagePort, cfg.CORSOrigins, cfg.IsProduction(), logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", gw)
	mux.Handle("/", httpHandler)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("mode", cfg.Mode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := redisClient.Close(); err != nil {
		logger.Warn("redis close failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(cfg config.Config) *zap.Logger {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	return logger
}

// buildImagePort registers every backend this process knows how to
// construct and hands the configured primary/fallback pair to
// imagegen.NewPort. A backend whose credentials are unset is still
// registered — it only becomes reachable if IMAGE_PROVIDER or
// FALLBACK_PROVIDER names it. NewPort checks only that those names are
// registered; missing credentials are not checked at startup and surface
// on the first generation call.
func buildImagePort(cfg config.Config) (*imagegen.Port, error) {
	backends := map[internal.ImageProvider]imagegen.Backend{
		internal.ProviderMock:        imagegen.NewMockBackend(time.Now().UnixNano()),
		internal.ProviderOpenAI:      imagegen.NewOpenAIBackend(cfg.OpenAIAPIKey),
		internal.ProviderHuggingFace: imagegen.NewHuggingFaceBackend(cfg.HuggingFaceAPIKey, cfg.HuggingFaceModel),
	}

	return imagegen.NewPort(backends, imagegen.Config{
		Provider:         cfg.ImageProvider,
		EnableFallback:   cfg.EnableFallback,
		FallbackProvider: cfg.FallbackProvider,
	})
}
