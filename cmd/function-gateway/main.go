// cmd/function-gateway/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crm-functions/internal/app"
	"crm-functions/internal/common/auth"
	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/config"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting function gateway",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := observability.New(observability.ConfigFrom(cfg), log)
	defer obs.Shutdown()

	rt, err := app.Open(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("backends unavailable", zap.Error(err))
	}
	defer rt.Close()

	if err := rt.Index.EnsureIndex(ctx); err != nil {
		zapLog.Warn("search index not ready, chat search will fail", zap.Error(err))
	}

	gateway := callable.NewGateway(callable.Options{
		Config:        cfg,
		Verifier:      auth.NewVerifier(cfg.Auth),
		Roles:         rt.Store,
		Observability: obs,
		Logger:        log,
	})
	if err := gateway.Register(app.Functions(rt.Dependencies)...); err != nil {
		zapLog.Fatal("function registration failed", zap.Error(err))
	}
	for _, d := range gateway.Descriptors() {
		fc := config.GetFunctionConfig(cfg, d.Name)
		zapLog.Info("function registered",
			zap.String("function", d.Name),
			zap.Bool("enabled", fc.Enabled),
			zap.Int("timeout_ms", fc.Timeout),
		)
	}

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      gateway.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	go func() {
		zapLog.Info("Gateway listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Gateway server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, draining requests...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error during shutdown", zap.Error(err))
	}
	zapLog.Info("Function gateway stopped gracefully")
}
