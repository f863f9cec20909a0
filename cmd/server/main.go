package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/prep-tracker/internal/app"
	"github.com/p-n-ai/prep-tracker/internal/bot"
	"github.com/p-n-ai/prep-tracker/internal/platform/config"
	"github.com/p-n-ai/prep-tracker/internal/platform/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	gw, err := a.Gateway(bot.Commands()...)
	if err != nil {
		slog.Error("failed to create chat gateway", "error", err)
		os.Exit(1)
	}
	if gw != nil {
		b := bot.New(a.Tracker)
		if err := gw.StartAll(ctx, b.Handler(ctx, gw)); err != nil {
			slog.Error("failed to start chat channels", "error", err)
			os.Exit(1)
		}
		defer gw.StopAll()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     newServer(a).routes(),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: /ws connections are long-lived.
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
