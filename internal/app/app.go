// Package app wires configuration, storage, the syllabus catalog and the
// tracker together for the server and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/prep-tracker/internal/arena"
	"github.com/p-n-ai/prep-tracker/internal/chat"
	"github.com/p-n-ai/prep-tracker/internal/curriculum"
	"github.com/p-n-ai/prep-tracker/internal/platform/config"
	"github.com/p-n-ai/prep-tracker/internal/storage"
	"github.com/p-n-ai/prep-tracker/internal/tracker"
)

// TelegramChannel is the gateway name of the Telegram channel.
const TelegramChannel = "telegram"

// App holds the long-lived components of one process.
type App struct {
	Config  *config.Config
	Backend *storage.Backend
	Catalog *curriculum.Catalog
	Tracker *tracker.Tracker
	Arena   *arena.Runner
}

// Open loads the catalog, opens the configured store and rehydrates the
// tracker from it.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	catalog, err := curriculum.NewLoader(cfg.CurriculumPath)
	if err != nil {
		return nil, fmt.Errorf("loading syllabus: %w", err)
	}

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}

	var events tracker.EventLogger = tracker.NopEventLogger{}
	if backend.DB != nil {
		pg, err := tracker.NewPostgresEventLogger(ctx, backend.DB.Pool)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("creating event log: %w", err)
		}
		events = pg
	}

	t, err := tracker.New(tracker.Config{
		Catalog: catalog,
		Store:   backend.Store,
		Events:  events,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}

	slog.Info("app ready",
		"store", cfg.Store.Backend,
		"subjects", len(catalog.Subjects()),
		"tests", len(catalog.Tests()),
		"problems", len(catalog.Problems()),
	)

	return &App{
		Config:  cfg,
		Backend: backend,
		Catalog: catalog,
		Tracker: t,
		Arena:   arena.New(cfg.Arena.MaxSteps, time.Duration(cfg.Arena.TimeoutSeconds)*time.Second),
	}, nil
}

// Close releases the store's connections.
func (a *App) Close() {
	a.Backend.Close()
}

// Gateway returns a chat gateway with the Telegram channel registered, or nil
// when no bot token is configured.
func (a *App) Gateway(commands ...chat.BotCommand) (*chat.Gateway, error) {
	if !a.Config.HasTelegram() {
		return nil, nil
	}
	tg, err := chat.NewTelegramChannel(a.Config.Telegram, commands...)
	if err != nil {
		return nil, err
	}
	gw := chat.NewGateway()
	gw.Register(TelegramChannel, tg)
	return gw, nil
}
