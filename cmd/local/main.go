package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"guide-bot/handler"
	"guide-bot/internal/config"
	"guide-bot/internal/content"
	"guide-bot/internal/integrations/telegram"
	"guide-bot/internal/repository"
	"guide-bot/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("local runner failed", "err", err)
		os.Exit(1)
	}
}

// run serves the webhook over plain HTTP against an in-memory store.
func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if cfg.Local.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	if cfg.Local.WebhookSecret == "" {
		return errors.New("WEBHOOK_SECRET is required")
	}

	namespaces := cfg.Namespaces()
	if len(namespaces) == 0 {
		namespaces = []string{content.NamespaceGuides, content.NamespaceSales, content.NamespaceUsers}
	}
	repo, err := content.New(repository.NewMemory(namespaces...))
	if err != nil {
		return err
	}

	bot, err := telegram.NewClient(nil, "",
		telegram.WithToken(cfg.Local.BotToken),
		telegram.WithEndpoint(cfg.Telegram.APIEndpoint),
		telegram.WithHTTPClient(&http.Client{Timeout: cfg.Telegram.HTTPTimeout}),
		telegram.WithControlKey(cfg.Telegram.ControlKey),
	)
	if err != nil {
		return err
	}

	dispatcher, err := usecase.NewDispatcher(repo, bot, cfg.AdminIDs, usecase.Texts{
		SupportContact: cfg.Texts.SupportContact,
		SupportLink:    cfg.Texts.SupportLink,
		PriceCurrency:  cfg.Texts.PriceCurrency,
		DefaultWelcome: cfg.Texts.DefaultWelcomeText,
	})
	if err != nil {
		return err
	}
	h, err := handler.NewHandler(dispatcher, handler.Config{
		Path:         cfg.Webhook.Path,
		SecretHeader: cfg.Webhook.SecretHeader,
		Secret:       cfg.Local.WebhookSecret,
	})
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/*", h)

	srv := &http.Server{Addr: cfg.Local.ListenAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Local.ListenAddr, "webhook_path", cfg.Webhook.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
