package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"guide-bot/handler"
	"guide-bot/internal/config"
	"guide-bot/internal/content"
	"guide-bot/internal/integrations/paramstore"
	"guide-bot/internal/integrations/telegram"
	"guide-bot/internal/repository"
	"guide-bot/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	if err := cfg.RequireLambda(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	secret, err := paramstore.WebhookSecret(ctx, ssmClient, cfg.ParamPrefix)
	if err != nil {
		slog.Error("failed to load webhook secret", "err", err)
		os.Exit(1)
	}

	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.NamespaceTables)
	if err != nil {
		slog.Error("failed to create store client", "err", err)
		os.Exit(1)
	}
	repo, err := content.New(store)
	if err != nil {
		slog.Error("failed to create content repository", "err", err)
		os.Exit(1)
	}

	bot, err := telegram.NewClient(ssmClient, cfg.ParamPrefix,
		telegram.WithEndpoint(cfg.Telegram.APIEndpoint),
		telegram.WithHTTPClient(&http.Client{Timeout: cfg.Telegram.HTTPTimeout}),
		telegram.WithControlKey(cfg.Telegram.ControlKey),
	)
	if err != nil {
		slog.Error("failed to create Telegram client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	dispatcher, err := usecase.NewDispatcher(repo, bot, cfg.AdminIDs, usecase.Texts{
		SupportContact: cfg.Texts.SupportContact,
		SupportLink:    cfg.Texts.SupportLink,
		PriceCurrency:  cfg.Texts.PriceCurrency,
		DefaultWelcome: cfg.Texts.DefaultWelcomeText,
	})
	if err != nil {
		slog.Error("failed to create dispatcher", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(dispatcher, handler.Config{
		Path:         cfg.Webhook.Path,
		SecretHeader: cfg.Webhook.SecretHeader,
		Secret:       secret,
	})
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	slog.Info("starting", "namespaces", cfg.Namespaces(), "admins", len(cfg.AdminIDs))
	lambda.Start(h.Handle)
}
