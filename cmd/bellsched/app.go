package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"bellsched/internal/ai"
	"bellsched/internal/config"
	"bellsched/internal/ics"
	"bellsched/internal/importer"
	appLog "bellsched/internal/log"
	"bellsched/internal/model"
	"bellsched/internal/store"
	"bellsched/internal/web"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	year     model.SchoolYear
	kv       store.KV
	days     *store.Days
	pages    *web.PageCache
	importer *importer.Importer
	logFile  io.Closer
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(flags.envFile); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
		cfg.Normalize()
	}
	return cfg, cfg.Validate()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	logOpts := appLog.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}
	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o750); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logOpts.File = f
		a.logFile = f
	}
	appLog.Setup(logOpts)

	a.year, err = cfg.SchoolYearWindow()
	if err != nil {
		return nil, err
	}

	if cfg.Redis.URL != "" {
		kv, err := store.OpenRedis(ctx, cfg.Redis.URL, cfg.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		a.kv = kv
	} else {
		appLog.Warn("no redis URL configured; using in-memory store")
		a.kv = store.NewMemoryKV()
	}
	a.days = store.NewDays(a.kv, a.year.Location())
	a.pages = web.NewPageCache()

	gen := ai.NewOpenAIClient(ai.ClientConfig{
		BaseURL:  cfg.AI.BaseURL,
		Model:    cfg.AI.Model,
		APIKey:   cfg.AI.APIKey,
		Timeout:  cfg.AI.Timeout,
		JSONMode: cfg.AI.JSONMode,
	})
	inferer := ai.NewInferer(gen, store.NewLLMCache(a.kv), ai.WithMaxRetries(cfg.AI.MaxRetries))

	invalidators := importer.Invalidators{a.pages}
	if cfg.Invalidation.WebhookURL != "" {
		invalidators = append(invalidators, &importer.WebhookInvalidator{
			URL:   cfg.Invalidation.WebhookURL,
			Token: cfg.Invalidation.Token,
		})
	}

	a.importer = importer.New(importer.Config{
		CalendarURL: cfg.CalendarURL,
		SchoolYear:  a.year,
	}, a.kv, ics.NewFetcher(30*time.Second, cfg.ICSCacheDir), inferer, invalidators)

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"school_year", cfg.SchoolYear.Start+".."+cfg.SchoolYear.End,
		"redis", cfg.Redis.URL != "",
		"ai_model", cfg.AI.Model,
		"webhook", cfg.Invalidation.WebhookURL != "",
	)
	return a, nil
}

func (a *app) Close() error {
	err := a.kv.Close()
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
	return err
}
