package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"HomeworkSentinel/internal/collector"
	"HomeworkSentinel/internal/config"
	"HomeworkSentinel/internal/logger"
	"HomeworkSentinel/internal/notifier"
	"HomeworkSentinel/internal/recorder"
	"HomeworkSentinel/internal/scheduler"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath, ".env")
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}

	logFile := logger.Setup(logger.Options{
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logFile.Close()
	log.Println("[INFO] HomeworkSentinel starting...")

	if !cfg.CheckTokens() {
		log.Fatalf("[FATAL] missing required environment variables: %s", strings.Join(cfg.MissingTokens(), ", "))
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init fetcher
	fetcher := collector.NewPracticumFetcher(cfg.Practicum.Endpoint, cfg.Practicum.Token, cfg.Proxy, cfg.Practicum.Timeout)
	fetcher.Debug = cfg.Debug
	log.Printf("[INFO] data source: %s", fetcher.Name())

	// Init Telegram notifier
	bot := notifier.NewTelegramBot(cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint, cfg.Proxy)
	tn := notifier.NewTelegramNotifier(bot, cfg.Telegram.ChatID, cfg.Telegram.RetryDelay)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	poller, err := scheduler.NewPoller(cfg, collector.NewCollector(fetcher), tn, rec)
	if err != nil {
		log.Fatalf("[FATAL] init poller: %v", err)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("[INFO] shutdown signal received, stopping...")
		cancel()
	}()

	log.Printf("[INFO] HomeworkSentinel is running (%s). Press Ctrl+C to stop.", cfg.Schedule.PollSpec)
	poller.Run(ctx)
	log.Println("[INFO] HomeworkSentinel stopped")
}
