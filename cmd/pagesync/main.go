// Command pagesync runs the segmentation and synchronization service:
// it opens documents in tabs, observes their mutations, and exposes the
// relay over HTTP (and optionally MCP over stdio).
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pagesync/fetch"
	"github.com/hazyhaar/pagesync/httpapi"
	"github.com/hazyhaar/pagesync/relay"
	"github.com/hazyhaar/pagesync/settings"
	"github.com/hazyhaar/pagesync/tab"
	"github.com/hazyhaar/pagesync/translate"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		listen     = flag.String("listen", "", "HTTP listen address (overrides config)")
		dbPath     = flag.String("db", "", "settings database path (overrides config)")
		logLevel   = flag.String("log-level", "", "debug, info, warn or error (overrides config)")
		mcpStdio   = flag.Bool("mcp", false, "serve MCP tools over stdio")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.SettingsDB = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *mcpStdio {
		cfg.MCP = true
	}

	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := settings.Open(cfg.SettingsDB, settings.WithLogger(logger))
	if err != nil {
		slog.Error("settings db", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	go store.Watch(ctx, settings.WatchOptions{}, func(s settings.Settings) {
		logger.Info("settings changed",
			"source", s.SourceLanguage, "target", s.TargetLanguage, "enabled", s.Enabled)
	})

	rel := relay.New(relay.WithLogger(logger))
	manager := tab.NewManager(rel, tab.Options{
		DebounceWindow: cfg.Observe.DebounceWindow,
		HoverDebounce:  cfg.Observe.HoverDebounce,
		FlashDuration:  cfg.Observe.FlashDuration,
	}, logger)
	defer manager.Close()

	loaderOpts := []fetch.Option{fetch.WithLogger(logger)}
	if cfg.Browser.Enabled {
		browser := fetch.NewBrowser(fetch.BrowserConfig{
			RemoteURL: cfg.Browser.RemoteURL,
			Logger:    logger,
		})
		defer browser.Close()
		loaderOpts = append(loaderOpts, fetch.WithBrowser(browser))
	}
	loader := fetch.New(loaderOpts...)

	for _, pageURL := range cfg.Pages {
		doc, err := loader.Load(ctx, pageURL)
		if err != nil {
			slog.Error("open page", "url", pageURL, "error", err)
			continue
		}
		ctrl := manager.Open(doc)
		logger.Info("opened page", "url", pageURL, "tab", ctrl.TabID())
	}

	if cfg.MCP {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "pagesync",
			Version: "1.0.0",
		}, nil)
		manager.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("mcp server", "error", err)
			}
		}()
	}

	var translator translate.Translator
	if cfg.Translator.Endpoint != "" {
		translator = translate.NewClient(cfg.Translator.Endpoint,
			translate.WithBatchSize(cfg.Translator.BatchSize),
			translate.WithClientLogger(logger))
	}

	api := httpapi.New(httpapi.Config{
		Manager:    manager,
		Relay:      rel,
		Settings:   store,
		Loader:     loader,
		Translator: translator,
		Logger:     logger,
	})
	defer api.Close()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		srv.Shutdown(shutCtx)
	}()

	logger.Info("pagesync listening", "addr", cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server", "error", err)
		os.Exit(1)
	}
}
