// Package main wires together the campaign crawl service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jh9098/gtoapp/internal/api"
	"github.com/jh9098/gtoapp/internal/campaign"
	"github.com/jh9098/gtoapp/internal/config"
	"github.com/jh9098/gtoapp/internal/crawl"
	"github.com/jh9098/gtoapp/internal/fetch"
	"github.com/jh9098/gtoapp/internal/logging"
	"github.com/jh9098/gtoapp/internal/metrics"
	"github.com/jh9098/gtoapp/internal/session"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	fetcher := fetch.NewCollyFetcher(fetch.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, logger.Named("fetch"))

	resolver := campaign.NewResolver(
		fetcher,
		cfg.Site.IndexURL,
		campaign.RetryPolicy{
			MaxAttempts: cfg.Directory.MaxAttempts,
			Delay:       cfg.DirectoryBackoff(),
		},
		logger.Named("directory"),
	)
	evaluator := campaign.NewEvaluator(fetcher, cfg.Site.CampaignURLTemplate, logger.Named("evaluator"))
	orchestrator := crawl.New(resolver, evaluator, cfg.Crawl.Prefetch, logger.Named("crawl"))
	registry := session.NewRegistry(orchestrator, logger.Named("session"))

	apiServer := api.NewServer(registry, cfg.IdlePing(), logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
