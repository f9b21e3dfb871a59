package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marwinsteiner/trade-accounting/internal/async"
	"github.com/marwinsteiner/trade-accounting/internal/common"
	"github.com/marwinsteiner/trade-accounting/internal/core"
	"github.com/marwinsteiner/trade-accounting/internal/core/pdftext"
	"github.com/marwinsteiner/trade-accounting/internal/ingest"
	"github.com/marwinsteiner/trade-accounting/internal/publish"
	repo "github.com/marwinsteiner/trade-accounting/internal/repository"
	svc "github.com/marwinsteiner/trade-accounting/internal/server"
)

func main() {
	configPath := flag.String("config", "", "TOML config file (optional)")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConfig := repo.ConfigFrom(cfg.Database)
	if dbConfig.DSN == "" {
		logger.Warn("DB_URL not set, using in-memory store")
		dbConfig.DSN = repo.InMemoryDSN
	}
	db, err := repo.OpenMigrated(ctx, dbConfig, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	publishers, closePublishers, err := publish.FromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up publishers", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closePublishers(); err != nil {
			logger.Warn("failed to close publishers", "error", err)
		}
	}()

	text := pdftext.NewExtractor(pdftext.Config{
		Pdftotext: cfg.PDF.Binary,
		MaxPages:  cfg.PDF.MaxPages,
		Timeout:   cfg.PDF.Timeout,
	}, logger)
	processor := core.NewProcessor(text, logger,
		core.WithTradeRepository(repo.NewTradeRepository(db, logger)),
		core.WithDocumentRepository(repo.NewDocumentRepository(db, logger)),
		core.WithPublisher(publishers),
		core.WithForce(cfg.Batch.Force),
	)

	queue := async.NewProcessorQueue(processor, ingest.NewFSIngestor(logger), logger,
		async.WithWorkers(cfg.Batch.Concurrency),
		async.WithQueueSize(cfg.Batch.QueueSize),
		async.WithProcessTimeout(cfg.Batch.JobTimeout),
	)

	if cfg.Input.Watch {
		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Input.Dir},
			InitialScan: true,
			SkipHidden:  cfg.Input.SkipHidden,
			Debounce:    500 * time.Millisecond,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("failed to start watcher", "dir", cfg.Input.Dir, "error", err)
			os.Exit(1)
		}
		go func() {
			for err := range errs {
				logger.Warn("watcher error", "error", err)
			}
		}()
		go queue.Feed(ctx, paths)
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer, healthServer := svc.New(svc.NewExtractService(processor, logger), logger)

	logger.Info("tradesd listening", "addr", cfg.Server.GRPCAddr, "watch", cfg.Input.Watch, "dir", cfg.Input.Dir)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Batch.JobTimeout)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
}
