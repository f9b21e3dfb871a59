package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marwinsteiner/trade-accounting/internal/common"
	"github.com/marwinsteiner/trade-accounting/internal/core"
	"github.com/marwinsteiner/trade-accounting/internal/core/pdftext"
	"github.com/marwinsteiner/trade-accounting/internal/export"
	"github.com/marwinsteiner/trade-accounting/internal/ingest"
	"github.com/marwinsteiner/trade-accounting/internal/publish"
	repo "github.com/marwinsteiner/trade-accounting/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func parseDate(name, s string) *time.Time {
	if s == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		printError("Error: invalid --%s date format, use YYYY-MM-DD: %v\n", name, err)
		os.Exit(1)
	}
	return &parsed
}

func main() {
	var (
		configPath  = flag.String("config", "", "TOML config file (optional)")
		dir         = flag.String("dir", "", "directory of confirmation PDFs (overrides config)")
		out         = flag.String("out", "", "directory for trade_<order_id>.json records (overrides config)")
		xlsx        = flag.String("xlsx", "", "write an XLSX export of the stored trades to this path")
		fromStr     = flag.String("from", "", "XLSX export from date YYYY-MM-DD")
		toStr       = flag.String("to", "", "XLSX export to date YYYY-MM-DD")
		inmem       = flag.Bool("inmem", false, "use an in-memory SQLite database")
		force       = flag.Bool("force", false, "reprocess documents that were already parsed")
		concurrency = flag.Int("concurrency", 0, "documents processed in parallel (overrides config)")
	)
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if *dir != "" {
		cfg.Input.Dir = *dir
	}
	if *out != "" {
		cfg.Output.Dir = *out
	}
	if *xlsx != "" {
		cfg.Output.XLSXPath = *xlsx
	}
	if *concurrency > 0 {
		cfg.Batch.Concurrency = *concurrency
	}
	if *force {
		cfg.Batch.Force = true
	}
	if *inmem || cfg.Database.DSN == "" {
		cfg.Database.DSN = repo.InMemoryDSN
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	from := parseDate("from", *fromStr)
	to := parseDate("to", *toStr)

	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.OpenMigrated(ctx, repo.ConfigFrom(cfg.Database), logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	tradesRepo := repo.NewTradeRepository(db, logger)
	docsRepo := repo.NewDocumentRepository(db, logger)

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
		core.WithTradeRepository(tradesRepo),
		core.WithDocumentRepository(docsRepo),
		core.WithPublisher(publishers),
		core.WithForce(cfg.Batch.Force),
	)

	ingestor := ingest.NewFSIngestor(logger)
	logger.Info("starting ingestion", "dir", cfg.Input.Dir, "run_id", processor.RunID())
	results, stats, err := ingestor.ScanDirectory(ctx, cfg.Input.Dir, cfg.Input.SkipHidden)
	if err != nil {
		logger.Error("failed to scan directory", "error", err)
		os.Exit(1)
	}
	docs := ingest.Documents(results)
	logger.Info("ingestion complete",
		"documents", len(docs),
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated)

	summary := core.RunBatch(ctx, processor, docs, cfg.Batch.Concurrency)

	if cfg.Output.XLSXPath != "" {
		exportService := export.NewService(tradesRepo, logger)
		xlsxBytes, err := exportService.ExportTradesXLSX(ctx, from, to)
		if err != nil {
			logger.Error("failed to export trades", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(cfg.Output.XLSXPath, xlsxBytes, 0644); err != nil {
			logger.Error("failed to write output file", "error", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Documents found: %d\n", len(docs))
	fmt.Printf("- Parsed: %d (%d legs)\n", summary.Succeeded, summary.Legs)
	fmt.Printf("- Skipped (already parsed): %d\n", summary.Skipped)
	fmt.Printf("- Failures: %d\n", summary.Failed)
	for _, f := range summary.Failures {
		fmt.Printf("  - %s: %v\n", f.Path, f.Err)
	}
	if cfg.Output.Dir != "" {
		fmt.Printf("- Records: %s\n", cfg.Output.Dir)
	}
	if cfg.Output.XLSXPath != "" {
		fmt.Printf("- Workbook: %s\n", cfg.Output.XLSXPath)
	}
}
