package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/marwinsteiner/trade-accounting/internal/common"
	"github.com/marwinsteiner/trade-accounting/internal/core"
	"github.com/marwinsteiner/trade-accounting/internal/core/normalize"
	"github.com/marwinsteiner/trade-accounting/internal/core/pdftext"
	"github.com/marwinsteiner/trade-accounting/internal/export"
)

func main() {
	var (
		asJSON    = flag.Bool("json", false, "print the extracted trade record instead of normalized text")
		pdftotext = flag.String("pdftotext", "pdftotext", "pdftotext binary")
		maxPages  = flag.Int("max-pages", 0, "only read the first N pages (0 = all)")
		level     = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()

	logger := common.NewLogger(common.LogConfig{Level: *level, Format: "text"}, os.Stderr)
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runextract [-json] <confirmation.pdf|.txt>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	extractor := pdftext.NewExtractor(pdftext.Config{Pdftotext: *pdftotext, MaxPages: *maxPages}, logger)
	res, err := extractor.Extract(ctx, path)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err)
		os.Exit(1)
	}
	logger.Info("text extraction OK",
		"method", res.Method,
		"pages", res.Pages,
		"bytes", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)

	if !*asJSON {
		fmt.Println(normalize.Normalize(res.Text))
		return
	}

	out, err := core.NewProcessor(nil, logger).ProcessText(ctx, res.Text)
	if err != nil {
		logger.Error("trade extraction failed", "path", path, "error", err)
		os.Exit(1)
	}
	rec := export.NewTradeRecord(out.Trade)
	if err := export.ValidateRecord(rec); err != nil {
		logger.Error("record failed validation", "order_id", rec.OrderID, "error", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		logger.Error("encode record", "error", err)
		os.Exit(1)
	}
}
