// Package pdftext recovers plain text from confirmation files. PDFs go through
// pdftotext; .txt files are read as-is.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marwinsteiner/trade-accounting/constants"
)

// Extraction methods reported in Result.Method.
const (
	MethodPDFText = "pdf-text"
	MethodPlain   = "plain"
)

// ErrNoText is returned when a document yields only whitespace.
var ErrNoText = errors.New("document contains no text")

type Config struct {
	Pdftotext string        // binary name or absolute path; if empty -> "pdftotext"
	MaxPages  int           // 0 = no limit
	Timeout   time.Duration // per document; 0 = no limit
}

type Result struct {
	Text     string
	Pages    int
	Method   string
	Duration time.Duration
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// WithRunner returns a copy of e that executes commands through r.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	cp := *e
	cp.runner = r
	return &cp
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	ext := constants.NormalizeExt(filepath.Ext(path))
	var (
		res Result
		err error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.TEXT:
		res, err = e.extractPlain(path)
	default:
		e.logger.Error("unsupported extension", "path", path, "extension", ext)
		return Result{}, fmt.Errorf("unsupported extension: %q", ext)
	}
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}
	if strings.TrimSpace(res.Text) == "" {
		return res, fmt.Errorf("%s: %w", path, ErrNoText)
	}
	e.logger.Debug("text extracted", "path", path, "method", res.Method, "pages", res.Pages, "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, e.logger, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		if msg := strings.TrimSpace(string(errb)); msg != "" {
			return Result{Method: MethodPDFText}, fmt.Errorf("pdftotext %s: %w: %s", path, err, msg)
		}
		return Result{Method: MethodPDFText}, fmt.Errorf("pdftotext %s: %w", path, err)
	}

	pages := splitPages(string(out))
	if e.cfg.MaxPages > 0 && len(pages) > e.cfg.MaxPages {
		pages = pages[:e.cfg.MaxPages]
	}
	return Result{
		Text:   strings.Join(pages, "\n"),
		Pages:  len(pages),
		Method: MethodPDFText,
	}, nil
}

func (e *Extractor) extractPlain(path string) (Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Result{Method: MethodPlain}, err
	}
	text := string(b)
	return Result{Text: text, Pages: len(splitPages(text)), Method: MethodPlain}, nil
}

// splitPages cuts pdftotext output on form feeds. The trailing feed pdftotext
// writes after the last page does not start a new page.
func splitPages(text string) []string {
	text = strings.TrimSuffix(text, "\f")
	return strings.Split(text, "\f")
}
