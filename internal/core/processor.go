package core

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/marwinsteiner/trade-accounting/constants"
	"github.com/marwinsteiner/trade-accounting/internal/common"
	"github.com/marwinsteiner/trade-accounting/internal/core/extract"
	"github.com/marwinsteiner/trade-accounting/internal/core/normalize"
	"github.com/marwinsteiner/trade-accounting/internal/core/pdftext"
	"github.com/marwinsteiner/trade-accounting/internal/entity"
	"github.com/marwinsteiner/trade-accounting/internal/export"
	"github.com/marwinsteiner/trade-accounting/internal/publish"
	"github.com/marwinsteiner/trade-accounting/internal/repository"
)

// TextSource recovers the raw text of a document.
type TextSource interface {
	Extract(ctx context.Context, path string) (pdftext.Result, error)
}

// Outcome is what happened to one document.
type Outcome struct {
	Status  constants.DocumentStatus
	OrderID string
	Trade   *entity.Trade
	Skipped []*extract.InvalidLegError
}

// Processor runs one document through text recovery, normalization and
// extraction, then persists and publishes the trade. Storage and publishing
// are optional.
type Processor struct {
	logger    *slog.Logger
	text      TextSource
	trades    repository.TradeRepository
	docs      repository.DocumentRepository
	publisher publish.Publisher
	force     bool
	runID     uuid.UUID
	now       func() time.Time
}

type Option func(*Processor)

func WithTradeRepository(r repository.TradeRepository) Option {
	return func(p *Processor) { p.trades = r }
}

func WithDocumentRepository(r repository.DocumentRepository) Option {
	return func(p *Processor) { p.docs = r }
}

func WithPublisher(pub publish.Publisher) Option {
	return func(p *Processor) { p.publisher = pub }
}

// WithForce reprocesses documents whose content hash was already parsed.
func WithForce(force bool) Option {
	return func(p *Processor) { p.force = force }
}

func WithRunID(id uuid.UUID) Option {
	return func(p *Processor) { p.runID = id }
}

func NewProcessor(text TextSource, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger: logger,
		text:   text,
		runID:  uuid.New(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Processor) RunID() uuid.UUID { return p.runID }

// ProcessText normalizes and extracts a trade from raw text. Every skipped
// leg is logged at WARN with its segment.
func (p *Processor) ProcessText(ctx context.Context, raw string) (extract.Result, error) {
	log := common.LoggerWith(ctx, p.logger)
	res, err := extract.Extract(normalize.Normalize(raw))
	p.logSkipped(log, res.Skipped)
	var nv *extract.NoValidLegsError
	if errors.As(err, &nv) {
		p.logSkipped(log, nv.Skipped)
	}
	return res, err
}

func (p *Processor) logSkipped(log *slog.Logger, skipped []*extract.InvalidLegError) {
	for _, s := range skipped {
		log.Warn("processor.leg.skipped", "segment", s.Segment, "reason", s.Reason)
	}
}

// ProcessFile processes one ingested document end to end and records the
// outcome. A document whose hash was already parsed is SKIPPED unless the
// processor was built with WithForce.
func (p *Processor) ProcessFile(ctx context.Context, doc entity.Document) (Outcome, error) {
	ctx = common.WithRunID(ctx, p.runID.String())
	log := common.LoggerWith(ctx, p.logger).With("path", doc.SourcePath)
	start := p.now()

	if p.docs != nil && !p.force && len(doc.ContentHash) > 0 {
		prev, err := p.docs.GetByHash(ctx, doc.ContentHash)
		switch {
		case err == nil && prev.Status == constants.DocumentStatusParsed:
			out := Outcome{Status: constants.DocumentStatusSkipped}
			if prev.OrderID != nil {
				out.OrderID = *prev.OrderID
			}
			log.Info("processor.document.skipped",
				"hash", hex.EncodeToString(doc.ContentHash),
				"order_id", out.OrderID,
			)
			return out, nil
		case err != nil && !errors.Is(err, common.ErrNotFound):
			log.Error("processor.dedup.failed", "error", err)
			return Outcome{Status: constants.DocumentStatusFailed}, fmt.Errorf("dedup lookup: %w", err)
		}
	}

	out, err := p.process(ctx, doc)
	if err != nil {
		out.Status = constants.DocumentStatusFailed
		log.Error("processor.document.failed", "error", err)
	} else {
		out.Status = constants.DocumentStatusParsed
		log.Info("processor.document.ok",
			"order_id", out.OrderID,
			"legs", len(out.Trade.Legs),
			"skipped_legs", len(out.Skipped),
			"elapsed_ms", p.now().Sub(start).Milliseconds(),
		)
	}

	if recErr := p.record(ctx, doc, out, err); recErr != nil {
		log.Error("processor.record.failed", "error", recErr)
		err = errors.Join(err, recErr)
	}
	return out, err
}

func (p *Processor) process(ctx context.Context, doc entity.Document) (Outcome, error) {
	text, err := p.text.Extract(ctx, doc.SourcePath)
	if err != nil {
		return Outcome{}, fmt.Errorf("text: %w", err)
	}

	res, err := p.ProcessText(ctx, text.Text)
	out := Outcome{Trade: res.Trade, Skipped: res.Skipped}
	if err != nil {
		return out, fmt.Errorf("extract: %w", err)
	}
	out.OrderID = res.Trade.OrderID

	rec := export.NewTradeRecord(res.Trade)
	if err := export.ValidateRecord(rec); err != nil {
		return out, fmt.Errorf("record %s: %w", out.OrderID, err)
	}

	if p.trades != nil {
		if err := p.trades.Upsert(ctx, res.Trade, doc.SourcePath); err != nil {
			return out, fmt.Errorf("persist %s: %w", out.OrderID, err)
		}
	}
	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, rec); err != nil {
			return out, fmt.Errorf("publish %s: %w", out.OrderID, err)
		}
	}
	return out, nil
}

func (p *Processor) record(ctx context.Context, doc entity.Document, out Outcome, procErr error) error {
	if p.docs == nil || len(doc.ContentHash) == 0 {
		return nil
	}
	o := entity.DocumentOutcome{
		DocumentID:  doc.ID,
		RunID:       p.runID,
		SourcePath:  doc.SourcePath,
		ContentHash: doc.ContentHash,
		Status:      out.Status,
		SkippedLegs: len(out.Skipped),
		ProcessedAt: p.now().UTC(),
	}
	if out.OrderID != "" {
		id := out.OrderID
		o.OrderID = &id
	}
	if procErr != nil {
		msg := procErr.Error()
		o.ErrorMessage = &msg
	}
	// recording must survive a cancelled job context
	return p.docs.Record(context.WithoutCancel(ctx), doc, o)
}
