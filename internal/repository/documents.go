package repository

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/marwinsteiner/trade-accounting/constants"
	"github.com/marwinsteiner/trade-accounting/internal/common"
	"github.com/marwinsteiner/trade-accounting/internal/entity"
)

// DocumentRepository keeps the latest processing outcome per content hash.
type DocumentRepository interface {
	Record(ctx context.Context, doc entity.Document, outcome entity.DocumentOutcome) error
	GetByHash(ctx context.Context, hash []byte) (*entity.DocumentOutcome, error)
}

type documentRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepo{db: db, logger: logger}
}

func (r *documentRepo) Record(ctx context.Context, doc entity.Document, outcome entity.DocumentOutcome) error {
	if len(doc.ContentHash) == 0 {
		return common.NewAppError("INVALID_DOCUMENT", "content hash is required", common.ErrInvalidInput)
	}
	id := outcome.DocumentID
	if id == uuid.Nil {
		id = doc.ID
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	processedAt := outcome.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	q, args := r.db.builder().Insert(tableDocuments).
		Columns("id", "content_hash", "source_path", "filename", "file_ext", "file_size",
			"status", "order_id", "error_message", "skipped_legs", "run_id", "processed_at").
		Values(
			id.String(),
			hex.EncodeToString(doc.ContentHash),
			doc.SourcePath,
			doc.Filename,
			doc.FileExt,
			doc.FileSize,
			string(outcome.Status),
			nullString(outcome.OrderID),
			nullString(outcome.ErrorMessage),
			outcome.SkippedLegs,
			outcome.RunID.String(),
			processedAt.UTC().Format(utcLayout),
		).
		OnConflict(entsql.ConflictColumns("content_hash"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.db.drv.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to record document outcome", "source_path", doc.SourcePath, "status", outcome.Status, "error", err)
		return fmt.Errorf("record document: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByHash(ctx context.Context, hash []byte) (*entity.DocumentOutcome, error) {
	b := r.db.builder()
	key := hex.EncodeToString(hash)
	q, args := b.Select("id", "content_hash", "source_path", "status", "order_id", "error_message", "skipped_legs", "run_id", "processed_at").
		From(b.Table(tableDocuments)).
		Where(entsql.EQ("content_hash", key)).
		Query()

	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("document %s: %w", key, common.ErrNotFound)
	}

	var (
		id, hashHex, runID, processedAt, status string
		orderID, errMsg                         sql.NullString
		out                                     entity.DocumentOutcome
	)
	if err := rows.Scan(&id, &hashHex, &out.SourcePath, &status, &orderID, &errMsg, &out.SkippedLegs, &runID, &processedAt); err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	var err error
	if out.DocumentID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("document id: %w", err)
	}
	if out.RunID, err = uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("document run id: %w", err)
	}
	if out.ContentHash, err = hex.DecodeString(hashHex); err != nil {
		return nil, fmt.Errorf("document hash: %w", err)
	}
	if out.ProcessedAt, err = time.Parse(time.RFC3339Nano, processedAt); err != nil {
		return nil, fmt.Errorf("document processed_at: %w", err)
	}
	out.Status = constants.DocumentStatus(status)
	if orderID.Valid {
		out.OrderID = &orderID.String
	}
	if errMsg.Valid {
		out.ErrorMessage = &errMsg.String
	}
	return &out, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
