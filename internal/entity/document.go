package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/marwinsteiner/trade-accounting/constants"
)

// Document is one confirmation file seen by the ingestor.
type Document struct {
	ID           uuid.UUID `json:"id"`
	SourcePath   string    `json:"source_path"`
	ContentHash  []byte    `json:"content_hash"`
	Filename     string    `json:"filename"`
	FileExt      string    `json:"file_ext"`
	FileSize     int64     `json:"file_size"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// DocumentOutcome is the stored result of processing a Document.
type DocumentOutcome struct {
	DocumentID   uuid.UUID                `json:"document_id"`
	RunID        uuid.UUID                `json:"run_id"`
	SourcePath   string                   `json:"source_path"`
	ContentHash  []byte                   `json:"content_hash"`
	Status       constants.DocumentStatus `json:"status"`
	OrderID      *string                  `json:"order_id,omitempty"`
	ErrorMessage *string                  `json:"error_message,omitempty"`
	SkippedLegs  int                      `json:"skipped_legs"`
	ProcessedAt  time.Time                `json:"processed_at"`
}
