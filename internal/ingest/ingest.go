// Package ingest discovers confirmation files on the local filesystem.
package ingest

import (
	"context"

	"github.com/marwinsteiner/trade-accounting/internal/entity"
)

// ScanResult is the per-file outcome of a directory scan. Err is set when the
// file could not be read; Document is valid otherwise.
type ScanResult struct {
	Document     entity.Document
	Deduplicated bool // same content as an earlier file in this scan
	Err          string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the batch and watcher paths depend on.
type Ingestor interface {
	// DescribePath hashes and describes a single file.
	DescribePath(ctx context.Context, path string) (entity.Document, error)
	// ScanDirectory describes all matching files under root.
	ScanDirectory(ctx context.Context, root string, skipHidden bool) ([]ScanResult, DirStats, error)
}

// Documents returns the readable, non-duplicate documents of a scan in walk order.
func Documents(results []ScanResult) []entity.Document {
	docs := make([]entity.Document, 0, len(results))
	for _, r := range results {
		if r.Err != "" || r.Deduplicated {
			continue
		}
		docs = append(docs, r.Document)
	}
	return docs
}
