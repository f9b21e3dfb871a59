package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marwinsteiner/trade-accounting/constants"
	"github.com/marwinsteiner/trade-accounting/internal/entity"
)

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> constants.AllowedExtensions
	logger      *slog.Logger
	now         func() time.Time
}

func NewFSIngestor(logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{logger: logger, now: time.Now}
}

func (i *FSIngestor) allowed(ext string) bool {
	if i.AllowedExts == nil {
		return AllowedExt(ext)
	}
	_, ok := i.AllowedExts[constants.NormalizeExt(ext)]
	return ok
}

// DescribePath hashes the file at path with SHA-256.
func (i *FSIngestor) DescribePath(ctx context.Context, path string) (entity.Document, error) {
	if err := ctx.Err(); err != nil {
		return entity.Document{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return entity.Document{}, fmt.Errorf("abs path: %w", err)
	}
	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !i.allowed(ext) {
		return entity.Document{}, fmt.Errorf("unsupported or missing extension: %q", ext)
	}

	f, err := os.Open(abs)
	if err != nil {
		return entity.Document{}, fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.logger.Warn("close file failed", "path", abs, "error", err)
		}
	}(f)

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return entity.Document{}, fmt.Errorf("hash: %w", err)
	}
	sum := h.Sum(nil)

	return entity.Document{
		ID:           uuid.New(),
		SourcePath:   abs,
		ContentHash:  sum,
		Filename:     filepath.Base(abs),
		FileExt:      ext,
		FileSize:     n,
		DiscoveredAt: i.now().UTC(),
	}, nil
}

// ScanDirectory walks root, skips hidden entries if requested and describes
// each allowed file. Unreadable entries are recorded and the walk continues.
func (i *FSIngestor) ScanDirectory(ctx context.Context, root string, skipHidden bool) ([]ScanResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []ScanResult
	var stats DirStats
	seen := make(map[string]struct{})

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, ScanResult{Document: entity.Document{SourcePath: path}, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !i.allowed(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		doc, err := i.DescribePath(ctx, path)
		if err != nil {
			i.logger.Warn("ingest.file.failed", "path", path, "error", err)
			results = append(results, ScanResult{Document: entity.Document{SourcePath: path}, Err: err.Error()})
			stats.Failed++
			return nil
		}

		key := hex.EncodeToString(doc.ContentHash)
		_, dup := seen[key]
		seen[key] = struct{}{}
		results = append(results, ScanResult{Document: doc, Deduplicated: dup})
		stats.Succeeded++
		if dup {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	i.logger.Info("ingest.scan.ok",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed)
	return results, stats, nil
}
