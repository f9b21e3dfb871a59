package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/marwinsteiner/trade-accounting/internal/export"
)

// DirPublisher writes each record to <dir>/trade_<order_id>.json.
type DirPublisher struct {
	dir    string
	logger *slog.Logger
}

func NewDirPublisher(dir string, logger *slog.Logger) (*DirPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		return nil, fmt.Errorf("publish: output dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("publish: create %s: %w", dir, err)
	}
	return &DirPublisher{dir: dir, logger: logger}, nil
}

func (p *DirPublisher) Publish(ctx context.Context, rec export.TradeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := encode(rec)
	if err != nil {
		return err
	}

	path := filepath.Join(p.dir, ObjectName(rec.OrderID))
	// write a private temp file then rename so readers never see a partial file
	// and concurrent publishes of one order never share a temp path
	if err := p.writeAtomic(path, b); err != nil {
		return err
	}

	p.logger.Debug("publish.dir.ok", "order_id", rec.OrderID, "path", path)
	return nil
}

func (p *DirPublisher) writeAtomic(path string, b []byte) (err error) {
	f, err := os.CreateTemp(p.dir, "trade_*.tmp")
	if err != nil {
		return fmt.Errorf("publish: create temp in %s: %w", p.dir, err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("publish: write %s: %w", tmp, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("publish: close %s: %w", tmp, err)
	}
	// CreateTemp opens 0600
	if err = os.Chmod(tmp, 0o644); err != nil {
		return fmt.Errorf("publish: chmod %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish: rename %s: %w", path, err)
	}
	return nil
}
