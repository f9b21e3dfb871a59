// Package export turns stored trades into outbound forms: the JSON
// TradeRecord handed to publishers and an XLSX workbook for accounting.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/marwinsteiner/trade-accounting/internal/entity"
)

// TradeLister is the read side the export needs.
type TradeLister interface {
	List(ctx context.Context, from, to *time.Time) ([]*entity.Trade, error)
}

// Service produces XLSX bytes for exports.
type Service struct {
	trades TradeLister
	logger *slog.Logger
}

func NewService(trades TradeLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{trades: trades, logger: logger}
}

const sheetTrades = "Trades"

var xlsxHeaders = []string{
	"Order ID",
	"Date Received",
	"Order Type",
	"Leg",
	"Action",
	"Quantity",
	"Symbol",
	"Expiration",
	"Option Type",
	"Strike",
	"Fill Price",
	"Fill Time",
}

// ExportTradesXLSX returns a workbook with one row per leg for trades
// received in the given window. Dates are whole UTC days, both ends inclusive;
// a nil bound is open.
func (s *Service) ExportTradesXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	var fromDate, toExclusive *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
		toExclusive = &t
	}

	trades, err := s.trades.List(ctx, fromDate, toExclusive)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	return s.WriteTradesXLSX(trades, start)
}

// WriteTradesXLSX renders trades without touching storage.
func (s *Service) WriteTradesXLSX(trades []*entity.Trade, start time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("xlsx close failed", "error", err)
		}
	}()

	// the default sheet becomes the trades sheet
	if err := f.SetSheetName(f.GetSheetName(0), sheetTrades); err != nil {
		return nil, err
	}

	for i, h := range xlsxHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetTrades, cell, h)
	}

	row := 2
	for _, t := range trades {
		for i, l := range t.Legs {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(sheetTrades, cell, v)
			}
			write(1, t.OrderID)
			write(2, t.DateReceived.Format("2006-01-02 15:04:05 MST"))
			write(3, t.OrderType)
			write(4, i+1)
			write(5, string(l.Action))
			write(6, l.Quantity)
			write(7, l.Symbol)
			if l.IsOption() {
				write(8, l.Expiration.Format("2006-01-02"))
				write(9, string(*l.OptionType))
				write(10, l.Strike.InexactFloat64())
			}
			write(11, l.FillPrice.InexactFloat64())
			write(12, l.FillTime.Format("2006-01-02 15:04:05 MST"))
			row++
		}
	}

	_ = f.SetColWidth(sheetTrades, "A", "A", 14) // order id
	_ = f.SetColWidth(sheetTrades, "B", "B", 24) // received
	_ = f.SetColWidth(sheetTrades, "C", "C", 16) // order type
	_ = f.SetColWidth(sheetTrades, "D", "I", 11)
	_ = f.SetColWidth(sheetTrades, "J", "K", 12) // prices
	_ = f.SetColWidth(sheetTrades, "L", "L", 24) // fill time
	if err := f.SetPanes(sheetTrades, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		s.logger.Warn("xlsx freeze header failed", "error", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"trades", len(trades),
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
