// Package publish hands validated trade records to their destinations.
// Every destination keys the record by order id.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marwinsteiner/trade-accounting/internal/export"
)

// Publisher delivers one trade record.
type Publisher interface {
	Publish(ctx context.Context, rec export.TradeRecord) error
}

// ObjectName is the file or object name a record is published under.
func ObjectName(orderID string) string {
	return "trade_" + orderID + ".json"
}

func encode(rec export.TradeRecord) ([]byte, error) {
	if rec.OrderID == "" {
		return nil, errors.New("publish: record has no order id")
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("publish: marshal %s: %w", rec.OrderID, err)
	}
	return append(b, '\n'), nil
}

// Multi publishes to every destination and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, rec export.TradeRecord) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
