package export

import (
	"time"

	"github.com/marwinsteiner/trade-accounting/internal/entity"
)

// TradeRecord is the published JSON shape of a trade. Decimals are strings so
// that no precision is lost on the way out.
type TradeRecord struct {
	OrderID      string      `json:"order_id"`
	DateReceived string      `json:"date_received"`
	OrderType    string      `json:"order_type"`
	Legs         []LegRecord `json:"legs"`
}

type LegRecord struct {
	Action     string  `json:"action"`
	Quantity   int     `json:"quantity"`
	Symbol     string  `json:"symbol"`
	Expiration *string `json:"expiration,omitempty"`
	OptionType *string `json:"option_type,omitempty"`
	Strike     *string `json:"strike,omitempty"`
	FillPrice  string  `json:"fill_price"`
	FillTime   string  `json:"fill_time"`
}

// NewTradeRecord converts a trade to its published form.
func NewTradeRecord(t *entity.Trade) TradeRecord {
	rec := TradeRecord{
		OrderID:      t.OrderID,
		DateReceived: t.DateReceived.Format(time.RFC3339),
		OrderType:    t.OrderType,
		Legs:         make([]LegRecord, 0, len(t.Legs)),
	}
	for _, l := range t.Legs {
		lr := LegRecord{
			Action:    string(l.Action),
			Quantity:  l.Quantity,
			Symbol:    l.Symbol,
			FillPrice: l.FillPrice.String(),
			FillTime:  l.FillTime.Format(time.RFC3339),
		}
		if l.Expiration != nil {
			s := l.Expiration.Format("2006-01-02")
			lr.Expiration = &s
		}
		if l.OptionType != nil {
			s := string(*l.OptionType)
			lr.OptionType = &s
		}
		if l.Strike != nil {
			s := l.Strike.String()
			lr.Strike = &s
		}
		rec.Legs = append(rec.Legs, lr)
	}
	return rec
}
