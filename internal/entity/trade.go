package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marwinsteiner/trade-accounting/constants"
)

// TradeLeg is one fill within an order confirmation.
// Expiration, OptionType and Strike are either all set (option) or all nil (plain security).
type TradeLeg struct {
	Action     constants.Action      `json:"action"`
	Quantity   int                   `json:"quantity"`
	Symbol     string                `json:"symbol"`
	Expiration *time.Time            `json:"expiration,omitempty"`
	OptionType *constants.OptionType `json:"option_type,omitempty"`
	Strike     *decimal.Decimal      `json:"strike,omitempty"`
	FillPrice  decimal.Decimal       `json:"fill_price"`
	FillTime   time.Time             `json:"fill_time"`
}

// Trade is one order confirmation.
type Trade struct {
	OrderID      string     `json:"order_id"`
	DateReceived time.Time  `json:"date_received"`
	OrderType    string     `json:"order_type"`
	Legs         []TradeLeg `json:"legs"`
}

// IsOption reports whether the leg carries the full option triple.
func (l TradeLeg) IsOption() bool {
	return l.Expiration != nil && l.OptionType != nil && l.Strike != nil
}

// Validate checks the per-leg invariants.
func (l TradeLeg) Validate() error {
	if !l.Action.Valid() {
		return fmt.Errorf("invalid action %q", l.Action)
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", l.Quantity)
	}
	if l.Symbol == "" {
		return errors.New("symbol is required")
	}
	set := 0
	for _, present := range []bool{l.Expiration != nil, l.OptionType != nil, l.Strike != nil} {
		if present {
			set++
		}
	}
	if set != 0 && set != 3 {
		return errors.New("expiration, option_type and strike must be all present or all absent")
	}
	if l.Strike != nil && !l.Strike.IsPositive() {
		return fmt.Errorf("strike must be positive, got %s", l.Strike)
	}
	if l.FillPrice.IsNegative() {
		return fmt.Errorf("fill price must be non-negative, got %s", l.FillPrice)
	}
	if l.FillTime.IsZero() {
		return errors.New("fill time is required")
	}
	return nil
}

// Validate checks the trade and every leg.
func (t Trade) Validate() error {
	if t.OrderID == "" {
		return errors.New("order_id is required")
	}
	if t.DateReceived.IsZero() {
		return errors.New("date_received is required")
	}
	if len(t.Legs) == 0 {
		return errors.New("trade has no legs")
	}
	for i, l := range t.Legs {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
	}
	return nil
}
