package extract

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marwinsteiner/trade-accounting/constants"
	"github.com/marwinsteiner/trade-accounting/internal/core/normalize"
)

const sampleConfirmation = `Your order #123456789 has been filled.
Received At : : January 5, 2024 9:30:00 A M EST
Submitted Order T ype:: Limit
Fill Details
Bought 1 SPX 100 1/19/24 Put 4,700.00 @ 12.35
Filled at:: January 5, 2024 9:31:02 AM EST
Sold 1 SPX 100 1/19/24 Put 4,650.00 @ 8.10
Filled at: January 5, 2024 9:31:02 AM EST
https://broker.example.com/orders/123456789
1/5/2024, 9:45 AM
Disclaimer: Options involve risk.`

func TestExtractEndToEnd(t *testing.T) {
	res, err := Extract(normalize.Normalize(sampleConfirmation))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	tr := res.Trade
	if tr == nil {
		t.Fatal("Expected a trade")
	}
	if tr.OrderID != "123456789" {
		t.Errorf("Expected order id 123456789, got %q", tr.OrderID)
	}
	if tr.OrderType != "Limit" {
		t.Errorf("Expected order type Limit, got %q", tr.OrderType)
	}
	wantReceived := time.Date(2024, 1, 5, 9, 30, 0, 0, zoneEST)
	if !tr.DateReceived.Equal(wantReceived) {
		t.Errorf("Expected received %v, got %v", wantReceived, tr.DateReceived)
	}
	if len(tr.Legs) != 2 {
		t.Fatalf("Expected 2 legs, got %d", len(tr.Legs))
	}
	if len(res.Skipped) != 0 {
		t.Errorf("Expected no skipped legs, got %v", res.Skipped)
	}

	first, second := tr.Legs[0], tr.Legs[1]
	if first.Action != constants.ActionBuy || second.Action != constants.ActionSell {
		t.Errorf("Expected Buy then Sell, got %s then %s", first.Action, second.Action)
	}
	if !first.IsOption() || !second.IsOption() {
		t.Fatal("Expected both legs to be options")
	}
	if *first.OptionType != constants.OptionPut {
		t.Errorf("Expected Put, got %s", *first.OptionType)
	}
	if !first.Strike.Equal(decimal.RequireFromString("4700")) {
		t.Errorf("Expected strike 4700, got %s", first.Strike)
	}
	if !second.FillPrice.Equal(decimal.RequireFromString("8.10")) {
		t.Errorf("Expected fill price 8.10, got %s", second.FillPrice)
	}
	wantExp := time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)
	if !first.Expiration.Equal(wantExp) {
		t.Errorf("Expected expiration %v, got %v", wantExp, first.Expiration)
	}
	wantFill := time.Date(2024, 1, 5, 9, 31, 2, 0, zoneEST)
	if !first.FillTime.Equal(wantFill) {
		t.Errorf("Expected fill time %v, got %v", wantFill, first.FillTime)
	}
}

func TestExtractMissingOrderID(t *testing.T) {
	text := normalize.Normalize(strings.Replace(sampleConfirmation, "order #123456789", "confirmation", 1))

	res, err := Extract(text)
	if res.Trade != nil {
		t.Errorf("Expected no trade, got %+v", res.Trade)
	}
	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingFieldError, got %v", err)
	}
	if missing.Field != FieldOrderID {
		t.Errorf("Expected field %s, got %s", FieldOrderID, missing.Field)
	}
	if !errors.Is(err, ErrMissingField) {
		t.Error("Expected errors.Is(err, ErrMissingField)")
	}
}

func TestExtractMissingFieldsInOrder(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field string
	}{
		{"no received at", "Order #1 Submitted Order Type: Market Fill Details", FieldDateReceived},
		{"received at without a timestamp", "Order #1 Received At: pending Submitted Order Type: Market Fill Details", FieldDateReceived},
		{"no order type", "Order #1 Received At: Jan 5, 2024 9:30:00 AM EST Fill Details", FieldOrderType},
		{"no leg block", "Order #1 Received At: Jan 5, 2024 9:30:00 AM EST Submitted Order Type: Market", FieldLegBlock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.text)
			var missing *MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("Expected MissingFieldError, got %v", err)
			}
			if missing.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, missing.Field)
			}
		})
	}
}

func TestExtractSkipsBadLeg(t *testing.T) {
	text := "Order #42 Received At: Jan 5, 2024 9:30:00 AM EST Submitted Order Type: Market Fill Details " +
		"Bought 100 AAPL @ 190.50 Filled at: Jan 5, 2024 9:31:00 AM EST " +
		"Sold 5 XYZ @ n/a " +
		"Sold 50 MSFT @ 402.10 Filled at: Jan 5, 2024 9:32:00 AM EST"

	res, err := Extract(text)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(res.Trade.Legs) != 2 {
		t.Fatalf("Expected 2 legs, got %d", len(res.Trade.Legs))
	}
	if len(res.Skipped) != 1 {
		t.Fatalf("Expected 1 skipped leg, got %d", len(res.Skipped))
	}
	if !strings.HasPrefix(res.Skipped[0].Segment, "Sold 5 XYZ") {
		t.Errorf("Unexpected skipped segment %q", res.Skipped[0].Segment)
	}
	if res.Trade.Legs[1].Symbol != "MSFT" {
		t.Errorf("Expected second leg MSFT, got %s", res.Trade.Legs[1].Symbol)
	}
}

func TestExtractNoValidLegs(t *testing.T) {
	text := "Order #42 Received At: Jan 5, 2024 9:30:00 AM EST Submitted Order Type: Market Fill Details " +
		"Bought 100 AAPL @ 190.50 Sold 5 XYZ @ n/a Disclaimer: none"

	res, err := Extract(text)
	if res.Trade != nil {
		t.Error("Expected no trade")
	}
	var none *NoValidLegsError
	if !errors.As(err, &none) {
		t.Fatalf("Expected NoValidLegsError, got %v", err)
	}
	if none.Segments != 2 || len(none.Skipped) != 2 {
		t.Errorf("Expected 2 segments and 2 skipped, got %d and %d", none.Segments, len(none.Skipped))
	}
	if !errors.Is(err, ErrNoValidLegs) {
		t.Error("Expected errors.Is(err, ErrNoValidLegs)")
	}
}

func TestExtractEmptyLegBlock(t *testing.T) {
	text := "Order #42 Received At: Jan 5, 2024 9:30:00 AM EST Submitted Order Type: Market Fill Details Disclaimer"

	_, err := Extract(text)
	var none *NoValidLegsError
	if !errors.As(err, &none) {
		t.Fatalf("Expected NoValidLegsError, got %v", err)
	}
	if none.Segments != 0 {
		t.Errorf("Expected 0 segments, got %d", none.Segments)
	}
}

func TestExtractBadFillTimeIsFatal(t *testing.T) {
	text := "Order #42 Received At: Jan 5, 2024 9:30:00 AM EST Submitted Order Type: Market Fill Details " +
		"Bought 100 AAPL @ 190.50 Filled at: Jan 5, 2024 9:31:00 AM EST " +
		"Sold 50 MSFT @ 402.10 Filled at: Foo 5, 2024 9:32:00 AM EST"

	_, err := Extract(text)
	if !errors.Is(err, ErrTimestampParse) {
		t.Fatalf("Expected TimestampParseError, got %v", err)
	}
}

func TestExtractBadReceivedTime(t *testing.T) {
	text := "Order #42 Received At: Smarch 5, 2024 9:30:00 AM EST Submitted Order Type: Market Fill Details " +
		"Bought 100 AAPL @ 190.50 Filled at: Jan 5, 2024 9:31:00 AM EST"

	_, err := Extract(text)
	var tsErr *TimestampParseError
	if !errors.As(err, &tsErr) {
		t.Fatalf("Expected TimestampParseError, got %v", err)
	}
	if len(tsErr.Attempts) != len(dateTimeFormats) {
		t.Errorf("Expected %d attempts, got %d", len(dateTimeFormats), len(tsErr.Attempts))
	}
}

func TestExtractFillTimeWithoutSecondsIsFatal(t *testing.T) {
	text := "Order #42 Received At: Jan 5, 2024 9:30:00 AM EST Submitted Order Type: Market Fill Details " +
		"Bought 100 AAPL @ 190.50 Filled at: Jan 5, 2024 9:31:00 AM EST " +
		"Sold 50 MSFT @ 402.10 Filled at: Jan 5, 2024 9:32 AM EST"

	res, err := Extract(text)
	var tsErr *TimestampParseError
	if !errors.As(err, &tsErr) {
		t.Fatalf("Expected TimestampParseError, got %v", err)
	}
	if tsErr.Input != "Jan 5, 2024 9:32 AM EST" {
		t.Errorf("Expected input %q, got %q", "Jan 5, 2024 9:32 AM EST", tsErr.Input)
	}
	if res.Trade != nil {
		t.Errorf("Expected no trade, got %+v", res.Trade)
	}
}

func TestExtractUnparsableReceivedTime(t *testing.T) {
	tests := []struct {
		name     string
		received string
	}{
		{"no seconds", "Jan 5, 2024 9:30 AM EST"},
		{"unsupported zone", "Jan 5, 2024 9:30:00 AM PST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "Order #42 Received At: " + tt.received + " Submitted Order Type: Market Fill Details " +
				"Bought 100 AAPL @ 190.50 Filled at: Jan 5, 2024 9:31:00 AM EST"

			_, err := Extract(text)
			var tsErr *TimestampParseError
			if !errors.As(err, &tsErr) {
				t.Fatalf("Expected TimestampParseError, got %v", err)
			}
			if tsErr.Input != tt.received {
				t.Errorf("Expected input %q, got %q", tt.received, tsErr.Input)
			}
		})
	}
}

func TestExtractFatalLegKeepsSkipped(t *testing.T) {
	text := "Order #42 Received At: Jan 5, 2024 9:30:00 AM EST Submitted Order Type: Market Fill Details " +
		"Sold 5 XYZ @ n/a " +
		"Sold 50 MSFT @ 402.10 Filled at: Jan 5, 2024 9:32 AM EST"

	res, err := Extract(text)
	if !errors.Is(err, ErrTimestampParse) {
		t.Fatalf("Expected TimestampParseError, got %v", err)
	}
	if res.Trade != nil {
		t.Error("Expected no trade")
	}
	if len(res.Skipped) != 1 {
		t.Fatalf("Expected 1 skipped leg, got %d", len(res.Skipped))
	}
	if !strings.HasPrefix(res.Skipped[0].Segment, "Sold 5 XYZ") {
		t.Errorf("Unexpected skipped segment %q", res.Skipped[0].Segment)
	}
}

func TestExtractOrderTypeMissingT(t *testing.T) {
	text := "Order #42 Received At: Jan 5, 2024 9:30:00 AM EST Submitted Order ype: Limit Fill Details " +
		"Bought 100 AAPL @ 190.50 Filled at: Jan 5, 2024 9:31:00 AM EST"

	for _, in := range []string{text, normalize.Normalize(text)} {
		res, err := Extract(in)
		if err != nil {
			t.Fatalf("Extract(%q) error = %v", in, err)
		}
		if res.Trade.OrderType != "Limit" {
			t.Errorf("Expected order type Limit, got %q", res.Trade.OrderType)
		}
	}
}
