// Package extract parses canonical confirmation text into a Trade.
//
// Extraction is a fixed grammar of named fields applied in order (order id,
// received timestamp, order type, leg block) followed by per-leg parsing of the
// leg block. It never logs; callers decide what to do with skipped legs.
package extract

import (
	"errors"

	"github.com/marwinsteiner/trade-accounting/internal/entity"
)

// Field names, in grammar order.
const (
	FieldOrderID      = "order_id"
	FieldDateReceived = "date_received"
	FieldOrderType    = "order_type"
	FieldLegBlock     = "leg_block"
)

// TradeGrammar is the record-level grammar of a confirmation.
var TradeGrammar = Grammar{
	NewField(FieldOrderID, `(?i:order)\s+#\s*(\d+)`),
	NewField(FieldDateReceived, `Received\s*At[\s:]*(`+looseTimestampPattern+`)`),
	NewField(FieldOrderType, `Submitted\s+Order\s+T?\s*ype[\s:]*(.+?)(?:\s*Fill|$)`),
	NewField(FieldLegBlock, `Fill\s+Details[\s:]*(.*?)(?:\s*\b(?:Disclaimer|Disclosures|Important Information)\b|$)`).AllowEmpty(),
}

// Result is a successful extraction. Skipped lists the leg segments that did
// not parse; the trade holds every leg that did.
type Result struct {
	Trade   *entity.Trade
	Skipped []*InvalidLegError
}

// Extract parses canonical text into a Trade. It returns *MissingFieldError,
// *TimestampParseError or *NoValidLegsError and never a partial trade. Legs
// skipped before a fatal error are still reported in Result.Skipped.
func Extract(text string) (Result, error) {
	fields, err := TradeGrammar.Apply(text)
	if err != nil {
		return Result{}, err
	}

	received, err := ParseDateTime(fields.Value(FieldDateReceived))
	if err != nil {
		return Result{}, err
	}

	segments := SplitLegs(fields.Value(FieldLegBlock))
	legs := make([]entity.TradeLeg, 0, len(segments))
	var skipped []*InvalidLegError
	for _, seg := range segments {
		leg, err := ParseLeg(seg)
		if err != nil {
			var invalid *InvalidLegError
			if errors.As(err, &invalid) {
				skipped = append(skipped, invalid)
				continue
			}
			return Result{Skipped: skipped}, err
		}
		legs = append(legs, leg)
	}
	if len(legs) == 0 {
		return Result{}, &NoValidLegsError{Segments: len(segments), Skipped: skipped}
	}

	return Result{
		Trade: &entity.Trade{
			OrderID:      fields.Value(FieldOrderID),
			DateReceived: received,
			OrderType:    fields.Value(FieldOrderType),
			Legs:         legs,
		},
		Skipped: skipped,
	}, nil
}
