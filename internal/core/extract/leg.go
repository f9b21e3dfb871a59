package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marwinsteiner/trade-accounting/constants"
	"github.com/marwinsteiner/trade-accounting/internal/entity"
)

const (
	actionPattern = `(?:Bought|Sold|Buy|Sell)`
	symbolPattern = `/?[A-Za-z][A-Za-z0-9./]*`
	numberPattern = `\d[\d,]*(?:\.\d+)?`
)

var (
	// a leg starts where an action word is followed by a quantity and a symbol
	reLegStart   = regexp.MustCompile(`\b` + actionPattern + `\s+\d+\s+` + symbolPattern)
	reActionWord = regexp.MustCompile(`\b` + actionPattern + `\b`)

	// action, quantity, symbol, [multiplier], [expiration type strike], @ price, [Filled at: time]
	reLeg = regexp.MustCompile(`\b(` + actionPattern + `)\s+(\d+)\s+(` + symbolPattern + `)` +
		`(?:\s+\d+)?` +
		`(?:\s+(\d{1,2}/\d{1,2}/\d{2,4})\s+(?i:(put|call))\s+(` + numberPattern + `))?` +
		`\s+@\s*(` + numberPattern + `)` +
		`(?:.*?Filled\s+at:+\s*(` + looseTimestampPattern + `))?`)

	// looser second pass over the whole segment when the leg match carries no fill time
	reFillClause    = regexp.MustCompile(`(?i:filled)\W*(?i:at)\b[\s:]*(.*)$`)
	reFillTimeLoose = regexp.MustCompile(`^` + looseTimestampPattern)
)

// SplitLegs cuts a leg block into candidate leg segments in document order.
// Text without an action word is dropped.
func SplitLegs(block string) []string {
	idx := reLegStart.FindAllStringIndex(block, -1)
	bounds := make([]int, 0, len(idx)+2)
	bounds = append(bounds, 0)
	for _, loc := range idx {
		if loc[0] > 0 {
			bounds = append(bounds, loc[0])
		}
	}
	bounds = append(bounds, len(block))

	segments := make([]string, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		seg := strings.TrimSpace(block[bounds[i]:bounds[i+1]])
		if seg == "" || !reActionWord.MatchString(seg) {
			continue
		}
		segments = append(segments, seg)
	}
	return segments
}

// ParseLeg parses one leg segment. Grammar violations and a missing fill time
// return *InvalidLegError; a fill time that is present but unparsable returns
// *TimestampParseError.
func ParseLeg(segment string) (entity.TradeLeg, error) {
	m := reLeg.FindStringSubmatch(segment)
	if m == nil {
		return entity.TradeLeg{}, invalidLeg(segment, "does not match leg grammar")
	}
	actionWord, qtyStr, symbol := m[1], m[2], m[3]
	expStr, typeStr, strikeStr := m[4], m[5], m[6]
	priceStr, fillStr := m[7], m[8]

	action, ok := constants.CanonicalizeAction(actionWord)
	if !ok {
		return entity.TradeLeg{}, invalidLeg(segment, fmt.Sprintf("unknown action %q", actionWord))
	}
	qty, err := strconv.Atoi(qtyStr)
	if err != nil {
		return entity.TradeLeg{}, invalidLeg(segment, fmt.Sprintf("quantity %q: %v", qtyStr, err))
	}
	price, err := parseDecimal(priceStr)
	if err != nil {
		return entity.TradeLeg{}, invalidLeg(segment, fmt.Sprintf("fill price %q: %v", priceStr, err))
	}

	leg := entity.TradeLeg{
		Action:    action,
		Quantity:  qty,
		Symbol:    symbol,
		FillPrice: price,
	}

	if expStr != "" {
		exp, err := parseExpiration(expStr)
		if err != nil {
			return entity.TradeLeg{}, invalidLeg(segment, fmt.Sprintf("expiration %q: %v", expStr, err))
		}
		optType, ok := constants.CanonicalizeOptionType(typeStr)
		if !ok {
			return entity.TradeLeg{}, invalidLeg(segment, fmt.Sprintf("option type %q", typeStr))
		}
		strike, err := parseDecimal(strikeStr)
		if err != nil {
			return entity.TradeLeg{}, invalidLeg(segment, fmt.Sprintf("strike %q: %v", strikeStr, err))
		}
		leg.Expiration = &exp
		leg.OptionType = &optType
		leg.Strike = &strike
	}

	if fillStr == "" {
		// TODO: check the fallback against more sample confirmations; it may only be
		// covering for a label the normalizer should repair.
		fillStr = fallbackFillTime(segment)
	}
	if fillStr == "" {
		return entity.TradeLeg{}, invalidLeg(segment, "no fill time")
	}
	fillTime, err := ParseDateTime(fillStr)
	if err != nil {
		return entity.TradeLeg{}, err
	}
	leg.FillTime = fillTime

	if err := leg.Validate(); err != nil {
		return entity.TradeLeg{}, invalidLeg(segment, err.Error())
	}
	return leg, nil
}

// fallbackFillTime returns the value of a "Filled at" clause anywhere in the
// segment. A clause whose value does not look like a timestamp still yields
// its text, so ParseDateTime reports it instead of the leg being dropped.
func fallbackFillTime(segment string) string {
	m := reFillClause.FindStringSubmatch(segment)
	if m == nil {
		return ""
	}
	rest := strings.TrimSpace(m[1])
	if loose := reFillTimeLoose.FindString(rest); loose != "" {
		return loose
	}
	return rest
}

func invalidLeg(segment, reason string) *InvalidLegError {
	return &InvalidLegError{Segment: segment, Reason: reason}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}

// parseExpiration accepts M/D/YY and M/D/YYYY and returns midnight UTC.
func parseExpiration(s string) (time.Time, error) {
	layout := "1/2/06"
	if parts := strings.Split(s, "/"); len(parts) == 3 {
		switch len(parts[2]) {
		case 2:
		case 4:
			layout = "1/2/2006"
		default:
			return time.Time{}, fmt.Errorf("year must have 2 or 4 digits")
		}
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
