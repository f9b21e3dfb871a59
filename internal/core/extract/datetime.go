package extract

import (
	"regexp"
	"strings"
	"time"
)

// looseTimestampPattern matches anything shaped like a confirmation timestamp
// ("January 5, 2024 9:30:00 A M EST"): a word, a digit, then up to the first
// meridiem and an optional zone token. Whether it parses is left to
// ParseDateTime.
const looseTimestampPattern = `[A-Za-z]+\s+\d.{0,40}?[AP]\s?M\b(?:\s+[A-Z](?:\s?[A-Z]){1,3}\b)?`

var (
	zoneEDT = time.FixedZone("EDT", -4*60*60)
	zoneEST = time.FixedZone("EST", -5*60*60)
)

type dateTimeFormat struct {
	layout string
	loc    *time.Location
}

// Brokerage formats are a closed set; EDT is tried before EST.
var dateTimeFormats = []dateTimeFormat{
	{layout: "Jan 2, 2006 3:04:05 PM EDT", loc: zoneEDT},
	{layout: "Jan 2, 2006 3:04:05 PM EST", loc: zoneEST},
	{layout: "January 2, 2006 3:04:05 PM EDT", loc: zoneEDT},
	{layout: "January 2, 2006 3:04:05 PM EST", loc: zoneEST},
}

var (
	reMeridiemSplit = regexp.MustCompile(`(\d{1,2}:\d{2}:\d{2})\s*([AP])\s*M\b`)
	reZoneSplit     = regexp.MustCompile(`\bE\s*([SD])\s*T\b`)
	reDaySplit      = regexp.MustCompile(`\b([A-Za-z]{3,9})\s+(\d)\s+(\d)\s*,`)
)

// ParseDateTime parses a confirmation timestamp after repairing known PDF
// fragmentation artifacts ("9:30:00AM", "A M", "E S T", "1 5,").
func ParseDateTime(text string) (time.Time, error) {
	s := reMeridiemSplit.ReplaceAllString(text, "${1} ${2}M")
	s = reZoneSplit.ReplaceAllString(s, "E${1}T")
	s = reDaySplit.ReplaceAllString(s, "${1} ${2}${3},")
	s = strings.Join(strings.Fields(s), " ")

	attempts := make([]error, 0, len(dateTimeFormats))
	for _, f := range dateTimeFormats {
		t, err := time.ParseInLocation(f.layout, s, f.loc)
		if err == nil {
			return t, nil
		}
		attempts = append(attempts, err)
	}
	return time.Time{}, &TimestampParseError{Input: text, Attempts: attempts}
}
