package extract

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is; every typed error below matches exactly one.
var (
	ErrMissingField   = errors.New("missing field")
	ErrInvalidLeg     = errors.New("invalid leg")
	ErrNoValidLegs    = errors.New("no valid legs")
	ErrTimestampParse = errors.New("timestamp parse failed")
)

// MissingFieldError reports a required top-level field absent from the text.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q", e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// InvalidLegError reports a leg segment that does not satisfy the leg grammar.
// It is collected per leg and does not fail the order on its own.
type InvalidLegError struct {
	Segment string
	Reason  string
}

func (e *InvalidLegError) Error() string {
	return fmt.Sprintf("invalid leg %q: %s", e.Segment, e.Reason)
}

func (e *InvalidLegError) Is(target error) bool { return target == ErrInvalidLeg }

// NoValidLegsError is returned when the leg block yields no parsable leg.
type NoValidLegsError struct {
	Segments int
	Skipped  []*InvalidLegError
}

func (e *NoValidLegsError) Error() string {
	if e.Segments == 0 {
		return "no leg segments found"
	}
	return fmt.Sprintf("none of %d leg segments parsed", e.Segments)
}

func (e *NoValidLegsError) Is(target error) bool { return target == ErrNoValidLegs }

func (e *NoValidLegsError) Unwrap() []error {
	errs := make([]error, 0, len(e.Skipped))
	for _, s := range e.Skipped {
		errs = append(errs, s)
	}
	return errs
}

// TimestampParseError reports a date/time string that matches none of the known formats.
type TimestampParseError struct {
	Input    string
	Attempts []error
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("timestamp %q matches no known format", e.Input)
}

func (e *TimestampParseError) Is(target error) bool { return target == ErrTimestampParse }

func (e *TimestampParseError) Unwrap() []error { return e.Attempts }
