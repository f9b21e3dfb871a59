package constants

import "strings"

// Action is the side of a single fill.
type Action string

const (
	ActionBuy  Action = "Buy"
	ActionSell Action = "Sell"
)

// OptionType is the right of an option contract.
type OptionType string

const (
	OptionPut  OptionType = "Put"
	OptionCall OptionType = "Call"
)

var actionWords = map[string]Action{
	"bought": ActionBuy,
	"buy":    ActionBuy,
	"sold":   ActionSell,
	"sell":   ActionSell,
}

// CanonicalizeAction maps a confirmation action word (Bought, Sold, ...) to an Action.
func CanonicalizeAction(word string) (Action, bool) {
	a, ok := actionWords[strings.ToLower(strings.TrimSpace(word))]
	return a, ok
}

// CanonicalizeOptionType maps "put"/"CALL"/... to an OptionType.
func CanonicalizeOptionType(word string) (OptionType, bool) {
	switch strings.ToLower(strings.TrimSpace(word)) {
	case "put":
		return OptionPut, true
	case "call":
		return OptionCall, true
	default:
		return "", false
	}
}

func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

func (t OptionType) Valid() bool {
	return t == OptionPut || t == OptionCall
}
