package domain

import (
	"fmt"
	"strings"
)

// Strategy selects the output shape the model is asked for and, with it,
// the parser that reads the completion.
type Strategy string

const (
	// StrategyTriple asks for NAME|CONFIDENCE%|EXPLANATION.
	StrategyTriple Strategy = "triple"
	// StrategyJSON asks for a topMatches JSON object.
	StrategyJSON Strategy = "json"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyTriple:
		return StrategyTriple, nil
	case StrategyJSON:
		return StrategyJSON, nil
	default:
		return "", fmt.Errorf("unknown analysis strategy %q", s)
	}
}

func (s Strategy) String() string {
	return string(s)
}
