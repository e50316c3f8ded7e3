package analysis

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kapu/sitcom-match-go/internal/catalog"
	"github.com/kapu/sitcom-match-go/internal/constants"
	"github.com/kapu/sitcom-match-go/internal/domain"
	"github.com/kapu/sitcom-match-go/internal/util"
	apperrors "github.com/kapu/sitcom-match-go/pkg/errors"
)

const (
	StrategyTriple = domain.StrategyTriple
	StrategyJSON   = domain.StrategyJSON
)

// Parse turns a raw completion into a MatchResult using the parser for
// strategy. It never retries and never substitutes a result.
func Parse(raw string, cat *catalog.Catalog, strategy domain.Strategy) (domain.MatchResult, error) {
	switch strategy {
	case StrategyTriple:
		return ParseTriple(raw, cat)
	case StrategyJSON:
		return ParseJSON(raw)
	default:
		return domain.MatchResult{}, fmt.Errorf("parse completion: unknown strategy %q", strategy)
	}
}

// ParseTriple reads NAME|CONFIDENCE%|EXPLANATION.
func ParseTriple(raw string, cat *catalog.Catalog) (domain.MatchResult, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 3 {
		return domain.MatchResult{}, apperrors.NewParseError(apperrors.ParseMalformedShape,
			fmt.Sprintf("expected 3 '|' separated parts, got %d", len(parts)),
			map[string]any{"parts": len(parts)}, nil)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	character, ok := cat.Lookup(parts[0])
	if !ok {
		return domain.MatchResult{}, apperrors.NewParseError(apperrors.ParseUnknownCharacter,
			"character is not in the catalog",
			map[string]any{"character": parts[0]}, nil)
	}

	confidenceText := strings.TrimSpace(strings.TrimSuffix(parts[1], "%"))
	confidence, err := strconv.Atoi(confidenceText)
	if stderrors.Is(err, strconv.ErrRange) {
		confidence = constants.ConfidenceBounds.TripleMax
		if strings.HasPrefix(confidenceText, "-") {
			confidence = constants.ConfidenceBounds.TripleMin
		}
		err = nil
	}
	if err != nil {
		return domain.MatchResult{}, apperrors.NewParseError(apperrors.ParseInvalidConfidence,
			"confidence is not an integer",
			map[string]any{"confidence": parts[1]}, err)
	}

	return domain.NewSingleMatch(domain.SingleMatch{
		Character:  character,
		Confidence: util.Clamp(confidence, constants.ConfidenceBounds.TripleMin, constants.ConfidenceBounds.TripleMax),
		Reasoning:  parts[2],
	}), nil
}

// ParseJSON reads the topMatches object, tolerating a markdown fence and
// trailing prose after the last closing brace.
func ParseJSON(raw string) (domain.MatchResult, error) {
	original := raw
	cleaned := truncateAfterLastBrace(stripCodeFence(strings.TrimSpace(raw)))

	var probe any
	if err := json.Unmarshal([]byte(cleaned), &probe); err != nil {
		return domain.MatchResult{}, apperrors.NewParseError(apperrors.ParseMalformedJSON,
			"completion is not valid JSON",
			map[string]any{"original": original, "truncated": cleaned}, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return domain.MatchResult{}, schemaViolation("completion is not a JSON object", err)
	}

	rawMatches, ok := fields["topMatches"]
	if !ok {
		return domain.MatchResult{}, schemaViolation("topMatches is missing", nil)
	}

	var entries []topMatchWire
	if err := json.Unmarshal(rawMatches, &entries); err != nil {
		return domain.MatchResult{}, schemaViolation("topMatches is not a list of match objects", err)
	}
	if len(entries) == 0 {
		return domain.MatchResult{}, schemaViolation("topMatches is empty", nil)
	}

	var body analysisWire
	if err := json.Unmarshal([]byte(cleaned), &body); err != nil {
		return domain.MatchResult{}, schemaViolation("completion fields could not be decoded", err)
	}

	matches := make([]domain.TopMatch, 0, len(entries))
	for _, e := range entries {
		matches = append(matches, domain.TopMatch{
			Character:  string(e.Character),
			Show:       string(e.Show),
			Confidence: util.Clamp(int(e.Confidence), constants.ConfidenceBounds.JSONMin, constants.ConfidenceBounds.JSONMax),
			Reasoning:  string(e.Reasoning),
		})
	}

	return domain.NewMultiMatch(domain.MultiMatch{
		TopMatches:         matches,
		IdentifiedTraits:   []string(body.IdentifiedTraits),
		PersonalitySummary: string(body.PersonalitySummary),
	}), nil
}

// Entry fields are read leniently: a wrong-typed value degrades to its
// string form or the zero value instead of failing the whole completion.
type topMatchWire struct {
	Character  lenientString `json:"character"`
	Show       lenientString `json:"show"`
	Confidence lenientNumber `json:"confidence"`
	Reasoning  lenientString `json:"reasoning"`
}

type analysisWire struct {
	IdentifiedTraits   lenientStrings `json:"identifiedTraits"`
	PersonalitySummary lenientString  `json:"personalitySummary"`
}

// lenientString keeps strings, formats numbers and booleans, joins arrays of
// scalars with a space and drops objects.
type lenientString string

func (s *lenientString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = lenientString(scalarText(v))
	return nil
}

func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if _, nested := item.([]any); nested {
				continue
			}
			if text := strings.TrimSpace(scalarText(item)); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

// lenientStrings accepts a list or a single comma separated string.
type lenientStrings []string

func (l *lenientStrings) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if _, nested := item.([]any); nested {
				continue
			}
			if text := strings.TrimSpace(scalarText(item)); text != "" {
				out = append(out, text)
			}
		}
	case string:
		out = util.ParseCommaSeparated(t)
	}
	*l = out
	return nil
}

// lenientNumber accepts 85, 85.4 or "85%" and decodes anything else as 0.
type lenientNumber int

func (n *lenientNumber) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch t := v.(type) {
	case float64:
		*n = roundBounded(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%")), 64)
		if err == nil {
			*n = roundBounded(f)
		}
	}
	return nil
}

// roundBounded keeps huge values inside int range before clamping.
func roundBounded(f float64) lenientNumber {
	if math.IsNaN(f) {
		return 0
	}
	return lenientNumber(math.Round(math.Max(-1e9, math.Min(1e9, f))))
}

// stripCodeFence removes a leading ``` or ```json fence and its closing
// fence.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	rest := strings.TrimPrefix(s, "```")
	if len(rest) >= 4 && strings.EqualFold(rest[:4], "json") {
		rest = rest[4:]
	}
	rest = strings.TrimLeft(rest, " \t\r\n")

	rest = strings.TrimRight(rest, " \t\r\n")
	rest = strings.TrimSuffix(rest, "```")
	return strings.TrimRight(rest, " \t\r\n")
}

func truncateAfterLastBrace(s string) string {
	if idx := strings.LastIndex(s, "}"); idx >= 0 {
		return s[:idx+1]
	}
	return s
}

func schemaViolation(message string, cause error) *apperrors.ParseError {
	return apperrors.NewParseError(apperrors.ParseSchemaViolation, message, nil, cause)
}
