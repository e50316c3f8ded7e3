package domain

import (
	"encoding/json"
	"fmt"
)

// MatchKind discriminates the two MatchResult variants on the wire.
type MatchKind string

const (
	MatchKindSingle MatchKind = "single"
	MatchKindMulti  MatchKind = "multi"
)

// SingleMatch is produced by the delimited triple strategy.
type SingleMatch struct {
	Character  CharacterProfile `json:"character"`
	Confidence int              `json:"confidence"`
	Reasoning  string           `json:"reasoning"`
}

// TopMatch is one ranked candidate of a MultiMatch.
type TopMatch struct {
	Character  string `json:"character"`
	Show       string `json:"show"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// MultiMatch is produced by the JSON object strategy.
type MultiMatch struct {
	TopMatches         []TopMatch `json:"topMatches"`
	IdentifiedTraits   []string   `json:"identifiedTraits"`
	PersonalitySummary string     `json:"personalitySummary"`
}

// MatchResult holds exactly one of SingleMatch or MultiMatch.
type MatchResult struct {
	single *SingleMatch
	multi  *MultiMatch
}

func NewSingleMatch(m SingleMatch) MatchResult {
	return MatchResult{single: &m}
}

func NewMultiMatch(m MultiMatch) MatchResult {
	if m.IdentifiedTraits == nil {
		m.IdentifiedTraits = []string{}
	}
	return MatchResult{multi: &m}
}

func (r MatchResult) Kind() MatchKind {
	if r.multi != nil {
		return MatchKindMulti
	}
	if r.single != nil {
		return MatchKindSingle
	}
	return ""
}

func (r MatchResult) IsZero() bool {
	return r.single == nil && r.multi == nil
}

func (r MatchResult) Single() (SingleMatch, bool) {
	if r.single == nil {
		return SingleMatch{}, false
	}
	return *r.single, true
}

func (r MatchResult) Multi() (MultiMatch, bool) {
	if r.multi == nil {
		return MultiMatch{}, false
	}
	return *r.multi, true
}

// Headline returns the best matched character name and its confidence.
func (r MatchResult) Headline() (string, int) {
	switch {
	case r.single != nil:
		return r.single.Character.Name, r.single.Confidence
	case r.multi != nil && len(r.multi.TopMatches) > 0:
		top := r.multi.TopMatches[0]
		return top.Character, top.Confidence
	default:
		return "", 0
	}
}

type singleWire struct {
	Kind MatchKind `json:"kind"`
	SingleMatch
}

type multiWire struct {
	Kind MatchKind `json:"kind"`
	MultiMatch
}

func (r MatchResult) MarshalJSON() ([]byte, error) {
	switch {
	case r.single != nil:
		return json.Marshal(singleWire{Kind: MatchKindSingle, SingleMatch: *r.single})
	case r.multi != nil:
		return json.Marshal(multiWire{Kind: MatchKindMulti, MultiMatch: *r.multi})
	default:
		return []byte("null"), nil
	}
}

func (r *MatchResult) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = MatchResult{}
		return nil
	}

	var probe struct {
		Kind MatchKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch probe.Kind {
	case MatchKindSingle:
		var w singleWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*r = NewSingleMatch(w.SingleMatch)
	case MatchKindMulti:
		var w multiWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*r = NewMultiMatch(w.MultiMatch)
	default:
		return fmt.Errorf("unknown match kind %q", probe.Kind)
	}
	return nil
}
