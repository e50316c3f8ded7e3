package domain

// Cast is a single public Farcaster post used as analysis input.
type Cast struct {
	Text            string `json:"text"`
	TimestampMillis int64  `json:"timestamp"`
	Hash            string `json:"hash,omitempty"`
}

// Reaction records a cast the user liked or recast.
type Reaction struct {
	Type            string `json:"type"`
	CastHash        string `json:"castHash,omitempty"`
	TimestampMillis int64  `json:"timestamp"`
}
