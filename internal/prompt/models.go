package prompt

import "github.com/kapu/sitcom-match-go/internal/domain"

// AnalysisInput is what the collector knows about the user being analyzed.
// Profile is optional.
type AnalysisInput struct {
	Profile *domain.UserProfile
	Casts   []domain.Cast
}

// AnalysisPromptData feeds both analysis templates. Lists are pre-rendered so
// the template and the fmt fallback produce the same text.
type AnalysisPromptData struct {
	CharacterList string
	UserBlock     string
	ExampleName   string
}
