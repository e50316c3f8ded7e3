package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/domain"
)

const fixtureProviderName = "fixture"

// FixtureCompleter answers without calling any model. It is selected when no
// provider key is configured and returns a valid completion in the requested
// shape, chosen deterministically from the prompt.
type FixtureCompleter struct {
	characters []domain.CharacterProfile
	logger     *zap.Logger
}

func NewFixtureCompleter(characters []domain.CharacterProfile, logger *zap.Logger) *FixtureCompleter {
	return &FixtureCompleter{characters: characters, logger: logger}
}

func (f *FixtureCompleter) Complete(ctx context.Context, prompt string, preset ModelPreset, opts *GenerateOptions) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.characters) == 0 {
		return nil, fmt.Errorf("fixture completer has no characters")
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	sum := h.Sum32()
	ch := f.characters[int(sum%uint32(len(f.characters)))]
	confidence := 78 + int(sum%15)

	f.logger.Debug("Serving fixture completion",
		zap.String("character", ch.Name),
		zap.String("preset", string(preset)),
	)

	completion := &Completion{Provider: fixtureProviderName, Model: fixtureProviderName}
	if opts != nil && opts.JSONMode {
		body, err := json.Marshal(map[string]any{
			"topMatches": []map[string]any{{
				"character":  ch.Name,
				"show":       ch.Show,
				"confidence": confidence,
				"reasoning":  fmt.Sprintf("Sample analysis: the posts echo %s's %s side.", ch.Name, firstTrait(ch)),
			}},
			"identifiedTraits":   ch.Traits,
			"personalitySummary": "Sample personality summary generated without a language model.",
		})
		if err != nil {
			return nil, err
		}
		completion.Text = string(body)
		return completion, nil
	}

	completion.Text = fmt.Sprintf("%s|%d%%|Sample analysis: the posts echo %s's %s side.",
		ch.Name, confidence, ch.Name, firstTrait(ch))
	return completion, nil
}

func firstTrait(ch domain.CharacterProfile) string {
	if len(ch.Traits) == 0 {
		return "memorable"
	}
	return ch.Traits[0]
}

// NewCompleter returns a ModelManager when a provider key is configured and
// a FixtureCompleter otherwise.
func NewCompleter(ctx context.Context, cfg ModelManagerConfig, characters []domain.CharacterProfile, logger *zap.Logger) (Completer, *ModelManager, error) {
	if !cfg.HasProvider() {
		logger.Warn("No LLM provider key configured, serving fixture completions")
		return NewFixtureCompleter(characters, logger), nil, nil
	}

	mm, err := NewModelManager(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return mm, mm, nil
}
