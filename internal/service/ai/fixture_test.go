package ai

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/catalog"
)

func TestFixtureCompleterTripleShape(t *testing.T) {
	chars := catalog.Default().Characters()
	f := NewFixtureCompleter(chars, zap.NewNop())

	completion, err := f.Complete(context.Background(), "some prompt", PresetAnalysis, nil)
	require.NoError(t, err)
	assert.Equal(t, "fixture", completion.Provider)

	parts := strings.Split(completion.Text, "|")
	require.Len(t, parts, 3)
	_, ok := catalog.Default().Lookup(parts[0])
	assert.True(t, ok)
	assert.True(t, strings.HasSuffix(parts[1], "%"))
}

func TestFixtureCompleterJSONShapeIsDeterministic(t *testing.T) {
	f := NewFixtureCompleter(catalog.Default().Characters(), zap.NewNop())
	opts := &GenerateOptions{JSONMode: true}

	first, err := f.Complete(context.Background(), "prompt A", PresetAnalysis, opts)
	require.NoError(t, err)
	second, err := f.Complete(context.Background(), "prompt A", PresetAnalysis, opts)
	require.NoError(t, err)
	assert.Equal(t, first.Text, second.Text)

	var body struct {
		TopMatches []struct {
			Character  string `json:"character"`
			Confidence int    `json:"confidence"`
		} `json:"topMatches"`
	}
	require.NoError(t, json.Unmarshal([]byte(first.Text), &body))
	require.Len(t, body.TopMatches, 1)
	assert.GreaterOrEqual(t, body.TopMatches[0].Confidence, 78)
	assert.Less(t, body.TopMatches[0].Confidence, 93)
}

func TestFixtureCompleterHonoursCancellation(t *testing.T) {
	f := NewFixtureCompleter(catalog.Default().Characters(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Complete(ctx, "prompt", PresetAnalysis, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewCompleterSelectsFixtureWithoutKeys(t *testing.T) {
	completer, mm, err := NewCompleter(context.Background(), ModelManagerConfig{}, catalog.Default().Characters(), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, mm)
	assert.IsType(t, &FixtureCompleter{}, completer)
}
