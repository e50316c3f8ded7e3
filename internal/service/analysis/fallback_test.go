package analysis

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapu/sitcom-match-go/internal/catalog"
	"github.com/kapu/sitcom-match-go/internal/constants"
	"github.com/kapu/sitcom-match-go/internal/domain"
)

func TestFallbackGeneratorSingleMatch(t *testing.T) {
	cat := catalog.Default()
	gen := NewFallbackGenerator(cat, 7)

	for i := 0; i < 200; i++ {
		result := gen.Generate(StrategyTriple, &domain.UserProfile{DisplayName: "Alice"})
		single := mustSingle(t, result)

		_, ok := cat.Lookup(single.Character.Name)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, single.Confidence, constants.ConfidenceBounds.FallbackMin)
		assert.Less(t, single.Confidence, constants.ConfidenceBounds.FallbackMax)
		assert.Contains(t, single.Reasoning, "Alice")
		assert.Contains(t, single.Reasoning, single.Character.Name)
	}
}

func TestFallbackGeneratorMultiMatch(t *testing.T) {
	gen := NewFallbackGenerator(catalog.Default(), 7)

	multi := mustMulti(t, gen.Generate(StrategyJSON, nil))
	require.Len(t, multi.TopMatches, 1)
	assert.Len(t, multi.IdentifiedTraits, 2)
	assert.Contains(t, multi.TopMatches[0].Reasoning, "This user")
	assert.NotEmpty(t, multi.PersonalitySummary)
}

func TestFallbackGeneratorIsReproducibleWithSeed(t *testing.T) {
	a := NewFallbackGenerator(catalog.Default(), 42)
	b := NewFallbackGenerator(catalog.Default(), 42)

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Generate(StrategyTriple, nil), b.Generate(StrategyTriple, nil))
	}
}

func TestFallbackGeneratorCoversCatalog(t *testing.T) {
	cat := catalog.Default()
	gen := NewFallbackGenerator(cat, 1)

	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		name, _ := gen.Generate(StrategyTriple, nil).Headline()
		seen[name] = true
	}
	assert.Len(t, seen, cat.Len())
}

func TestFallbackGeneratorConcurrentUse(t *testing.T) {
	gen := NewFallbackGenerator(catalog.Default(), 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.False(t, gen.Generate(StrategyJSON, nil).IsZero())
			}
		}()
	}
	wg.Wait()
}

func TestFallbackGeneratorTraitlessCatalog(t *testing.T) {
	cat, err := catalog.New([]domain.CharacterProfile{{Name: "Ron Swanson", Show: "Parks and Recreation"}})
	require.NoError(t, err)

	single := mustSingle(t, NewFallbackGenerator(cat, 3).Generate(StrategyTriple, nil))
	assert.Equal(t, "Ron Swanson", single.Character.Name)
	assert.Contains(t, single.Reasoning, "memorable")
}
