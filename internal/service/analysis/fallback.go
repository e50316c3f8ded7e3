package analysis

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kapu/sitcom-match-go/internal/catalog"
	"github.com/kapu/sitcom-match-go/internal/constants"
	"github.com/kapu/sitcom-match-go/internal/domain"
)

var fallbackReasonings = []string{
	"%s comes across as %s and %s, which lines up with %s from %s.",
	"Recent casts from %s read %s and %s, the same mix that defines %s in %s.",
	"%s shows a %s and %s streak that feels a lot like %s on %s.",
}

// FallbackGenerator produces a local MatchResult when the model cannot.
// A fixed seed makes its output reproducible.
type FallbackGenerator struct {
	catalog *catalog.Catalog
	mu      sync.Mutex
	rng     *rand.Rand
}

// NewFallbackGenerator seeds from the clock when seed is 0.
func NewFallbackGenerator(cat *catalog.Catalog, seed int64) *FallbackGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &FallbackGenerator{
		catalog: cat,
		rng:     rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
	}
}

// Generate picks a catalog character uniformly with a confidence in
// [75,95). The triple strategy yields a SingleMatch, JSON a one entry
// MultiMatch.
func (g *FallbackGenerator) Generate(strategy domain.Strategy, profile *domain.UserProfile) domain.MatchResult {
	g.mu.Lock()
	character := g.catalog.At(g.rng.IntN(g.catalog.Len()))
	span := constants.ConfidenceBounds.FallbackMax - constants.ConfidenceBounds.FallbackMin
	confidence := constants.ConfidenceBounds.FallbackMin + g.rng.IntN(span)
	template := fallbackReasonings[g.rng.IntN(len(fallbackReasonings))]
	traits := pickTraits(g.rng, character.Traits, 2)
	g.mu.Unlock()

	who := "This user"
	if profile != nil && (profile.DisplayName != "" || profile.Username != "") {
		who = profile.DisplayLabel()
	}
	reasoning := fmt.Sprintf(template, who, traits[0], traits[1], character.Name, character.Show)

	if strategy == StrategyJSON {
		return domain.NewMultiMatch(domain.MultiMatch{
			TopMatches: []domain.TopMatch{{
				Character:  character.Name,
				Show:       character.Show,
				Confidence: confidence,
				Reasoning:  reasoning,
			}},
			IdentifiedTraits:   traits,
			PersonalitySummary: fmt.Sprintf("%s has a %s and %s personality.", who, traits[0], traits[1]),
		})
	}

	return domain.NewSingleMatch(domain.SingleMatch{
		Character:  character,
		Confidence: confidence,
		Reasoning:  reasoning,
	})
}

// must be called with g.mu held
func pickTraits(rng *rand.Rand, traits []string, n int) []string {
	out := make([]string, 0, n)
	if len(traits) == 0 {
		for len(out) < n {
			out = append(out, "memorable")
		}
		return out
	}

	for _, i := range rng.Perm(len(traits)) {
		if len(out) == n {
			break
		}
		out = append(out, traits[i])
	}
	for len(out) < n {
		out = append(out, traits[0])
	}
	return out
}
