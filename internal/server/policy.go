package server

import (
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/domain"
	"github.com/kapu/sitcom-match-go/internal/service/analysis"
	"github.com/kapu/sitcom-match-go/pkg/errors"
)

// analysisPolicy is the single place that decides whether a failed analysis
// is replaced by a locally generated result.
type analysisPolicy struct {
	fallback *analysis.FallbackGenerator
	enabled  bool
	logger   *zap.Logger
}

// recoverable reports whether err came from the model side: an unusable
// completion or a failed completion call.
func recoverable(err error) bool {
	var (
		pe *errors.ParseError
		de *errors.DependencyError
	)
	return stderrors.As(err, &pe) || stderrors.As(err, &de)
}

// resolve returns a substitute result for err, or false when err must be
// surfaced to the caller.
func (p analysisPolicy) resolve(strategy domain.Strategy, profile *domain.UserProfile, err error) (domain.MatchResult, bool) {
	if !p.enabled || !recoverable(err) {
		return domain.MatchResult{}, false
	}

	result := p.fallback.Generate(strategy, profile)
	name, confidence := result.Headline()
	p.logger.Warn("Analysis failed, serving fallback result",
		zap.String("code", errors.CodeOf(err)),
		zap.String("strategy", strategy.String()),
		zap.String("character", name),
		zap.Int("confidence", confidence),
		zap.Error(err),
	)
	return result, true
}
