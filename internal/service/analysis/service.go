package analysis

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/catalog"
	"github.com/kapu/sitcom-match-go/internal/constants"
	"github.com/kapu/sitcom-match-go/internal/domain"
	"github.com/kapu/sitcom-match-go/internal/prompt"
	"github.com/kapu/sitcom-match-go/internal/service/ai"
	"github.com/kapu/sitcom-match-go/internal/util"
	apperrors "github.com/kapu/sitcom-match-go/pkg/errors"
)

// AnalyzeRequest is the collected input for one analysis.
type AnalyzeRequest struct {
	Profile  *domain.UserProfile
	Casts    []domain.Cast
	Strategy domain.Strategy // empty selects the service default
}

// Outcome is a validated match plus provenance.
type Outcome struct {
	Result               domain.MatchResult
	Strategy             domain.Strategy
	Provider             string
	Model                string
	UsedProviderFallback bool
	CastsAnalyzed        int
}

type Service struct {
	catalog   *catalog.Catalog
	prompts   *prompt.PromptBuilder
	completer ai.Completer
	strategy  domain.Strategy
	logger    *zap.Logger
}

func NewService(cat *catalog.Catalog, prompts *prompt.PromptBuilder, completer ai.Completer, strategy domain.Strategy, logger *zap.Logger) *Service {
	if strategy == "" {
		strategy = StrategyJSON
	}
	return &Service{
		catalog:   cat,
		prompts:   prompts,
		completer: completer,
		strategy:  strategy,
		logger:    logger,
	}
}

func (s *Service) DefaultStrategy() domain.Strategy {
	return s.strategy
}

func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Analyze builds the prompt, requests one completion and parses it. It
// returns typed errors and never substitutes a fallback result.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*Outcome, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = s.strategy
	}
	strategy, err := domain.ParseStrategy(string(strategy))
	if err != nil {
		return nil, apperrors.NewValidationError("strategy must be json or triple", "strategy", string(req.Strategy))
	}

	casts := req.Casts
	if len(casts) > constants.AnalysisLimits.MaxCastsAnalyzed {
		casts = casts[:constants.AnalysisLimits.MaxCastsAnalyzed]
	}

	promptText, err := s.prompts.BuildAnalysisPrompt(strategy, s.catalog.Characters(), prompt.AnalysisInput{
		Profile: req.Profile,
		Casts:   casts,
	})
	if err != nil {
		return nil, err
	}

	opts := &ai.GenerateOptions{}
	if strategy == StrategyJSON {
		opts.JSONMode = true
		opts.Schema = prompt.AnalysisSchema()
	}

	s.logger.Info("Requesting character analysis",
		zap.String("strategy", strategy.String()),
		zap.Int("casts", len(casts)),
	)

	completion, err := s.completer.Complete(ctx, promptText, ai.PresetAnalysis, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !isDependencyError(err) {
			return nil, apperrors.NewDependencyTimeout("llm", "complete", err)
		}
		return nil, err
	}

	s.logger.Debug("Completion received",
		zap.String("provider", completion.Provider),
		zap.Int("length", len(completion.Text)),
		zap.String("preview", util.Preview(completion.Text, constants.AnalysisLimits.PreviewLength)),
	)

	result, err := Parse(completion.Text, s.catalog, strategy)
	if err != nil {
		s.logParseFailure(err, completion)
		return nil, err
	}

	name, confidence := result.Headline()
	s.logger.Info("Character analysis completed",
		zap.String("provider", completion.Provider),
		zap.String("character", name),
		zap.Int("confidence", confidence),
	)

	return &Outcome{
		Result:               result,
		Strategy:             strategy,
		Provider:             completion.Provider,
		Model:                completion.Model,
		UsedProviderFallback: completion.UsedFallback,
		CastsAnalyzed:        len(casts),
	}, nil
}

func (s *Service) logParseFailure(err error, completion *ai.Completion) {
	fields := []zap.Field{
		zap.String("provider", completion.Provider),
		zap.Error(err),
		zap.String("response_preview", util.Preview(completion.Text, constants.AnalysisLimits.PreviewLength)),
	}

	var pe *apperrors.ParseError
	if errors.As(err, &pe) {
		fields = append(fields, zap.String("kind", string(pe.Kind)))
		if truncated, ok := pe.Context["truncated"].(string); ok {
			fields = append(fields, zap.String("truncated_preview", util.Preview(truncated, constants.AnalysisLimits.PreviewLength)))
		}
	}

	s.logger.Warn("Failed to parse completion", fields...)
}

func isDependencyError(err error) bool {
	var de *apperrors.DependencyError
	return errors.As(err, &de)
}
