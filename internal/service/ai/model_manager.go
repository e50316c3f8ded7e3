package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kapu/sitcom-match-go/internal/constants"
	"github.com/kapu/sitcom-match-go/internal/util"
	apperrors "github.com/kapu/sitcom-match-go/pkg/errors"
)

const serviceName = "llm"

var (
	statusCodeRegex = regexp.MustCompile(`\b(5\d{2})\b`)
	geminiCodeRegex = regexp.MustCompile(`"code":(\d{3})`)
	openaiCodeRegex = regexp.MustCompile(`^(\d{3})\s`)
)

// ModelManager sends completions to a primary provider, switching to an
// optional fallback provider when the primary fails.
type ModelManager struct {
	primary        Provider
	fallback       Provider
	timeout        time.Duration
	logger         *zap.Logger
	circuitBreaker *util.CircuitBreaker
}

type ModelManagerConfig struct {
	GroqAPIKey     string
	GroqModel      string
	OpenAIAPIKey   string
	OpenAIModel    string
	GeminiAPIKey   string
	GeminiModel    string
	EnableFallback bool
	Timeout        time.Duration
}

// HasProvider reports whether at least one provider key is configured.
func (c ModelManagerConfig) HasProvider() bool {
	return c.GroqAPIKey != "" || c.OpenAIAPIKey != "" || c.GeminiAPIKey != ""
}

// NewModelManager builds providers in priority order Groq, OpenAI, Gemini.
// The first configured one is primary and the next one becomes the fallback.
func NewModelManager(ctx context.Context, cfg ModelManagerConfig, logger *zap.Logger) (*ModelManager, error) {
	var providers []Provider

	if p := NewGroqProvider(cfg.GroqAPIKey, cfg.GroqModel, logger); p != nil {
		providers = append(providers, p)
	}
	if p := NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger); p != nil {
		providers = append(providers, p)
	}
	if cfg.GeminiAPIKey != "" {
		p, err := NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no LLM provider API key configured")
	}

	var fallback Provider
	if cfg.EnableFallback && len(providers) > 1 {
		fallback = providers[1]
		logger.Info("LLM fallback enabled", zap.String("fallback", fallback.Name()))
	} else {
		logger.Info("LLM fallback disabled")
	}

	return newModelManager(providers[0], fallback, cfg.Timeout, logger), nil
}

func newModelManager(primary, fallback Provider, timeout time.Duration, logger *zap.Logger) *ModelManager {
	if timeout <= 0 {
		timeout = constants.LLMConfig.DefaultTimeout
	}

	mm := &ModelManager{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger,
	}
	mm.circuitBreaker = util.NewCircuitBreaker(
		serviceName,
		constants.CircuitBreakerConfig.FailureThreshold,
		constants.CircuitBreakerConfig.ResetTimeout,
		constants.CircuitBreakerConfig.HealthCheckInterval,
		mm.healthCheckPing,
		logger,
	)

	logger.Info("LLM model manager ready",
		zap.String("primary", primary.Name()),
		zap.Duration("timeout", timeout),
	)
	return mm
}

// Complete returns the raw completion text. Each provider attempt is bounded
// by the configured timeout; an exceeded deadline becomes DEPENDENCY_TIMEOUT.
func (mm *ModelManager) Complete(ctx context.Context, prompt string, preset ModelPreset, opts *GenerateOptions) (*Completion, error) {
	if !mm.circuitBreaker.CanExecute() {
		status := mm.circuitBreaker.Status()
		nextRetry := "unknown"
		if status.NextRetryTime != nil {
			nextRetry = status.NextRetryTime.Format(time.RFC3339)
		}

		mm.logger.Error("AI service unavailable (Circuit OPEN)",
			zap.String("state", status.State.String()),
			zap.Int("failure_count", status.FailureCount),
			zap.String("next_retry", nextRetry),
		)

		return nil, apperrors.NewDependencyError("AI service is temporarily unavailable", serviceName, "complete",
			fmt.Errorf("circuit open until %s", nextRetry))
	}

	primaryResult, primaryErr := mm.invokeProvider(ctx, mm.primary, prompt, preset, opts)
	if primaryErr == nil {
		mm.circuitBreaker.RecordSuccess()
		return &Completion{
			Text:     primaryResult.Text,
			Provider: mm.primary.Name(),
			Model:    primaryResult.Model,
		}, nil
	}

	if mm.fallback != nil && ctx.Err() == nil {
		mm.logger.Warn("Primary provider failed, trying fallback",
			zap.String("primary", mm.primary.Name()),
			zap.String("fallback", mm.fallback.Name()),
			zap.Error(primaryErr),
		)

		fallbackResult, fallbackErr := mm.invokeProvider(ctx, mm.fallback, prompt, preset, opts)
		if fallbackErr == nil {
			mm.circuitBreaker.RecordSuccess()
			return &Completion{
				Text:         fallbackResult.Text,
				Provider:     mm.fallback.Name(),
				Model:        fallbackResult.Model,
				UsedFallback: true,
			}, nil
		}

		mm.recordFailure(primaryErr)
		mm.recordFailure(fallbackErr)
		return nil, mm.wrapError(mm.fallback.Name(), fallbackErr)
	}

	mm.recordFailure(primaryErr)
	return nil, mm.wrapError(mm.primary.Name(), primaryErr)
}

func (mm *ModelManager) invokeProvider(ctx context.Context, provider Provider, prompt string, preset ModelPreset, opts *GenerateOptions) (ProviderResult, error) {
	if provider == nil {
		return ProviderResult{}, fmt.Errorf("model provider is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, mm.timeout)
	defer cancel()

	result, err := provider.Generate(ctx, prompt, preset, opts)
	if err != nil {
		return ProviderResult{}, err
	}
	if strings.TrimSpace(result.Text) == "" {
		return ProviderResult{}, fmt.Errorf("%s API returned empty response", provider.Name())
	}
	return result, nil
}

// wrapError converts a provider failure into the dependency taxonomy. The
// provider message is kept as the cause for logs only.
func (mm *ModelManager) wrapError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewDependencyTimeout(serviceName, "complete", err)
	}
	message := fmt.Sprintf("%s completion failed", provider)
	if mm.isServiceFailure(err) {
		message = "AI service is temporarily unavailable"
	}
	return apperrors.NewDependencyError(message, serviceName, "complete", err)
}

func (mm *ModelManager) recordFailure(err error) {
	if err == nil {
		return
	}

	if !mm.isServiceFailure(err) {
		return
	}

	timeout := constants.CircuitBreakerConfig.ResetTimeout
	if mm.isRateLimitError(err) {
		timeout = constants.CircuitBreakerConfig.RateLimitTimeout
	}

	mm.circuitBreaker.RecordFailure(timeout)
}

func (mm *ModelManager) healthCheckPing() bool {
	mm.logger.Info("Health Check: Testing AI services...")

	ctx, cancel := context.WithTimeout(context.Background(), constants.CircuitBreakerConfig.HealthCheckTimeout)
	defer cancel()

	primaryOK := mm.primary.Ping(ctx)

	fallbackOK := false
	if mm.fallback != nil {
		fallbackOK = mm.fallback.Ping(ctx)
	}

	isHealthy := primaryOK || fallbackOK

	mm.logger.Info("Health Check: Result",
		zap.Bool("primary", primaryOK),
		zap.Bool("fallback", fallbackOK),
		zap.Bool("healthy", isHealthy),
	)

	return isHealthy
}

func (mm *ModelManager) isServiceFailure(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if code, ok := statusCodeOf(err); ok {
		return code == 429 || (code >= 500 && code < 600)
	}

	msg := err.Error()

	if strings.Contains(msg, "timeout") || strings.Contains(msg, "ETIMEDOUT") {
		return true
	}

	if mm.isRateLimitError(err) {
		return true
	}

	if statusCodeRegex.MatchString(msg) {
		return true
	}

	if code, ok := codeFromMessage(msg); ok {
		return code >= 500 && code < 600
	}

	return false
}

func (mm *ModelManager) isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	if code, ok := statusCodeOf(err); ok {
		return code == 429
	}

	msg := err.Error()

	if strings.Contains(msg, "429") || strings.Contains(msg, "Rate limit") || strings.Contains(msg, "quota") {
		return true
	}

	if code, ok := codeFromMessage(msg); ok {
		return code == 429
	}

	return false
}

// statusCodeOf extracts the HTTP status from typed SDK errors.
func statusCodeOf(err error) (int, bool) {
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) && openaiErr.StatusCode != 0 {
		return openaiErr.StatusCode, true
	}
	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) && geminiErr.Code != 0 {
		return geminiErr.Code, true
	}
	return 0, false
}

func codeFromMessage(msg string) (int, bool) {
	for _, re := range []*regexp.Regexp{geminiCodeRegex, openaiCodeRegex} {
		if matches := re.FindStringSubmatch(msg); len(matches) > 1 {
			if code, err := strconv.Atoi(matches[1]); err == nil {
				return code, true
			}
		}
	}
	return 0, false
}

// Status describes the configured providers and the circuit state.
type Status struct {
	Primary  string                    `json:"primary"`
	Fallback string                    `json:"fallback,omitempty"`
	Circuit  util.CircuitBreakerStatus `json:"circuit"`
}

func (mm *ModelManager) Status() Status {
	status := Status{
		Primary: mm.primary.Name(),
		Circuit: mm.circuitBreaker.Status(),
	}
	if mm.fallback != nil {
		status.Fallback = mm.fallback.Name()
	}
	return status
}
