package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kapu/sitcom-match-go/internal/constants"
	"github.com/kapu/sitcom-match-go/internal/prompt"
)

const jsonSystemInstruction = "You are a professional personality analyst. You must respond with valid JSON only. Do not include any text outside the JSON object."

// Provider is one language model backend behind the ModelManager.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, preset ModelPreset, opts *GenerateOptions) (ProviderResult, error)
	Ping(ctx context.Context) bool
}

type ProviderResult struct {
	Text  string
	Model string
}

// GeminiProvider wraps the Gemini client with preset-aware generation logic.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
	logger       *zap.Logger
}

func NewGeminiProvider(ctx context.Context, apiKey, defaultModel string, logger *zap.Logger) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if defaultModel == "" {
		defaultModel = constants.LLMConfig.DefaultGeminiModel
	}
	return &GeminiProvider{
		client:       client,
		defaultModel: defaultModel,
		logger:       logger,
	}, nil
}

func (g *GeminiProvider) Name() string {
	return "Gemini"
}

func (g *GeminiProvider) DefaultModel() string {
	return g.defaultModel
}

func (g *GeminiProvider) Generate(ctx context.Context, promptText string, preset ModelPreset, opts *GenerateOptions) (ProviderResult, error) {
	if g.client == nil {
		return ProviderResult{}, fmt.Errorf("gemini client not initialized")
	}

	modelName := g.getModel(opts)
	config := GetPresetConfig(preset)

	if opts != nil && opts.Overrides != nil {
		if opts.Overrides.Temperature > 0 {
			config.Temperature = opts.Overrides.Temperature
		}
		if opts.Overrides.TopP > 0 {
			config.TopP = opts.Overrides.TopP
		}
		if opts.Overrides.TopK > 0 {
			config.TopK = opts.Overrides.TopK
		}
		if opts.Overrides.MaxOutputTokens > 0 {
			config.MaxOutputTokens = opts.Overrides.MaxOutputTokens
		}
	}

	jsonMode := opts != nil && opts.JSONMode
	if jsonMode {
		config.ResponseMimeType = "application/json"
	}

	g.logger.Debug("Generating with Gemini",
		zap.String("model", modelName),
		zap.String("preset", string(preset)),
		zap.Bool("json_mode", jsonMode),
	)

	topK := float32(config.TopK)
	genConfig := &genai.GenerateContentConfig{
		Temperature:      &config.Temperature,
		TopP:             &config.TopP,
		TopK:             &topK,
		MaxOutputTokens:  int32(config.MaxOutputTokens),
		ResponseMIMEType: config.ResponseMimeType,
	}
	if jsonMode {
		genConfig.SystemInstruction = genai.NewContentFromText(jsonSystemInstruction, genai.RoleUser)
		if opts.Schema != nil {
			genConfig.ResponseJsonSchema = opts.Schema
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, modelName, []*genai.Content{
		genai.NewContentFromText(promptText, genai.RoleUser),
	}, genConfig)
	if err != nil {
		g.logger.Error("Gemini generation failed", zap.Error(err))
		return ProviderResult{}, err
	}

	text := extractTextFromGeminiResponse(resp)
	if text == "" {
		return ProviderResult{}, fmt.Errorf("empty response from Gemini")
	}

	g.logger.Debug("Gemini response received", zap.Int("length", len(text)))
	return ProviderResult{Text: text, Model: modelName}, nil
}

func (g *GeminiProvider) Ping(ctx context.Context) bool {
	if g.client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, constants.LLMConfig.PingTimeout)
	defer cancel()

	g.logger.Debug("Pinging Gemini API...")

	temp := float32(0)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: 10,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.defaultModel, []*genai.Content{
		genai.NewContentFromText("ping", genai.RoleUser),
	}, config)
	if err != nil {
		g.logger.Debug("Gemini ping failed", zap.Error(err))
		return false
	}

	return extractTextFromGeminiResponse(resp) != ""
}

func (g *GeminiProvider) getModel(opts *GenerateOptions) string {
	if opts != nil && opts.Model != "" {
		return opts.Model
	}
	return g.defaultModel
}

// OpenAIProvider talks to any OpenAI compatible chat completion API. Groq is
// served by the same type with a different base URL.
type OpenAIProvider struct {
	name             string
	client           *openai.Client
	defaultModel     string
	structuredOutput bool
	logger           *zap.Logger
}

func NewOpenAIProvider(apiKey, defaultModel string, logger *zap.Logger, opts ...option.RequestOption) *OpenAIProvider {
	if apiKey == "" {
		return nil
	}
	if defaultModel == "" {
		defaultModel = constants.LLMConfig.DefaultOpenAIModel
	}
	return newOpenAICompatibleProvider("OpenAI", apiKey, defaultModel, true, logger, opts...)
}

// NewGroqProvider uses Groq's OpenAI compatible endpoint. Groq models get
// plain JSON mode instead of strict schemas.
func NewGroqProvider(apiKey, defaultModel string, logger *zap.Logger, opts ...option.RequestOption) *OpenAIProvider {
	if apiKey == "" {
		return nil
	}
	if defaultModel == "" {
		defaultModel = constants.LLMConfig.DefaultGroqModel
	}
	opts = append([]option.RequestOption{option.WithBaseURL(constants.LLMConfig.GroqBaseURL)}, opts...)
	return newOpenAICompatibleProvider("Groq", apiKey, defaultModel, false, logger, opts...)
}

func newOpenAICompatibleProvider(name, apiKey, defaultModel string, structuredOutput bool, logger *zap.Logger, opts ...option.RequestOption) *OpenAIProvider {
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := openai.NewClient(clientOpts...)
	return &OpenAIProvider{
		name:             name,
		client:           &client,
		defaultModel:     defaultModel,
		structuredOutput: structuredOutput,
		logger:           logger,
	}
}

func (o *OpenAIProvider) Name() string {
	return o.name
}

func (o *OpenAIProvider) Generate(ctx context.Context, promptText string, preset ModelPreset, opts *GenerateOptions) (ProviderResult, error) {
	if o.client == nil {
		return ProviderResult{}, fmt.Errorf("%s client not initialized", o.name)
	}

	modelName := o.getModel(opts)
	config := GetOpenAIPresetConfig(preset)
	if opts != nil && opts.Overrides != nil {
		if opts.Overrides.Temperature > 0 {
			config.Temperature = opts.Overrides.Temperature
		}
		if opts.Overrides.TopP > 0 {
			config.TopP = opts.Overrides.TopP
		}
		if opts.Overrides.MaxOutputTokens > 0 {
			config.MaxTokens = opts.Overrides.MaxOutputTokens
		}
	}

	o.logger.Debug("Generating with OpenAI compatible API",
		zap.String("provider", o.name),
		zap.String("model", modelName),
		zap.String("preset", string(preset)),
	)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(promptText),
	}

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(modelName),
		MaxCompletionTokens: openai.Int(int64(config.MaxTokens)),
	}

	if opts != nil && opts.JSONMode {
		messages = []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(jsonSystemInstruction),
			openai.UserMessage(promptText),
		}
		params.ResponseFormat = o.responseFormat(opts)
	}
	params.Messages = messages

	if !isReasoningModel(modelName) {
		params.Temperature = openai.Float(float64(config.Temperature))
		params.TopP = openai.Float(float64(config.TopP))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		o.logger.Error("Chat completion failed", zap.String("provider", o.name), zap.Error(err))
		return ProviderResult{}, err
	}

	if len(resp.Choices) == 0 {
		return ProviderResult{}, fmt.Errorf("no choices in %s response", o.name)
	}

	text := resp.Choices[0].Message.Content
	cachedTokens := resp.Usage.PromptTokensDetails.CachedTokens

	o.logger.Info("Chat completion received",
		zap.String("provider", o.name),
		zap.Int("length", len(text)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int64("cached_tokens", cachedTokens),
	)

	return ProviderResult{Text: text, Model: modelName}, nil
}

func (o *OpenAIProvider) responseFormat(opts *GenerateOptions) openai.ChatCompletionNewParamsResponseFormatUnion {
	if o.structuredOutput && opts.Schema != nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   prompt.AnalysisSchemaName,
					Strict: openai.Bool(true),
					Schema: opts.Schema,
				},
			},
		}
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
	}
}

func (o *OpenAIProvider) Ping(ctx context.Context) bool {
	if o.client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, constants.LLMConfig.PingTimeout)
	defer cancel()

	o.logger.Debug("Pinging chat completion API...", zap.String("provider", o.name))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.defaultModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("ping"),
		},
		MaxCompletionTokens: openai.Int(10),
	})
	if err != nil {
		o.logger.Debug("Ping failed", zap.String("provider", o.name), zap.Error(err))
		return false
	}

	return len(resp.Choices) > 0
}

func (o *OpenAIProvider) getModel(opts *GenerateOptions) string {
	if opts != nil && opts.Model != "" {
		return opts.Model
	}
	return o.defaultModel
}

func isReasoningModel(model string) bool {
	return strings.HasPrefix(model, "gpt-5") || strings.HasPrefix(model, "o1") ||
		strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4")
}

func extractTextFromGeminiResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return ""
	}

	var texts []string
	for _, part := range candidate.Content.Parts {
		if part.Text != "" && !part.Thought {
			texts = append(texts, part.Text)
		}
	}

	return strings.Join(texts, "")
}
