package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/constants"
	"github.com/kapu/sitcom-match-go/internal/domain"
	"github.com/kapu/sitcom-match-go/internal/util"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type TemplateName string

const (
	TemplateAnalysisJSON   TemplateName = "analysis_json.tmpl"
	TemplateAnalysisTriple TemplateName = "analysis_triple.tmpl"
)

type PromptBuilder struct {
	mu        sync.RWMutex
	templates map[TemplateName]*template.Template
	logger    *zap.Logger
}

func NewPromptBuilder(logger *zap.Logger) *PromptBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptBuilder{
		templates: make(map[TemplateName]*template.Template),
		logger:    logger,
	}
}

func (pb *PromptBuilder) Render(name TemplateName, data any) (string, error) {
	tmpl, err := pb.getTemplate(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// BuildAnalysisPrompt renders the instruction for strategy. The output is a
// pure function of its arguments.
func (pb *PromptBuilder) BuildAnalysisPrompt(strategy domain.Strategy, characters []domain.CharacterProfile, input AnalysisInput) (string, error) {
	if len(characters) == 0 {
		return "", fmt.Errorf("build analysis prompt: catalog is empty")
	}

	data := AnalysisPromptData{
		CharacterList: renderCharacterList(characters),
		UserBlock:     renderUserBlock(input),
		ExampleName:   characters[0].Name,
	}

	var (
		name     TemplateName
		fallback func(AnalysisPromptData) string
	)
	switch strategy {
	case domain.StrategyJSON:
		name, fallback = TemplateAnalysisJSON, FallbackAnalysisJSONPrompt
	case domain.StrategyTriple:
		name, fallback = TemplateAnalysisTriple, FallbackAnalysisTriplePrompt
	default:
		return "", fmt.Errorf("build analysis prompt: unknown strategy %q", strategy)
	}

	rendered, err := pb.Render(name, data)
	if err != nil {
		pb.logger.Warn("Prompt template unavailable, using fallback prompt",
			zap.String("template", string(name)),
			zap.Error(err),
		)
		return fallback(data), nil
	}
	return rendered, nil
}

func (pb *PromptBuilder) getTemplate(name TemplateName) (*template.Template, error) {
	pb.mu.RLock()
	if tmpl, ok := pb.templates[name]; ok {
		pb.mu.RUnlock()
		return tmpl, nil
	}
	pb.mu.RUnlock()

	filename := filepath.ToSlash(filepath.Join("templates", string(name)))
	content, err := templateFS.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("load prompt template %s: %w", name, err)
	}

	tmpl, err := template.New(string(name)).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.templates[name] = tmpl

	return tmpl, nil
}

func renderCharacterList(characters []domain.CharacterProfile) string {
	var sb strings.Builder
	for i, ch := range characters {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- ")
		sb.WriteString(ch.Name)
		sb.WriteString(" (")
		sb.WriteString(ch.Show)
		sb.WriteString(")")
		if ch.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(ch.Description)
		}
		if len(ch.Traits) > 0 {
			sb.WriteString("\n  Traits: ")
			sb.WriteString(strings.Join(ch.Traits, ", "))
		}
	}
	return sb.String()
}

func renderUserBlock(input AnalysisInput) string {
	profile := domain.UserProfile{}
	if input.Profile != nil {
		profile = *input.Profile
	}

	bio := util.Preview(profile.Bio, constants.AnalysisLimits.MaxBioLength)
	lines := []string{
		"- Username: " + util.FirstNonEmpty(profile.Username, "Unknown"),
		"- Display Name: " + util.FirstNonEmpty(profile.DisplayName, "Unknown"),
		"- Bio: " + util.FirstNonEmpty(bio, "No bio provided"),
		"- Follower Count: " + strconv.Itoa(profile.FollowerCount),
		"- Following Count: " + strconv.Itoa(profile.FollowingCount),
	}

	if len(input.Casts) == 0 {
		lines = append(lines, "- Recent Casts: (no recent casts)")
		return strings.Join(lines, "\n")
	}

	lines = append(lines, "- Recent Casts:")
	for i, c := range input.Casts {
		text := util.Preview(c.Text, constants.AnalysisLimits.MaxCastLength)
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, text))
	}
	return strings.Join(lines, "\n")
}
