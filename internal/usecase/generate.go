package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"ragalert/internal/domain"
	"ragalert/internal/port"
)

var promptTemplate = template.Must(template.New("prompt").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(`Utiliza los siguientes fragmentos de contexto para responder la pregunta del final. Si la respuesta no está en el contexto, dilo claramente y no inventes información.

Contexto:
{{range $i, $s := .Segments}}
[{{inc $i}}] {{$s.Source}}, página {{$s.Page}}:
{{$s.Text}}
{{else}}
(no hay documentos disponibles)
{{end}}
Pregunta: {{.Question}}

Responde en {{.Language}}, en un máximo de {{.MaxWords}} palabras.`))

// GeneratorConfig holds the prompt and sampling settings.
type GeneratorConfig struct {
	Persona     string
	Language    string
	MaxWords    int
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Fallback    string
}

// AnswerGenerator conditions the model on retrieved segments.
type AnswerGenerator struct {
	llm    port.LLM
	cfg    GeneratorConfig
	logger *slog.Logger
}

func NewAnswerGenerator(llm port.LLM, cfg GeneratorConfig, logger *slog.Logger) *AnswerGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = 150
	}
	return &AnswerGenerator{llm: llm, cfg: cfg, logger: logger}
}

// Prompt renders the user message for question and segments.
func (g *AnswerGenerator) Prompt(question string, segments []domain.Segment) (string, error) {
	var sb strings.Builder
	err := promptTemplate.Execute(&sb, struct {
		Question string
		Segments []domain.Segment
		Language string
		MaxWords int
	}{question, segments, g.cfg.Language, g.cfg.MaxWords})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Generate never fails: when the model call errors or times out the
// configured fallback text is returned. A nil temperature uses the
// configured default.
func (g *AnswerGenerator) Generate(ctx context.Context, question string, segments []domain.Segment, temperature *float64) domain.Answer {
	answer := domain.Answer{Text: g.cfg.Fallback, Sources: segments}

	prompt, err := g.Prompt(question, segments)
	if err != nil {
		g.logger.Error("failed to render prompt", "error", err)
		return answer
	}

	temp := g.cfg.Temperature
	if temperature != nil {
		temp = *temperature
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := g.llm.Chat(ctx, port.ChatRequest{
		System:      g.cfg.Persona,
		User:        prompt,
		Temperature: temp,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%w: empty completion", domain.ErrUpstream)
	}
	if err != nil {
		g.logger.Warn("llm call failed, using fallback answer",
			"model", g.llm.ModelName(),
			"duration", time.Since(start),
			"error", err)
		return answer
	}

	g.logger.Debug("llm answered", "model", g.llm.ModelName(), "segments", len(segments), "duration", time.Since(start))
	answer.Text = text
	return answer
}
