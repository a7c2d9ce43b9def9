package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	analysis "github.com/escuta-ai/escuta/backend/internal/analysis/sentiment"
	"github.com/escuta-ai/escuta/backend/internal/service/ai"
)

// Config controls the sentiment service.
type Config struct {
	LLMEnabled bool
	// Timeout bounds one classifier call; zero means no extra deadline.
	Timeout time.Duration
}

// Service rates the mood of a text with the model and falls back to keyword heuristics.
type Service struct {
	completer ai.Completer
	enabled   bool
	timeout   time.Duration
	schema    *gojsonschema.Schema
	fallback  func(text string) analysis.Result
	logger    *zap.Logger
}

// NewService creates the sentiment service. completer may be nil when no model is configured.
func NewService(completer ai.Completer, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(resultSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile sentiment schema: %w", err)
	}

	return &Service{
		completer: completer,
		enabled:   cfg.LLMEnabled && completer != nil,
		timeout:   cfg.Timeout,
		schema:    schema,
		fallback:  analysis.Analyze,
		logger:    logger,
	}, nil
}

// Enabled reports whether the model classifier is in use.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled
}

// Analyze returns a rating for text. It never fails; model problems degrade to the heuristic.
func (s *Service) Analyze(ctx context.Context, text string) analysis.Result {
	text = strings.TrimSpace(text)
	if !s.Enabled() || text == "" {
		return s.fallback(text)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	raw, err := s.completer.Complete(ctx, ai.Prompt{System: classifierPrompt, Query: text})
	if err != nil {
		s.logger.Warn("sentiment classifier failed, using heuristic", zap.Error(err))
		return s.fallback(text)
	}

	result, err := s.parse(raw)
	if err != nil {
		s.logger.Warn("sentiment classifier output rejected, using heuristic", zap.Error(err))
		return s.fallback(text)
	}

	// Keep the heuristic's safety net: distress keywords always win.
	if heuristic := s.fallback(text); heuristic.Label == analysis.Distress {
		return heuristic
	}
	return result
}

type classifierPayload struct {
	Rating      float64  `json:"rating"`
	Confidence  *float64 `json:"confidence"`
	Suggestions []string `json:"suggestions"`
}

func (s *Service) parse(content string) (analysis.Result, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return analysis.Result{}, fmt.Errorf("missing json object")
	}
	doc := trimmed[start : end+1]

	validation, err := s.schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return analysis.Result{}, fmt.Errorf("validate classifier output: %w", err)
	}
	if !validation.Valid() {
		msgs := make([]string, 0, len(validation.Errors()))
		for _, e := range validation.Errors() {
			msgs = append(msgs, e.String())
		}
		return analysis.Result{}, fmt.Errorf("classifier output invalid: %s", strings.Join(msgs, "; "))
	}

	var payload classifierPayload
	if err := json.Unmarshal([]byte(doc), &payload); err != nil {
		return analysis.Result{}, err
	}

	confidence := 0.5
	if payload.Confidence != nil {
		confidence = analysis.ClampConfidence(*payload.Confidence)
	}

	suggestions := make([]string, 0, len(payload.Suggestions))
	for _, sug := range payload.Suggestions {
		if sug = strings.TrimSpace(sug); sug != "" {
			suggestions = append(suggestions, sug)
		}
	}

	rating := analysis.ClampRating(payload.Rating)
	return analysis.Result{
		Rating:      rating,
		Confidence:  confidence,
		Suggestions: suggestions,
		Label:       analysis.LabelForRating(rating),
	}, nil
}

// Ratings outside 1-5 are clamped after validation rather than rejected.
const resultSchema = `{
	"type": "object",
	"required": ["rating"],
	"properties": {
		"rating": {"type": "number"},
		"confidence": {"type": "number"},
		"suggestions": {"type": "array", "items": {"type": "string"}, "maxItems": 5}
	}
}`

const classifierPrompt = `Você é um especialista em análise de sentimentos. Analise o texto fornecido e retorne apenas um JSON com:
- rating: nota de 1 a 5 (1=muito negativo, 3=neutro, 5=muito positivo)
- confidence: confiança da análise de 0 a 1
- suggestions: array de 2-3 sugestões breves de apoio emocional em português`
