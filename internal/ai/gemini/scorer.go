package gemini

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/The-Batman-Code/literate-happiness/internal/ai"
	"github.com/The-Batman-Code/literate-happiness/internal/ranking"
	"github.com/The-Batman-Code/literate-happiness/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	GenerateContentWithCache(ctx context.Context, prompt, cacheName string) (string, error)
	EnsureResumeCache(ctx context.Context, resumeID, displayName, resumePayload string) (string, error)
}

// Scorer rates job records against a resume with Gemini.
type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	maxScore            = 10
)

func NewScorer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Scorer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (s *Scorer) Score(ctx context.Context, record ranking.Record, resume string) (*ai.FitScore, error) {
	if strings.TrimSpace(resume) == "" {
		return nil, fmt.Errorf("resume text is required")
	}

	recordJSON, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal record payload: %w", err)
	}

	// The resume repeats across every scored record, so it lives in a
	// cached content resource when the API cooperates. Otherwise it is
	// sent inline with each prompt.
	cacheName := s.ensureResumeCache(ctx, resume)

	var prompt string
	if cacheName != "" {
		prompt = buildCachedPrompt(string(recordJSON))
	} else {
		prompt = buildPrompt(resume, string(recordJSON))
	}

	s.logger.Debug("gemini score request",
		zap.String("record_id", record.ID),
		zap.String("company", record.Company),
		zap.Bool("resume_cached", cacheName != ""),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	var raw string
	if cacheName != "" {
		raw, err = s.generator.GenerateContentWithCache(ctx, prompt, cacheName)
	} else {
		raw, err = s.generator.GenerateContent(ctx, prompt)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini score response",
		zap.String("record_id", record.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	fit, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	fit.Raw = raw
	return fit, nil
}

// ensureResumeCache is best effort. A cache failure only means the
// resume travels inline, never a failed score.
func (s *Scorer) ensureResumeCache(ctx context.Context, resume string) string {
	hash := sha256.Sum256([]byte(resume))
	resumeID := fmt.Sprintf("%x", hash[:8])

	cacheName, err := s.generator.EnsureResumeCache(ctx, resumeID, "job-research-resume", resume)
	if err != nil {
		s.logger.Debug("resume cache unavailable, sending resume inline", zap.Error(err))
		return ""
	}
	return cacheName
}

func buildPrompt(resume, recordJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Resume:\n{{RESUME}}\n\nJob posting:\n{{JOB_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{RESUME}}", resume)
	prompt = strings.ReplaceAll(prompt, "{{JOB_JSON}}", recordJSON)
	return prompt
}

// buildCachedPrompt points the model at the resume already held in the
// cached content instead of repeating it.
func buildCachedPrompt(recordJSON string) string {
	return buildPrompt("(provided in the cached context above)", recordJSON)
}

func parseResponse(raw string) (*ai.FitScore, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return nil, fmt.Errorf("gemini response has no usable score")
	}
	score = math.Max(0, math.Min(maxScore, score))

	return &ai.FitScore{
		Score:  score,
		Reason: coerceString(data["reason"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
