package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/The-Batman-Code/literate-happiness/internal/ranking"
)

type stubGenerator struct {
	response string
	err      error
	// cacheName, when set, makes EnsureResumeCache succeed with it.
	cacheName string

	lastPrompt    string
	lastCacheName string
	cachedPayload string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) GenerateContentWithCache(_ context.Context, prompt, cacheName string) (string, error) {
	s.lastPrompt = prompt
	s.lastCacheName = cacheName
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) EnsureResumeCache(_ context.Context, _, _, resumePayload string) (string, error) {
	if s.cacheName == "" {
		return "", errors.New("caching unavailable")
	}
	s.cachedPayload = resumePayload
	return s.cacheName, nil
}

func TestScorerScore(t *testing.T) {
	stub := &stubGenerator{response: `{"score": 8.5, "reason": "Strong Go background matches the role"}`}
	scorer := NewScorer(stub, zap.NewNop(), 0)

	record := ranking.Record{ID: "42", Title: "Senior Go Developer", Company: "Acme Corp"}

	fit, err := scorer.Score(context.Background(), record, "ten years of Go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fit.Score != 8.5 {
		t.Fatalf("expected score 8.5, got %v", fit.Score)
	}
	if fit.Reason == "" {
		t.Fatal("expected reason to be populated")
	}
	if fit.Raw == "" {
		t.Fatal("expected raw response to be kept")
	}

	if !strings.Contains(stub.lastPrompt, "ten years of Go") {
		t.Fatal("expected resume text in the prompt")
	}
	if !strings.Contains(stub.lastPrompt, "Senior Go Developer") {
		t.Fatal("expected record payload in the prompt")
	}
}

func TestScorerUsesResumeCache(t *testing.T) {
	stub := &stubGenerator{
		response:  `{"score": 7, "reason": "good fit"}`,
		cacheName: "caches/resume-1",
	}
	scorer := NewScorer(stub, zap.NewNop(), 0)

	record := ranking.Record{ID: "42", Title: "Senior Go Developer"}

	fit, err := scorer.Score(context.Background(), record, "ten years of Go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fit.Score != 7 {
		t.Fatalf("expected score 7, got %v", fit.Score)
	}

	if stub.cachedPayload != "ten years of Go" {
		t.Fatalf("expected the resume to be cached, got %q", stub.cachedPayload)
	}
	if stub.lastCacheName != "caches/resume-1" {
		t.Fatalf("expected generation against the cache, got %q", stub.lastCacheName)
	}
	if strings.Contains(stub.lastPrompt, "ten years of Go") {
		t.Fatal("the cached resume must not be repeated in the prompt")
	}
	if !strings.Contains(stub.lastPrompt, "Senior Go Developer") {
		t.Fatal("expected record payload in the prompt")
	}
}

func TestScorerParsesFencedJSON(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"score\": 6, \"reason\": \"partial match\"}\n```"}
	scorer := NewScorer(stub, zap.NewNop(), 0)

	fit, err := scorer.Score(context.Background(), ranking.Record{ID: "1"}, "resume")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fit.Score != 6 {
		t.Fatalf("expected score 6, got %v", fit.Score)
	}
}

func TestScorerClampsScoreIntoRange(t *testing.T) {
	tests := []struct {
		response string
		expect   float64
	}{
		{`{"score": 15, "reason": "overshoot"}`, 10},
		{`{"score": -3, "reason": "undershoot"}`, 0},
		{`{"score": "7.5", "reason": "string score"}`, 7.5},
	}

	for _, tt := range tests {
		stub := &stubGenerator{response: tt.response}
		scorer := NewScorer(stub, zap.NewNop(), 0)

		fit, err := scorer.Score(context.Background(), ranking.Record{ID: "1"}, "resume")
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.response, err)
		}
		if fit.Score != tt.expect {
			t.Fatalf("response %q: expected score %v, got %v", tt.response, tt.expect, fit.Score)
		}
	}
}

func TestScorerErrors(t *testing.T) {
	cases := []struct {
		name string
		stub *stubGenerator
	}{
		{"generator failure", &stubGenerator{err: errors.New("quota exceeded")}},
		{"unparseable response", &stubGenerator{response: "I think it is a great fit!"}},
		{"missing score", &stubGenerator{response: `{"reason": "no score given"}`}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			scorer := NewScorer(tt.stub, zap.NewNop(), 0)
			if _, err := scorer.Score(context.Background(), ranking.Record{ID: "1"}, "resume"); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestScorerRequiresResume(t *testing.T) {
	scorer := NewScorer(&stubGenerator{response: "{}"}, zap.NewNop(), 0)

	if _, err := scorer.Score(context.Background(), ranking.Record{ID: "1"}, "   "); err == nil {
		t.Fatal("expected an error for an empty resume")
	}
}
