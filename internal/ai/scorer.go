package ai

import (
	"context"

	"github.com/The-Batman-Code/literate-happiness/internal/ranking"
)

// FitScore is the outcome of scoring one job record against a resume.
type FitScore struct {
	Score  float64
	Reason string
	Raw    string
}

// Scorer evaluates how well a job record fits the supplied resume text.
// Scores are bounded to [0, 10].
type Scorer interface {
	Score(ctx context.Context, record ranking.Record, resume string) (*FitScore, error)
}
