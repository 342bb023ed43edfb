package domain

import (
	"context"
	"time"
)

// Provider is the interface every inference backend implements.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, req AnalysisRequest) (string, error)
	Healthy(ctx context.Context) error
}

// AnalysisRequest is a single prompt (optionally with an inlined image) plus
// generation parameters. It is built fresh per call and not mutated afterwards.
type AnalysisRequest struct {
	Prompt      string
	Image       *NormalizedImage
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	ImageDetail string // "low" | "high" | "auto"; ignored by providers without the notion
}
