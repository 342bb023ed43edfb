// Package estimate runs the single-shot calorie estimation: it builds the
// provider request for a normalized input, bounds the call with a deadline
// and classifies the answer.
package estimate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"caloriebot/internal/domain"
	"caloriebot/internal/locale"
	"caloriebot/internal/metrics"
)

type Config struct {
	Provider domain.Provider
	Pack     *locale.Pack
	Logger   *slog.Logger

	PhotoTimeout   time.Duration
	TextTimeout    time.Duration
	PhotoMaxTokens int
	TextMaxTokens  int
	Temperature    float64
	ImageDetail    string
}

// Pipeline is safe for concurrent use; it keeps no per-request state.
type Pipeline struct {
	provider domain.Provider
	pack     *locale.Pack
	logger   *slog.Logger

	photoTimeout   time.Duration
	textTimeout    time.Duration
	photoMaxTokens int
	textMaxTokens  int
	temperature    float64
	imageDetail    string
}

func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PhotoTimeout <= 0 {
		cfg.PhotoTimeout = 15 * time.Second
	}
	if cfg.TextTimeout <= 0 {
		cfg.TextTimeout = 6 * time.Second
	}
	if cfg.PhotoMaxTokens <= 0 {
		cfg.PhotoMaxTokens = 80
	}
	if cfg.TextMaxTokens <= 0 {
		cfg.TextMaxTokens = 60
	}
	if cfg.ImageDetail == "" {
		cfg.ImageDetail = "low"
	}
	return &Pipeline{
		provider:       cfg.Provider,
		pack:           cfg.Pack,
		logger:         cfg.Logger,
		photoTimeout:   cfg.PhotoTimeout,
		textTimeout:    cfg.TextTimeout,
		photoMaxTokens: cfg.PhotoMaxTokens,
		textMaxTokens:  cfg.TextMaxTokens,
		temperature:    cfg.Temperature,
		imageDetail:    cfg.ImageDetail,
	}
}

// BuildRequest returns the provider request for in.
func (p *Pipeline) BuildRequest(in domain.NormalizedInput) domain.AnalysisRequest {
	if in.Kind == domain.KindPhoto {
		return domain.AnalysisRequest{
			Prompt:      p.pack.Prompt.Photo,
			Image:       in.Image,
			MaxTokens:   p.photoMaxTokens,
			Temperature: p.temperature,
			Timeout:     p.photoTimeout,
			ImageDetail: p.imageDetail,
		}
	}
	return domain.AnalysisRequest{
		Prompt:      p.pack.TextPrompt(in.Text),
		MaxTokens:   p.textMaxTokens,
		Temperature: p.temperature,
		Timeout:     p.textTimeout,
	}
}

type callResult struct {
	text string
	err  error
}

// Estimate performs exactly one provider call and always returns a result;
// failures are encoded in the result kind.
func (p *Pipeline) Estimate(ctx context.Context, in domain.NormalizedInput) domain.AnalysisResult {
	req := p.BuildRequest(in)
	res := domain.AnalysisResult{Source: in.Kind}

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	// The provider runs on its own goroutine so a backend that ignores ctx
	// still cannot hold the turn past its deadline.
	done := make(chan callResult, 1)
	start := time.Now()
	go func() {
		text, err := p.provider.Analyze(ctx, req)
		done <- callResult{text: text, err: err}
	}()

	var call callResult
	select {
	case call = <-done:
	case <-ctx.Done():
		call = callResult{err: ctx.Err()}
	}
	elapsed := time.Since(start)
	metrics.ProviderLatency.Observe(elapsed.Seconds())

	switch {
	case call.err != nil && errors.Is(call.err, context.DeadlineExceeded):
		res.Kind = domain.ResultTimedOut
		res.Err = fmt.Errorf("%s analysis after %s: %w", in.Kind, req.Timeout, call.err)
	case call.err != nil:
		res.Kind = domain.ResultProviderError
		res.Err = fmt.Errorf("provider %s: %w", p.provider.Name(), call.err)
	default:
		kind, estimate, err := Classify(call.text, p.pack.Sentinels)
		res.Kind = kind
		res.Estimate = estimate
		if err != nil {
			res.Err = fmt.Errorf("provider %s: %w", p.provider.Name(), err)
		}
	}

	metrics.Estimate(in.Kind.String(), res.Kind.String()).Inc()
	if res.Err != nil {
		p.logger.Warn("estimation failed",
			"source", in.Kind.String(),
			"outcome", res.Kind.String(),
			"provider", p.provider.Name(),
			"elapsed", elapsed,
			"err", res.Err,
		)
	} else {
		p.logger.Debug("estimation done",
			"source", in.Kind.String(),
			"outcome", res.Kind.String(),
			"elapsed", elapsed,
		)
	}
	return res
}
