package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"

	"caloriebot/internal/domain"
)

// Gemini implements domain.Provider on the Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

type GeminiConfig struct {
	APIKey     string
	APIBase    string // overrides the SDK endpoint; empty for the public API
	Model      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = SharedHTTPClient(defaultHTTPTimeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.APIBase != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.APIBase}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, logger: cfg.Logger}, nil
}

func (g *Gemini) Name() string  { return "gemini" }
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Healthy(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return fmt.Errorf("gemini: %w", err)
	}
	return nil
}

func geminiParts(req domain.AnalysisRequest) ([]*genai.Part, error) {
	parts := []*genai.Part{{Text: req.Prompt}}
	if req.Image != nil {
		data, err := base64.StdEncoding.DecodeString(req.Image.Base64)
		if err != nil {
			return nil, fmt.Errorf("image payload: %w", err)
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: req.Image.MIMEType, Data: data}})
	}
	return parts, nil
}

// Analyze sends one generateContent call and returns the concatenated text parts.
func (g *Gemini) Analyze(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	parts, err := geminiParts(req)
	if err != nil {
		return "", err
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, gc)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	if resp.UsageMetadata != nil {
		g.logger.Debug("gemini response",
			"model", g.model,
			"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
			"completion_tokens", resp.UsageMetadata.CandidatesTokenCount,
		)
	}
	return resp.Text(), nil
}
