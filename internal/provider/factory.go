package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"caloriebot/internal/config"
	"caloriebot/internal/domain"
)

// Constructor creates a provider from its config section.
type Constructor func(ctx context.Context, pc config.ProviderConfig, logger *slog.Logger) (domain.Provider, error)

// Factory builds inference providers by name.
type Factory struct {
	logger       *slog.Logger
	constructors map[string]Constructor
	mu           sync.RWMutex
}

// NewFactory creates a provider factory with the built-in constructors registered.
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Factory{
		logger:       logger,
		constructors: make(map[string]Constructor),
	}
	f.registerDefaults()
	return f
}

// RegisterConstructor adds (or replaces) a provider constructor by name.
func (f *Factory) RegisterConstructor(name string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[name] = ctor
}

func (f *Factory) registerDefaults() {
	f.constructors["openai"] = func(_ context.Context, pc config.ProviderConfig, logger *slog.Logger) (domain.Provider, error) {
		return NewOpenAI(OpenAIConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.Model, Logger: logger}), nil
	}
	f.constructors["gemini"] = func(ctx context.Context, pc config.ProviderConfig, logger *slog.Logger) (domain.Provider, error) {
		g, err := NewGemini(ctx, GeminiConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.Model, Logger: logger})
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

// Names lists the registered provider names in sorted order.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.constructors))
	for n := range f.constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build creates the provider described by pc.
func (f *Factory) Build(ctx context.Context, pc config.ProviderConfig) (domain.Provider, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[pc.Name]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", pc.Name)
	}

	p, err := ctor(ctx, pc, f.logger.With("provider", pc.Name))
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
	}
	return p, nil
}
