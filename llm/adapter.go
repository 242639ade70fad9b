package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/superflowai/superflow/model"
)

// Request carries one streaming chat completion call.
type Request struct {
	APIUrl         string
	APIKey         string
	Model          string
	Messages       []model.LLMMessage
	Temperature    float64
	EnableThinking bool
}

// Adapter streams chat completions from one provider platform. CallStreaming
// pushes content chunks through emit in arrival order and returns the token
// usage reported at end of stream. When EnableThinking is set and the platform
// returns separate reasoning content, the reasoning span is wrapped in a
// <think>...</think> marker inline with the content chunks.
type Adapter interface {
	SupportedPlatforms() []string
	CallStreaming(ctx context.Context, req Request, emit func(chunk string) error) (model.TokenUsage, error)
}

// Registry resolves an adapter by platform name. An unknown platform falls
// back to the first registered adapter.
type Registry struct {
	adapters []Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

func (r *Registry) Resolve(platformName string) (Adapter, error) {
	if len(r.adapters) == 0 {
		return nil, errors.New("no llm adapters registered")
	}
	for _, adapter := range r.adapters {
		for _, platform := range adapter.SupportedPlatforms() {
			if strings.EqualFold(platform, platformName) {
				return adapter, nil
			}
		}
	}
	return r.adapters[0], nil
}
