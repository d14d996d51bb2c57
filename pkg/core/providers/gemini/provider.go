// Package gemini implements the streaming text backend on the Gemini REST API.
package gemini

import (
	"context"
	"net/http"
	"strings"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/types"
)

const (
	// DefaultBaseURL is the default Gemini API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// Provider implements core.Provider against the Gemini API.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ core.Provider = (*Provider)(nil)

// New creates a new Gemini provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.baseURL = strings.TrimRight(p.baseURL, "/")
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "gemini"
}

// StreamGenerate sends a streamGenerateContent request and returns its text deltas.
func (p *Provider) StreamGenerate(ctx context.Context, req *types.GenerateRequest) (core.TextStream, error) {
	if req == nil {
		return nil, core.NewInvalidRequestError("request must not be nil")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return nil, core.NewInvalidRequestErrorWithParam("model must not be empty", "model")
	}

	body, err := p.doStreamRequest(ctx, model, buildRequest(req))
	if err != nil {
		return nil, err
	}
	return newTextStream(body), nil
}
