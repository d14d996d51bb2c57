package gemini

import (
	"net/http"
	"strings"
)

type Option func(*Provider)

// WithBaseURL points the provider at another API root, e.g. a test server
// or a regional proxy. A blank value keeps DefaultBaseURL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url = strings.TrimSpace(url); url != "" {
			p.baseURL = url
		}
	}
}

// WithHTTPClient replaces the client used for streaming calls. Its Timeout
// bounds a whole generation, not just the response headers.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}
