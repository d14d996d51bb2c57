package core

import (
	"context"

	"github.com/vango-go/gemini-omnichat/pkg/core/types"
)

// Provider is a streaming text generation backend.
type Provider interface {
	// Name returns the provider identifier (e.g., "gemini").
	Name() string

	// StreamGenerate opens a streaming call. Errors returned here happen before
	// the first fragment; later failures surface from TextStream.Next.
	StreamGenerate(ctx context.Context, req *types.GenerateRequest) (TextStream, error)
}

// TextStream is an iterator over incremental text deltas.
type TextStream interface {
	// Next returns the next delta. Returns "", io.EOF when done.
	Next() (string, error)

	// Close releases resources.
	Close() error
}
