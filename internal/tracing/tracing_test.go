package tracing

import (
	"context"
	"strings"
	"testing"
)

func TestInit_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}

func TestInit_WithEndpointInstallsProvider(t *testing.T) {
	// The gRPC exporter connects lazily, so no collector is needed.
	shutdown, err := Init(context.Background(), Config{Endpoint: "127.0.0.1:4317"})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestSampler(t *testing.T) {
	cases := map[float64]string{
		0:   "AlwaysOnSampler",
		1:   "AlwaysOnSampler",
		0.5: "ParentBased",
	}
	for rate, want := range cases {
		if got := sampler(rate).Description(); !strings.HasPrefix(got, want) {
			t.Fatalf("sampler(%v) = %q, want prefix %q", rate, got, want)
		}
	}
}
