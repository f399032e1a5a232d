package requestctx

import (
	"context"
	"testing"
	"time"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	if got := RequestID(ctx); got != "" {
		t.Errorf("expected empty request id, got %q", got)
	}

	ctx = WithRequestID(ctx, "req-1")
	if got := RequestID(ctx); got != "req-1" {
		t.Errorf("expected req-1, got %q", got)
	}
}

func TestReceivedAt(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fallback := func() time.Time { return fixed.Add(time.Hour) }

	if got := ReceivedAt(context.Background(), fallback); !got.Equal(fixed.Add(time.Hour)) {
		t.Errorf("expected fallback time, got %v", got)
	}

	ctx := WithReceivedAt(context.Background(), fixed)
	if got := ReceivedAt(ctx, fallback); !got.Equal(fixed) {
		t.Errorf("expected %v, got %v", fixed, got)
	}
}
