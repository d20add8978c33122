package requestcontext_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"solace/pkg/requestcontext"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, requestcontext.Actor(ctx))

	ctx = requestcontext.WithActor(ctx, "staff:42")
	assert.Equal(t, "staff:42", requestcontext.Actor(ctx))
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, requestcontext.RequestID(ctx))

	ctx = requestcontext.WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", requestcontext.RequestID(ctx))
}

func TestNowFallsBackToWallClock(t *testing.T) {
	before := time.Now().UTC()
	got := requestcontext.Now(context.Background())
	after := time.Now().UTC()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}

func TestNowUsesPinnedTime(t *testing.T) {
	pinned := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), pinned)

	assert.Equal(t, pinned, requestcontext.Now(ctx))
}
