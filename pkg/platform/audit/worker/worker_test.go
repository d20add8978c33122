package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solace/pkg/platform/audit"
)

func TestWorkerDrainsInbox(t *testing.T) {
	publisher := audit.NewInMemoryPublisher()
	w := New(publisher, 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 20; i++ {
		w.Enqueue(audit.Event{ID: uuid.New(), Action: "payment.recorded", Version: i + 1})
	}

	require.Eventually(t, func() bool {
		return len(publisher.Events()) == 20
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	publisher := audit.NewInMemoryPublisher()
	w := New(publisher, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
