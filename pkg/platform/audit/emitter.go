package audit

import (
	"context"
	"log"

	"github.com/google/uuid"

	"solace/pkg/requestcontext"
)

// Emitter is the service-side guard around a Publisher. It stamps event
// metadata from the request context and degrades to a no-op when no publisher
// is configured, so services never branch on wiring.
type Emitter struct {
	publisher Publisher
	log       *log.Logger
}

func NewEmitter(publisher Publisher, logger *log.Logger) *Emitter {
	return &Emitter{publisher: publisher, log: logger}
}

// Emit publishes the event best-effort. Failures are logged, never returned:
// the version row is already committed and the feed must not unwind it.
func (e *Emitter) Emit(ctx context.Context, event Event) {
	if e == nil || e.publisher == nil {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Actor == "" {
		event.Actor = requestcontext.Actor(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if err := e.publisher.Publish(ctx, event); err != nil && e.log != nil {
		e.log.Printf("audit publish failed for %s %s v%d: %v", event.EntityKind, event.BusinessKey, event.Version, err)
	}
}
