// Package worker decouples event emission from broker round-trips: services
// enqueue onto a bounded inbox, the worker fans events out to the publisher.
package worker

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"solace/pkg/platform/audit"
)

const inboxSize = 1024

// Worker consumes audit events from its inbox and publishes them with a
// bounded number of concurrent publishers. Delivery is best-effort end to
// end: a full inbox drops the event and a failed publish is logged, matching
// the emitter's contract that the change-feed never blocks or unwinds a
// committed version.
type Worker struct {
	publisher audit.Publisher
	inbox     chan audit.Event
	parallel  int
	log       *log.Logger
}

func New(publisher audit.Publisher, parallel int, logger *log.Logger) *Worker {
	if parallel < 1 {
		parallel = 1
	}
	return &Worker{
		publisher: publisher,
		inbox:     make(chan audit.Event, inboxSize),
		parallel:  parallel,
		log:       logger,
	}
}

// Enqueue hands an event to the worker without blocking.
func (w *Worker) Enqueue(event audit.Event) {
	select {
	case w.inbox <- event:
	default:
		if w.log != nil {
			w.log.Printf("audit inbox full, dropping %s %s v%d", event.EntityKind, event.BusinessKey, event.Version)
		}
	}
}

// Publish implements audit.Publisher so the worker can sit between an
// Emitter and a broker-backed publisher.
func (w *Worker) Publish(_ context.Context, event audit.Event) error {
	w.Enqueue(event)
	return nil
}

// Run blocks until the context is cancelled, then returns nil.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.parallel; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case event := <-w.inbox:
					if err := w.publisher.Publish(ctx, event); err != nil && w.log != nil {
						w.log.Printf("audit publish failed for %s %s v%d: %v", event.EntityKind, event.BusinessKey, event.Version, err)
					}
				}
			}
		})
	}
	return g.Wait()
}
