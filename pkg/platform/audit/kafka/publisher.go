// Package kafka publishes audit change-feed events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/twmb/franz-go/pkg/kgo"

	"solace/internal/platform/config"
	"solace/pkg/platform/audit"
	"solace/pkg/platform/circuit"
)

// Publisher writes change-feed events to one topic. Records are keyed by
// business key so all transitions of a lineage land in one partition and
// consumers observe them in version order.
//
// A circuit breaker guards the broker: after repeated produce failures the
// publisher fails fast instead of stalling every command on broker timeouts,
// letting one in probeEvery publishes through to detect recovery.
type Publisher struct {
	client  *kgo.Client
	topic   string
	breaker *circuit.Breaker
	skipped atomic.Uint64
	log     *log.Logger
}

// New connects a producer from the audit configuration.
// Returns nil if no brokers are configured (publishing disabled).
func New(cfg config.AuditConfig, logger *log.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect audit producer: %w", err)
	}
	return &Publisher{
		client:  client,
		topic:   cfg.Topic,
		breaker: circuit.New("audit-kafka", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		log:     logger,
	}, nil
}

// probeEvery lets one in N publishes through an open circuit so the breaker
// can observe the broker recovering.
const probeEvery = 50

// Publish produces one event synchronously so callers know the feed accepted it.
func (p *Publisher) Publish(ctx context.Context, event audit.Event) error {
	if p.breaker.IsOpen() && p.skipped.Add(1)%probeEvery != 0 {
		return fmt.Errorf("audit producer circuit open, dropping %s v%d", event.BusinessKey, event.Version)
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.BusinessKey.String()),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened && p.log != nil {
			p.log.Printf("audit producer circuit opened after repeated failures: %v", err)
		}
		return fmt.Errorf("produce audit event: %w", err)
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed && p.log != nil {
		p.log.Print("audit producer circuit closed")
	}
	return nil
}

// Close flushes and releases the producer.
func (p *Publisher) Close() {
	if p != nil && p.client != nil {
		p.client.Close()
	}
}
