// Package stream provides the durable append-only log connecting the
// pipeline stages. The production backend is Redis Streams with consumer
// groups; an in-memory implementation backs tests.
package stream

import "context"

// Stream and consumer-group names used by the pipeline.
const (
	MarketEvents  = "market_events"
	MarketPairs   = "market_pairs"
	Opportunities = "opportunities"

	SimilarityGroup = "similarity"
	ArbitrageGroup  = "arbitrage"
	ExecutionGroup  = "execution"
)

// Message is one delivered log record, tagged with its log id for
// acknowledgement.
type Message struct {
	ID     string
	Values map[string]string
}

// Log is the append-only log contract. Delivery within a group is
// at-least-once: a record stays pending until acknowledged and is
// redelivered to another consumer after the original reader dies.
type Log interface {
	// Append adds a record to the stream.
	Append(ctx context.Context, stream string, values map[string]string) error

	// CreateGroup idempotently creates a consumer group, auto-creating the
	// stream when absent.
	CreateGroup(ctx context.Context, stream, group string) error

	// ReadGroup returns up to count records never delivered to any consumer
	// of the group. An empty result means no new records; it never blocks
	// past a short server-side poll.
	ReadGroup(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error)

	// Ack marks a delivered record as processed.
	Ack(ctx context.Context, stream, group, id string) error

	// Close releases the underlying connection.
	Close() error
}
