package stream

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLog is an in-process Log with consumer-group semantics, used by
// tests and by single-process dry runs. Pending entries can be redelivered
// with Redeliver to exercise at-least-once handling.
type MemoryLog struct {
	mu      sync.Mutex
	streams map[string][]Message
	groups  map[string]*memoryGroup // key: stream + "/" + group
	nextID  int64
}

type memoryGroup struct {
	cursor  int
	pending map[string]Message
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		streams: make(map[string][]Message),
		groups:  make(map[string]*memoryGroup),
	}
}

func (l *MemoryLog) groupKey(stream, group string) string {
	return stream + "/" + group
}

// Append adds a record to the stream.
func (l *MemoryLog) Append(_ context.Context, stream string, values map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	l.streams[stream] = append(l.streams[stream], Message{
		ID:     fmt.Sprintf("%d-0", l.nextID),
		Values: copied,
	})
	return nil
}

// CreateGroup idempotently registers a consumer group at the stream start.
func (l *MemoryLog) CreateGroup(_ context.Context, stream, group string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := l.groupKey(stream, group)
	if _, ok := l.groups[key]; !ok {
		l.groups[key] = &memoryGroup{pending: make(map[string]Message)}
	}
	return nil
}

// ReadGroup delivers up to count new records and marks them pending.
func (l *MemoryLog) ReadGroup(_ context.Context, stream, group, _ string, count int64) ([]Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.groups[l.groupKey(stream, group)]
	if !ok {
		return nil, fmt.Errorf("no such group %s on stream %s", group, stream)
	}

	records := l.streams[stream]
	var out []Message
	for g.cursor < len(records) && int64(len(out)) < count {
		m := records[g.cursor]
		g.cursor++
		g.pending[m.ID] = m
		out = append(out, m)
	}
	return out, nil
}

// Ack removes a record from the group's pending set.
func (l *MemoryLog) Ack(_ context.Context, stream, group, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.groups[l.groupKey(stream, group)]
	if !ok {
		return fmt.Errorf("no such group %s on stream %s", group, stream)
	}
	delete(g.pending, id)
	return nil
}

// Redeliver returns every unacknowledged record of the group, simulating
// consumer death and claim-based redelivery.
func (l *MemoryLog) Redeliver(stream, group string) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.groups[l.groupKey(stream, group)]
	if !ok {
		return nil
	}
	var out []Message
	for _, m := range g.pending {
		out = append(out, m)
	}
	return out
}

// Len reports how many records a stream holds.
func (l *MemoryLog) Len(stream string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.streams[stream])
}

// Records returns a copy of all records in a stream.
func (l *MemoryLog) Records(stream string) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.streams[stream]))
	copy(out, l.streams[stream])
	return out
}

// PendingCount reports the group's unacknowledged record count.
func (l *MemoryLog) PendingCount(stream, group string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.groups[l.groupKey(stream, group)]
	if !ok {
		return 0
	}
	return len(g.pending)
}

// Close is a no-op.
func (l *MemoryLog) Close() error { return nil }
