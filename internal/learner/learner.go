package learner

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/goretrieve-mcp/internal/fusion"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// Config controls event buffering and flush cadence
type Config struct {
	QueueSize     int           // Bounded feedback queue, full queue drops
	FlushInterval time.Duration // How often batched events are applied
}

// DefaultConfig returns production learner settings.
func DefaultConfig() Config {
	return Config{
		QueueSize:     256,
		FlushInterval: time.Minute,
	}
}

// Stats is a point-in-time view of learner activity.
type Stats struct {
	Submitted int64
	Dropped   int64
	Applied   int64
	Flushes   int64
}

// Learner consumes feedback events and periodically swaps in updated
// fusion profile tables. It implements ports.FeedbackSink.
type Learner struct {
	policy UpdatePolicy
	config Config
	events chan types.FeedbackEvent

	mu    sync.RWMutex
	table *fusion.ProfileTable

	submitted atomic.Int64
	dropped   atomic.Int64
	applied   atomic.Int64
	flushes   atomic.Int64
}

// New creates a Learner seeded with an initial profile table. A nil
// policy falls back to the default EMA policy.
func New(initial *fusion.ProfileTable, policy UpdatePolicy, config Config) *Learner {
	if initial == nil {
		initial = fusion.DefaultProfileTable()
	}
	if policy == nil {
		policy = DefaultEMAPolicy()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultConfig().FlushInterval
	}
	return &Learner{
		policy: policy,
		config: config,
		events: make(chan types.FeedbackEvent, config.QueueSize),
		table:  initial,
	}
}

// Submit enqueues one feedback event without blocking. When the queue
// is full the event is dropped and counted; feedback is advisory and
// must never slow a request down.
func (l *Learner) Submit(ctx context.Context, event types.FeedbackEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case l.events <- event:
		l.submitted.Add(1)
	default:
		l.dropped.Add(1)
	}
	return nil
}

// Table returns the current profile table for fusion to use. The table
// is immutable; callers may hold it for the duration of a request.
func (l *Learner) Table() *fusion.ProfileTable {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.table
}

// Stats reports learner counters.
func (l *Learner) Stats() Stats {
	return Stats{
		Submitted: l.submitted.Load(),
		Dropped:   l.dropped.Load(),
		Applied:   l.applied.Load(),
		Flushes:   l.flushes.Load(),
	}
}

// Run drains the feedback queue until ctx is cancelled, applying the
// update policy every FlushInterval. Pending events are applied once
// more on shutdown.
func (l *Learner) Run(ctx context.Context) {
	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	var pending []types.FeedbackEvent
	for {
		select {
		case <-ctx.Done():
			l.apply(pending)
			return
		case ev := <-l.events:
			pending = append(pending, ev)
		case <-ticker.C:
			l.apply(pending)
			pending = pending[:0]
		}
	}
}

// apply runs the policy over a batch and swaps in the rebuilt table.
func (l *Learner) apply(events []types.FeedbackEvent) {
	if len(events) == 0 {
		return
	}

	current := l.Table()
	updated := l.policy.Update(current.Profiles(), events)
	if updated == nil {
		return
	}

	next := fusion.NewProfileTable(updated)
	l.mu.Lock()
	l.table = next
	l.mu.Unlock()

	l.applied.Add(int64(len(events)))
	l.flushes.Add(1)
	log.Printf("learner: applied %d feedback events", len(events))
}
