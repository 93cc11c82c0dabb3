package intent

import (
	"sync"
	"time"
)

// rollingCounter tracks the classification fallback rate over a sliding
// time window. Buckets are one-second slots pruned lazily on access.
type rollingCounter struct {
	mu     sync.Mutex
	window time.Duration

	events []counterEvent
}

type counterEvent struct {
	at       time.Time
	fallback bool
}

func newRollingCounter(window time.Duration) *rollingCounter {
	return &rollingCounter{window: window}
}

func (rc *rollingCounter) record(fallback bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	now := time.Now()
	rc.prune(now)
	rc.events = append(rc.events, counterEvent{at: now, fallback: fallback})
}

// rate returns fallbacks / total within the window. Zero when empty.
func (rc *rollingCounter) rate() float64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.prune(time.Now())
	if len(rc.events) == 0 {
		return 0
	}

	var fallbacks int
	for _, ev := range rc.events {
		if ev.fallback {
			fallbacks++
		}
	}
	return float64(fallbacks) / float64(len(rc.events))
}

// prune drops events older than the window. Caller holds rc.mu.
func (rc *rollingCounter) prune(now time.Time) {
	cutoff := now.Add(-rc.window)
	keep := rc.events[:0]
	for _, ev := range rc.events {
		if ev.at.After(cutoff) {
			keep = append(keep, ev)
		}
	}
	rc.events = keep
}
