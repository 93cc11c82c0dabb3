package learner

import (
	"github.com/dshills/goretrieve-mcp/internal/fusion"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// UpdatePolicy turns a batch of feedback events and the current
// per-intent profiles into updated profiles. Implementations must not
// mutate the input map; the learner normalizes the result.
type UpdatePolicy interface {
	Update(current map[types.IntentKind]fusion.Profile, events []types.FeedbackEvent) map[types.IntentKind]fusion.Profile
}

// EMAPolicy nudges each intent's profile toward (positive feedback) or
// away from (negative feedback) the strategies that surfaced the chunks
// the consumer kept, by an exponential moving average.
type EMAPolicy struct {
	// Rate is the EMA step per event, in (0, 1]
	Rate float64

	// MinWeight floors every strategy so no backend is starved out of
	// future feedback entirely
	MinWeight float64
}

// DefaultEMAPolicy returns the shipped update policy.
func DefaultEMAPolicy() *EMAPolicy {
	return &EMAPolicy{Rate: 0.2, MinWeight: 0.05}
}

// Update applies each event in order to its intent's profile.
func (p *EMAPolicy) Update(current map[types.IntentKind]fusion.Profile, events []types.FeedbackEvent) map[types.IntentKind]fusion.Profile {
	next := make(map[types.IntentKind]fusion.Profile, len(current))
	for kind, prof := range current {
		cp := make(fusion.Profile, len(prof))
		for s, w := range prof {
			cp[s] = w
		}
		next[kind] = cp
	}

	for _, ev := range events {
		prof, ok := next[ev.Intent]
		if !ok {
			continue
		}
		shares := contributionShares(ev.Contributions)
		if len(shares) == 0 {
			continue
		}
		if ev.Positive {
			p.moveToward(prof, shares)
		} else {
			p.moveAway(prof, shares)
		}
		p.floor(prof)
	}
	return next
}

// moveToward shifts weight toward the contributing strategies:
// w' = (1-rate)*w + rate*share.
func (p *EMAPolicy) moveToward(prof fusion.Profile, shares map[types.StrategyID]float64) {
	for s := range prof {
		prof[s] = (1-p.Rate)*prof[s] + p.Rate*shares[s]
	}
}

// moveAway scales contributing strategies down in proportion to their
// share of the bad result. Renormalization happens when the table is
// rebuilt, so the relative shift is all that matters here.
func (p *EMAPolicy) moveAway(prof fusion.Profile, shares map[types.StrategyID]float64) {
	for s, share := range shares {
		if _, ok := prof[s]; ok {
			prof[s] *= 1 - p.Rate*share
		}
	}
}

func (p *EMAPolicy) floor(prof fusion.Profile) {
	for s, w := range prof {
		if w < p.MinWeight {
			prof[s] = p.MinWeight
		}
	}
}

// contributionShares normalizes per-strategy selected-chunk counts into
// a distribution summing to 1.
func contributionShares(contributions map[types.StrategyID]int) map[types.StrategyID]float64 {
	var total int
	for _, n := range contributions {
		if n > 0 {
			total += n
		}
	}
	if total == 0 {
		return nil
	}
	shares := make(map[types.StrategyID]float64, len(contributions))
	for s, n := range contributions {
		if n > 0 {
			shares[s] = float64(n) / float64(total)
		}
	}
	return shares
}
