package fusion

import (
	"sort"

	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// Profile maps each strategy to its fusion weight. Weights sum to 1.
type Profile map[types.StrategyID]float64

// clone returns an independent copy of the profile.
func (p Profile) clone() Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// normalized returns the profile scaled to sum to 1. A zero-sum profile
// normalizes to uniform weights.
func (p Profile) normalized() Profile {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	// Sum in sorted key order so float rounding is identical run to run
	var sum float64
	for _, k := range keys {
		sum += p[types.StrategyID(k)]
	}
	if sum == 0 {
		uniform := make(Profile, len(types.AllStrategies))
		for _, s := range types.AllStrategies {
			uniform[s] = 1.0 / float64(len(types.AllStrategies))
		}
		return uniform
	}
	out := make(Profile, len(p))
	for k, w := range p {
		out[k] = w / sum
	}
	return out
}

// ProfileTable is the immutable intent-to-weights configuration. It is
// built once and passed by reference; the adaptive learner replaces the
// whole table rather than mutating it mid-fusion.
type ProfileTable struct {
	profiles map[types.IntentKind]Profile
}

// NewProfileTable builds a table from per-intent profiles, normalizing
// each. Intents absent from the input fall back to the balanced profile.
func NewProfileTable(profiles map[types.IntentKind]Profile) *ProfileTable {
	t := &ProfileTable{profiles: make(map[types.IntentKind]Profile, len(profiles))}
	for kind, p := range profiles {
		t.profiles[kind] = p.normalized()
	}
	if _, ok := t.profiles[types.IntentBalanced]; !ok {
		t.profiles[types.IntentBalanced] = Profile{}.normalized()
	}
	return t
}

// DefaultProfileTable returns the shipped weight profiles. Symbol
// navigation favors symbol+lexical, flow tracing favors graph+symbol,
// concept search leans heavily on vector similarity.
func DefaultProfileTable() *ProfileTable {
	return NewProfileTable(map[types.IntentKind]Profile{
		types.IntentSymbol: {
			types.StrategySymbol:  0.40,
			types.StrategyLexical: 0.30,
			types.StrategyVector:  0.20,
			types.StrategyGraph:   0.10,
		},
		types.IntentFlow: {
			types.StrategyGraph:   0.40,
			types.StrategySymbol:  0.30,
			types.StrategyLexical: 0.15,
			types.StrategyVector:  0.15,
		},
		types.IntentConcept: {
			types.StrategyVector:  0.60,
			types.StrategyLexical: 0.20,
			types.StrategySymbol:  0.10,
			types.StrategyGraph:   0.10,
		},
		types.IntentCode: {
			types.StrategyVector:  0.35,
			types.StrategyLexical: 0.35,
			types.StrategySymbol:  0.20,
			types.StrategyGraph:   0.10,
		},
		types.IntentBalanced: {
			types.StrategyVector:  0.25,
			types.StrategyLexical: 0.25,
			types.StrategySymbol:  0.25,
			types.StrategyGraph:   0.25,
		},
	})
}

// Get returns the profile for one intent, defaulting to balanced.
func (t *ProfileTable) Get(kind types.IntentKind) Profile {
	if p, ok := t.profiles[kind]; ok {
		return p
	}
	return t.profiles[types.IntentBalanced]
}

// Blend combines profiles for a multi-label intent distribution via a
// probability-weighted linear combination, renormalized to sum to 1.
// A nil or empty distribution yields the balanced profile.
func (t *ProfileTable) Blend(probs map[types.IntentKind]float64) Profile {
	if len(probs) == 0 {
		return t.Get(types.IntentBalanced).clone()
	}

	blended := make(Profile)
	for kind, p := range probs {
		if p <= 0 {
			continue
		}
		for strategy, w := range t.Get(kind) {
			blended[strategy] += p * w
		}
	}
	return blended.normalized()
}

// WithProfile returns a new table with one intent's profile replaced.
// The receiver is never modified.
func (t *ProfileTable) WithProfile(kind types.IntentKind, p Profile) *ProfileTable {
	next := &ProfileTable{profiles: make(map[types.IntentKind]Profile, len(t.profiles)+1)}
	for k, v := range t.profiles {
		next.profiles[k] = v
	}
	next.profiles[kind] = p.normalized()
	return next
}

// Profiles returns a copy of the full table contents, for snapshotting.
func (t *ProfileTable) Profiles() map[types.IntentKind]Profile {
	out := make(map[types.IntentKind]Profile, len(t.profiles))
	for k, v := range t.profiles {
		out[k] = v.clone()
	}
	return out
}
