package fusion

import (
	"math"
	"sort"

	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// Config controls RRF constants and consensus boosting
type Config struct {
	// DefaultK is the RRF constant applied when no per-strategy value
	// is configured. The standard value is 60.
	DefaultK float64

	// K overrides the RRF constant per strategy
	K map[types.StrategyID]float64

	// ConsensusBoost scales the agreement multiplier
	ConsensusBoost float64

	// ConsensusCap bounds how many strategies count toward agreement
	ConsensusCap int

	// StrongComponent is the component value above which agreement is
	// considered confident. Below it only half the boost applies.
	StrongComponent float64

	// ConfidenceThreshold gates single-profile selection: below it the
	// full probability distribution blends multiple profiles.
	ConfidenceThreshold float64
}

// DefaultConfig returns production fusion settings.
func DefaultConfig() Config {
	return Config{
		DefaultK:            60,
		ConsensusBoost:      0.25,
		ConsensusCap:        3,
		StrongComponent:     0.004,
		ConfidenceThreshold: 0.6,
	}
}

// Engine fuses per-strategy hit lists. Stateless and safe for
// concurrent use; weight profiles arrive per call.
type Engine struct {
	config Config
}

// NewEngine creates a fusion Engine.
func NewEngine(config Config) *Engine {
	if config.DefaultK <= 0 {
		config.DefaultK = 60
	}
	if config.ConsensusCap <= 0 {
		config.ConsensusCap = 3
	}
	return &Engine{config: config}
}

// Fuse merges the per-strategy hit lists into one ranking ordered by
// descending fused score. Exactly equal scores order by ascending chunk
// id so the merge is deterministic.
func (e *Engine) Fuse(hits map[types.StrategyID][]types.StrategyHit, intent types.IntentResult, table *ProfileTable) []types.FusedHit {
	profile := e.profileFor(intent, table)

	merged := make(map[string]*types.FusedHit)

	// Iterate strategies in stable order so provenance slices are
	// reproducible run to run
	for _, strategy := range types.AllStrategies {
		list := hits[strategy]
		if len(list) == 0 {
			continue
		}
		weight := profile[strategy]
		if weight == 0 {
			continue
		}
		k := e.kFor(strategy)

		for i, hit := range list {
			rank := hit.Rank
			if rank <= 0 {
				rank = i + 1
			}
			component := weight / (k + float64(rank))

			fh, ok := merged[hit.ChunkID]
			if !ok {
				fh = &types.FusedHit{
					ChunkID:    hit.ChunkID,
					Ranks:      make(map[types.StrategyID]int),
					Components: make(map[types.StrategyID]float64),
					Consensus:  1.0,
				}
				merged[hit.ChunkID] = fh
			}

			// A strategy may surface the same chunk twice (e.g. two
			// symbol matches covering one chunk); keep the best rank
			if prev, seen := fh.Ranks[strategy]; !seen || rank < prev {
				if !seen {
					fh.Strategies = append(fh.Strategies, strategy)
				}
				fh.Ranks[strategy] = rank
				fh.Components[strategy] = component
			}
		}
	}

	out := make([]types.FusedHit, 0, len(merged))
	for _, fh := range merged {
		var raw, strongest float64
		// Sum in the stable strategy order recorded above; ranging over
		// the Components map would make float rounding vary run to run
		for _, strategy := range fh.Strategies {
			c := fh.Components[strategy]
			raw += c
			if c > strongest {
				strongest = c
			}
		}
		fh.Consensus = e.consensusMultiplier(len(fh.Strategies), strongest)
		fh.Score = raw * fh.Consensus
		out = append(out, *fh)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

// profileFor selects or blends weight profiles for the classified intent.
// The dominant intent's profile is used alone only when its probability
// clears the confidence threshold.
func (e *Engine) profileFor(intent types.IntentResult, table *ProfileTable) Profile {
	if table == nil {
		table = DefaultProfileTable()
	}
	if intent.Confidence >= e.config.ConfidenceThreshold || len(intent.Probabilities) == 0 {
		return table.Get(intent.Kind)
	}
	return table.Blend(intent.Probabilities)
}

// consensusMultiplier rewards cross-strategy agreement. Growth is
// sub-linear (square root) in the number of contributing strategies and
// capped; without one strong component only half the boost applies.
func (e *Engine) consensusMultiplier(contributing int, strongest float64) float64 {
	if contributing <= 1 || e.config.ConsensusBoost == 0 {
		return 1.0
	}

	n := contributing
	if n > e.config.ConsensusCap {
		n = e.config.ConsensusCap
	}

	boost := e.config.ConsensusBoost * (math.Sqrt(float64(n)) - 1)
	if strongest < e.config.StrongComponent {
		boost /= 2
	}
	return 1.0 + boost
}

func (e *Engine) kFor(strategy types.StrategyID) float64 {
	if k, ok := e.config.K[strategy]; ok && k > 0 {
		return k
	}
	return e.config.DefaultK
}
