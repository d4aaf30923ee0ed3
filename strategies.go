package syntra

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
)

// RehearsalStrategy names one of the rehearsal algorithms.
type RehearsalStrategy string

// Rehearsal strategies.
const (
	StrategyDistributed      RehearsalStrategy = "distributed-practice"
	StrategyMassed           RehearsalStrategy = "massed-practice"
	StrategyElaborative      RehearsalStrategy = "elaborative"
	StrategyMaintenance      RehearsalStrategy = "maintenance"
	StrategyInterleaving     RehearsalStrategy = "interleaving"
	StrategyVariableEncoding RehearsalStrategy = "variable-encoding"
	StrategyGenerativeReplay RehearsalStrategy = "generative-replay"
	StrategyContrastive      RehearsalStrategy = "contrastive-replay"
)

// AllStrategies lists every strategy in preference order for untried
// strategies.
var AllStrategies = []RehearsalStrategy{
	StrategyDistributed,
	StrategyMassed,
	StrategyElaborative,
	StrategyMaintenance,
	StrategyInterleaving,
	StrategyVariableEncoding,
	StrategyGenerativeReplay,
	StrategyContrastive,
}

// Valid reports whether s is a known strategy.
func (s RehearsalStrategy) Valid() bool {
	for _, v := range AllStrategies {
		if v == s {
			return true
		}
	}
	return false
}

// Per-strategy strength gains per unit of effectiveness.
const (
	gainDistributed  = 0.20
	gainMassed       = 0.10
	gainElaborative  = 0.20
	gainMaintenance  = 0.10
	gainInterleaving = 0.15
	gainEncoding     = 0.15
	gainReplay       = 0.10
	gainContrastive  = 0.15

	// consolidationPerEffect is how much consolidation each unit of
	// effectiveness adds. Consolidation never decreases.
	consolidationPerEffect = 0.05

	optimalSpacing = 60 * time.Second
)

var massedWeights = []float64{1, 0.5, 0.25}

// encodingContexts and their multipliers, cycled across items.
var encodingContexts = []struct {
	name string
	mult float64
}{
	{"visual", 1.0},
	{"auditory", 0.9},
	{"kinesthetic", 0.85},
	{"semantic", 1.1},
	{"emotional", 1.2},
}

// rehearsalOutcome accumulates the effect of one session.
type rehearsalOutcome struct {
	touched []string
	derived []string
	effects []float64
	gains   []float64 // strength delta per touched item
}

func (o *rehearsalOutcome) record(id string, effect, delta float64) {
	if !containsString(o.touched, id) {
		o.touched = append(o.touched, id)
	}
	o.effects = append(o.effects, effect)
	o.gains = append(o.gains, delta)
}

func (o *rehearsalOutcome) effectiveness() float64 {
	return mean(o.effects)
}

func (o *rehearsalOutcome) retention() float64 {
	return mean(o.gains)
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// reinforce strengthens t by gain*effect and raises its consolidation by
// consolidationPerEffect*effect. It returns the strength delta.
func reinforce(t *MemoryTrace, effect, gain float64, now time.Time) float64 {
	before := t.Strength
	t.Strength = math.Min(1, t.Strength+gain*effect)
	t.ConsolidationLevel = math.Min(1, t.ConsolidationLevel+consolidationPerEffect*effect)
	t.AccessCount++
	t.LastAccessedAt = now
	return t.Strength - before
}

// rehearseLocked applies strategy to a selection of at most n traces.
// The caller holds m.mu.
func (m *Memory) rehearseLocked(strategy RehearsalStrategy, rc RehearsalContext, cfg RehearsalConfig, now time.Time) rehearsalOutcome {
	clear(m.unsettled)
	n := cfg.SessionSize
	if n > m.cfg.ConsolidationBatch {
		n = m.cfg.ConsolidationBatch
	}
	a := clamp01(rc.Attention)
	var o rehearsalOutcome

	switch strategy {
	case StrategyDistributed:
		sel := m.selectLocked(func(t *MemoryTrace) bool {
			return t.Strength < 0.5 && now.Sub(t.LastAccessedAt) > 24*time.Hour
		}, func(x, y *MemoryTrace) bool { return x.Strength < y.Strength }, n)
		for _, t := range sel {
			delay := now.Sub(t.LastAccessedAt)
			e := (1 - math.Exp(-float64(delay)/float64(optimalSpacing))) * a
			o.record(t.ID, e, reinforce(t, e, gainDistributed, now))
		}

	case StrategyMassed:
		sel := m.selectLocked(func(t *MemoryTrace) bool {
			return t.StreamType.Fast() && t.ConsolidationLevel == 0
		}, func(x, y *MemoryTrace) bool { return x.Strength < y.Strength }, n)
		base := a * clamp01(rc.Motivation)
		for _, t := range sel {
			before := t.Strength
			for _, w := range massedWeights {
				t.Strength = math.Min(1, t.Strength+gainMassed*base*w)
			}
			t.ConsolidationLevel = math.Min(1, t.ConsolidationLevel+consolidationPerEffect*base)
			t.AccessCount++
			t.LastAccessedAt = now
			o.record(t.ID, base, t.Strength-before)
		}

	case StrategyElaborative:
		sel := m.selectLocked(func(t *MemoryTrace) bool {
			return len(t.SemanticLinks) >= 2
		}, func(x, y *MemoryTrace) bool { return len(x.SemanticLinks) > len(y.SemanticLinks) }, n)
		for _, t := range sel {
			e := math.Min(1, float64(len(t.SemanticLinks))/5) * a
			o.record(t.ID, e, reinforce(t, e, gainElaborative, now))
		}

	case StrategyMaintenance:
		sel := m.selectLocked(func(t *MemoryTrace) bool {
			return now.Sub(t.LastAccessedAt) <= 24*time.Hour
		}, func(x, y *MemoryTrace) bool { return x.LastAccessedAt.After(y.LastAccessedAt) }, n)
		for _, t := range sel {
			e := 0.7 * a
			o.record(t.ID, e, reinforce(t, e, gainMaintenance, now))
		}

	case StrategyInterleaving:
		sel := m.interleaveLocked(n)
		for i, t := range sel {
			e := math.Min(1, a*(1+0.1*float64(i%3)))
			o.record(t.ID, e, reinforce(t, e, gainInterleaving, now))
		}

	case StrategyVariableEncoding:
		sel := m.selectLocked(func(t *MemoryTrace) bool {
			return math.Abs(t.EmotionalValence) >= 0.3 && t.ConsolidationLevel < 0.5
		}, func(x, y *MemoryTrace) bool { return math.Abs(x.EmotionalValence) > math.Abs(y.EmotionalValence) }, n)
		for i, t := range sel {
			ec := encodingContexts[i%len(encodingContexts)]
			e := math.Min(1, a*ec.mult)
			m.linkLocked(t, "encoded-"+ec.name)
			o.record(t.ID, e, reinforce(t, e, gainEncoding, now))
		}

	case StrategyGenerativeReplay:
		limit := n / (cfg.Variations + 1)
		if limit < 1 {
			limit = 1
		}
		sel := m.selectLocked(func(t *MemoryTrace) bool {
			return t.StreamType == StreamEpisodic && t.Strength > 0.6
		}, func(x, y *MemoryTrace) bool { return x.Strength > y.Strength }, limit)
		e := math.Min(1, float64(cfg.Variations)/3) * a
		for _, t := range sel {
			for v := 1; v <= cfg.Variations; v++ {
				o.derived = append(o.derived, m.deriveLocked(t, v, now).ID)
			}
			o.record(t.ID, e, reinforce(t, e, gainReplay, now))
		}

	case StrategyContrastive:
		for _, pair := range m.pairsLocked(n / 2) {
			x, y := pair[0], pair[1]
			contrast := 0.5*(1-jaccard(x.SemanticLinks, y.SemanticLinks)) +
				0.5*math.Abs(x.EmotionalValence-y.EmotionalValence)/2
			e := contrast * a
			crossLink(m, x, y)
			o.record(x.ID, e, reinforce(x, e, gainContrastive, now))
			o.record(y.ID, e, reinforce(y, e, gainContrastive, now))
		}
	}
	return o
}

// selectLocked filters live traces, orders them by less with insertion
// order breaking ties, and keeps at most n.
func (m *Memory) selectLocked(keep func(*MemoryTrace) bool, less func(x, y *MemoryTrace) bool, n int) []*MemoryTrace {
	var sel []*MemoryTrace
	for _, t := range m.orderedLocked(StreamsAll) {
		if keep(t) {
			sel = append(sel, t)
		}
	}
	sort.SliceStable(sel, func(i, j int) bool { return less(sel[i], sel[j]) })
	if len(sel) > n {
		sel = sel[:n]
	}
	return sel
}

// interleaveLocked takes traces round-robin across themes. At least two
// themes are required.
func (m *Memory) interleaveLocked(n int) []*MemoryTrace {
	groups := map[string][]*MemoryTrace{}
	var themes []string
	for _, t := range m.orderedLocked(StreamsAll) {
		if t.Strength >= 0.95 {
			continue
		}
		theme := m.clusterThemeLocked(t)
		if _, ok := groups[theme]; !ok {
			themes = append(themes, theme)
		}
		groups[theme] = append(groups[theme], t)
	}
	if len(themes) < 2 {
		return nil
	}
	sort.Strings(themes)
	var out []*MemoryTrace
	for round := 0; len(out) < n; round++ {
		added := false
		for _, theme := range themes {
			if g := groups[theme]; round < len(g) && len(out) < n {
				out = append(out, g[round])
				added = true
			}
		}
		if !added {
			break
		}
	}
	return out
}

// pairsLocked pairs slow-stream members of the same cluster, taking
// members two at a time in cluster order.
func (m *Memory) pairsLocked(limit int) [][2]*MemoryTrace {
	if limit < 1 {
		limit = 1
	}
	themes := make([]string, 0, len(m.clusters))
	for theme := range m.clusters {
		themes = append(themes, theme)
	}
	sort.Strings(themes)
	var pairs [][2]*MemoryTrace
	for _, theme := range themes {
		var live []*MemoryTrace
		for _, id := range m.clusters[theme].MemberIDs {
			if t, ok := m.slow[id]; ok {
				live = append(live, t)
			}
		}
		for i := 0; i+1 < len(live) && len(pairs) < limit; i += 2 {
			pairs = append(pairs, [2]*MemoryTrace{live[i], live[i+1]})
		}
	}
	return pairs
}

// deriveLocked stores a replayed variation of t in the slow stream.
func (m *Memory) deriveLocked(t *MemoryTrace, variation int, now time.Time) *MemoryTrace {
	links := append([]string(nil), t.SemanticLinks...)
	d := &MemoryTrace{
		ID:                 ulid.MustNew(ulid.Timestamp(now), m.entropy).String(),
		StreamType:         StreamSlowLearning,
		Content:            fmt.Sprintf("%s (replay %d)", t.Content, variation),
		EmotionalValence:   t.EmotionalValence,
		Strength:           clamp01(t.Strength * 0.6),
		ConsolidationLevel: math.Min(1, t.ConsolidationLevel),
		CreatedAt:          now,
		LastAccessedAt:     now,
		SemanticLinks:      links,
		FormationContext: FormationContext{
			ConsciousnessState: "replay",
			ConsciousnessLevel: t.FormationContext.ConsciousnessLevel,
			EmotionalState:     t.FormationContext.EmotionalState,
			AttentionLevel:     t.FormationContext.AttentionLevel,
			EnvironmentTags:    []string{"generative-replay", "source:" + t.ID},
		},
	}
	m.insertLocked(d)
	m.clusterLocked(d, now)
	return d
}

// crossLink gives each trace the first link of the other it lacks.
func crossLink(m *Memory, x, y *MemoryTrace) {
	xs, ys := append([]string(nil), x.SemanticLinks...), append([]string(nil), y.SemanticLinks...)
	for _, l := range ys {
		if !containsString(xs, l) {
			m.linkLocked(x, l)
			break
		}
	}
	for _, l := range xs {
		if !containsString(ys, l) {
			m.linkLocked(y, l)
			break
		}
	}
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	inter := 0
	union := len(set)
	for _, v := range b {
		if set[v] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
