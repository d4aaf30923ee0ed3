package syntra

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
)

// ConsolidationReport describes one consolidation pass.
type ConsolidationReport struct {
	Candidates      int      `json:"candidates"`
	Moved           int      `json:"moved"`
	PressureMoved   int      `json:"pressure_moved"`
	ClustersCreated int      `json:"clusters_created"`
	MovedIDs        []string `json:"moved_ids"`
}

// DecayReport describes one decay sweep.
type DecayReport struct {
	Decayed    int `json:"decayed"`
	PrunedFast int `json:"pruned_fast"`
	PrunedSlow int `json:"pruned_slow"`
}

// Consolidate runs one consolidation pass over the fast stream.
func (m *Memory) Consolidate(ctx context.Context) ConsolidationReport {
	m.mu.Lock()
	r := m.consolidateLocked(false)
	fastCount, slowCount := len(m.fast), len(m.slow)
	m.mu.Unlock()

	m.emitConsolidated(ctx, r, fastCount, slowCount)
	return r
}

// qualifiesLocked reports whether a fast trace meets any consolidation
// criterion.
func (m *Memory) qualifiesLocked(t *MemoryTrace, now time.Time) bool {
	return t.Strength > m.cfg.StrengthThreshold ||
		t.AccessCount > m.cfg.AccessThreshold ||
		now.Sub(t.CreatedAt) > m.cfg.AgeThreshold ||
		math.Abs(t.EmotionalValence) > m.cfg.ValenceThreshold
}

// consolidateLocked moves up to one batch of qualifying traces to the
// slow stream. Under capacity pressure it then moves the oldest remaining
// fast traces until the stream is back within capacity.
func (m *Memory) consolidateLocked(pressure bool) ConsolidationReport {
	clear(m.unsettled)
	now := m.clock.Now()
	var r ConsolidationReport

	for _, t := range m.orderedLocked(StreamsFast) {
		if !m.qualifiesLocked(t, now) {
			continue
		}
		r.Candidates++
		if r.Moved >= m.cfg.ConsolidationBatch {
			continue
		}
		if m.moveLocked(t, now) {
			r.ClustersCreated++
		}
		r.Moved++
		r.MovedIDs = append(r.MovedIDs, t.ID)
	}

	if pressure && len(m.fast) > m.cfg.FastCapacity {
		overflow := len(m.fast) - m.cfg.FastCapacity
		for _, t := range m.orderedLocked(StreamsFast)[:overflow] {
			if m.moveLocked(t, now) {
				r.ClustersCreated++
			}
			r.PressureMoved++
			r.MovedIDs = append(r.MovedIDs, t.ID)
		}
	}

	m.passes++
	m.consolidated += r.Moved + r.PressureMoved
	return r
}

// moveLocked transfers t from the fast to the slow stream and clusters
// it. It reports whether a new cluster was created.
func (m *Memory) moveLocked(t *MemoryTrace, now time.Time) bool {
	delete(m.fast, t.ID)
	t.StreamType = slowTypeFor(t)
	t.ConsolidationLevel = math.Min(1, t.ConsolidationLevel+m.cfg.ConsolidationBoost)
	t.Strength *= m.cfg.ConsolidationDecay
	m.slow[t.ID] = t
	return m.clusterLocked(t, now)
}

// clusterLocked joins t to the first existing cluster matching one of its
// links, or creates a cluster keyed by its first link.
func (m *Memory) clusterLocked(t *MemoryTrace, now time.Time) bool {
	for _, l := range t.SemanticLinks {
		if c, ok := m.clusters[l]; ok {
			c.MemberIDs = appendUnique(c.MemberIDs, t.ID)
			c.UpdatedAt = now
			return false
		}
	}
	theme := t.Theme()
	if c, ok := m.clusters[theme]; ok {
		c.MemberIDs = appendUnique(c.MemberIDs, t.ID)
		c.UpdatedAt = now
		return false
	}
	m.clusters[theme] = &ConsolidatedCluster{
		Theme:     theme,
		MemberIDs: []string{t.ID},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return true
}

// clusterThemeLocked returns the theme of the cluster holding id, falling
// back to the trace's own theme.
func (m *Memory) clusterThemeLocked(t *MemoryTrace) string {
	for _, l := range t.SemanticLinks {
		if c, ok := m.clusters[l]; ok && containsString(c.MemberIDs, t.ID) {
			return l
		}
	}
	if c, ok := m.clusters["general"]; ok && containsString(c.MemberIDs, t.ID) {
		return "general"
	}
	return t.Theme()
}

var (
	proceduralCues = []string{"how to", "step", "procedure", "process", "method", "instructions", "first,"}
	episodicCues   = []string{" i ", "i'm", " my ", "my ", "yesterday", "today", "remember when", "happened", "we "}
)

// slowTypeFor picks the slow-stream type for a consolidating trace.
func slowTypeFor(t *MemoryTrace) StreamType {
	if !t.StreamType.Fast() {
		return t.StreamType
	}
	lower := " " + strings.ToLower(t.Content) + " "
	switch {
	case containsAny(lower, proceduralCues...):
		return StreamProcedural
	case containsAny(lower, episodicCues...):
		return StreamEpisodic
	default:
		return StreamSemantic
	}
}

// ApplyDecay applies forgetting curves to both streams and prunes traces
// that fall below the stream thresholds.
//
// Fast traces decay exponentially, slowed by emotional weight:
// s * exp(-rate * (1 - resistance*|v|) * hours/24). Slow traces lose
// rate*SlowDecayFactor per day linearly. Elapsed time is measured from the
// later of the last access and the previous sweep.
func (m *Memory) ApplyDecay(ctx context.Context) DecayReport {
	m.mu.Lock()
	clear(m.unsettled)
	now := m.clock.Now()
	var r DecayReport

	for _, t := range m.orderedLocked(StreamsAll) {
		ref := t.LastAccessedAt
		if t.DecayedAt.After(ref) {
			ref = t.DecayedAt
		}
		elapsed := now.Sub(ref)
		if elapsed <= 0 {
			continue
		}
		days := elapsed.Hours() / 24
		if t.StreamType.Fast() {
			rate := m.cfg.DecayRate * (1 - m.cfg.EmotionalResistance*math.Abs(t.EmotionalValence))
			t.Strength *= math.Exp(-rate * days)
		} else {
			t.Strength -= m.cfg.DecayRate * m.cfg.SlowDecayFactor * days
		}
		t.Strength = math.Max(0, t.Strength)
		t.DecayedAt = now
		r.Decayed++
	}

	for _, t := range m.orderedLocked(StreamsAll) {
		switch {
		case t.StreamType.Fast() && t.Strength < m.cfg.FastPruneThreshold:
			m.removeLocked(t)
			r.PrunedFast++
		case !t.StreamType.Fast() && t.Strength < m.cfg.SlowPruneThreshold:
			m.removeLocked(t)
			r.PrunedSlow++
		}
	}
	m.pruned += r.PrunedFast + r.PrunedSlow
	fastCount, slowCount := len(m.fast), len(m.slow)
	m.mu.Unlock()

	capitan.Emit(ctx, MemoryDecayed,
		FieldPruned.Field(r.PrunedFast+r.PrunedSlow),
		FieldFastCount.Field(fastCount),
		FieldSlowCount.Field(slowCount),
	)
	return r
}

func (m *Memory) emitConsolidated(ctx context.Context, r ConsolidationReport, fastCount, slowCount int) {
	capitan.Emit(ctx, MemoryConsolidated,
		FieldMoved.Field(r.Moved+r.PressureMoved),
		FieldFastCount.Field(fastCount),
		FieldSlowCount.Field(slowCount),
	)
}

func appendUnique(ids []string, id string) []string {
	if containsString(ids, id) {
		return ids
	}
	return append(ids, id)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
