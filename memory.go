package syntra

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// ConsolidatedCluster groups slow-stream traces sharing a theme. It holds
// references only; trace lifecycle belongs to the streams.
type ConsolidatedCluster struct {
	Theme     string    `json:"theme"`
	MemberIDs []string  `json:"member_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RetrievalResult is one ranked retrieval hit.
type RetrievalResult struct {
	Trace     MemoryTrace `json:"trace"`
	Relevance float64     `json:"relevance"`
}

// MemoryStatistics summarizes both streams.
type MemoryStatistics struct {
	FastCount           int     `json:"fast_count"`
	SlowCount           int     `json:"slow_count"`
	ClusterCount        int     `json:"cluster_count"`
	AvgFastStrength     float64 `json:"avg_fast_strength"`
	AvgSlowStrength     float64 `json:"avg_slow_strength"`
	LinkCount           int     `json:"link_count"`
	ConsolidationPasses int     `json:"consolidation_passes"`
	ConsolidatedTotal   int     `json:"consolidated_total"`
	PrunedTotal         int     `json:"pruned_total"`
}

// Memory is the dual-stream memory manager. Every operation runs under a
// single lock, so stores, retrievals, consolidation passes and decay
// sweeps never interleave.
type Memory struct {
	cfg   MemoryConfig
	clock clockz.Clock

	mu      sync.Mutex
	entropy *rand.Rand
	fast    map[string]*MemoryTrace
	slow    map[string]*MemoryTrace
	seq     map[string]uint64
	nextSeq uint64

	byTerm    map[string]map[string]struct{}
	byDay     map[string]map[string]struct{}
	byEmotion map[string]map[string]struct{}
	clusters  map[string]*ConsolidatedCluster

	// Strength gained from retrieval since the last store, consolidation,
	// decay, rehearsal or restore. Ranking subtracts it so repeated queries
	// return the same order.
	unsettled map[string]float64

	passes       int
	consolidated int
	pruned       int
}

// NewMemory creates an empty memory. Zero-valued config fields are not
// filled in; start from DefaultMemoryConfig.
func NewMemory(cfg MemoryConfig) *Memory {
	return &Memory{
		cfg:       cfg,
		clock:     clockz.RealClock,
		entropy:   rand.New(rand.NewSource(time.Now().UnixNano())),
		fast:      make(map[string]*MemoryTrace),
		slow:      make(map[string]*MemoryTrace),
		seq:       make(map[string]uint64),
		byTerm:    make(map[string]map[string]struct{}),
		byDay:     make(map[string]map[string]struct{}),
		byEmotion: make(map[string]map[string]struct{}),
		clusters:  make(map[string]*ConsolidatedCluster),
		unsettled: make(map[string]float64),
	}
}

// WithClock sets the time source. Call before first use.
func (m *Memory) WithClock(c clockz.Clock) *Memory {
	m.clock = c
	return m
}

// Config returns the memory configuration.
func (m *Memory) Config() MemoryConfig {
	return m.cfg
}

// Store records a new experience in the fast stream and returns its id.
// If the fast stream then exceeds capacity, one consolidation pass runs.
func (m *Memory) Store(ctx context.Context, content string, valence, attention float64, fc FormationContext) string {
	valence = clamp(valence, -1, 1)
	attention = clamp01(attention)
	fc.AttentionLevel = attention
	fc.ConsciousnessLevel = clamp01(fc.ConsciousnessLevel)
	fc.EnvironmentTags = append([]string(nil), fc.EnvironmentTags...)

	m.mu.Lock()
	clear(m.unsettled)
	now := m.clock.Now()
	t := &MemoryTrace{
		ID:                 ulid.MustNew(ulid.Timestamp(now), m.entropy).String(),
		StreamType:         StreamFastLearning,
		Content:            content,
		EmotionalValence:   valence,
		Strength:           clamp01(0.3 + 0.3*attention + 0.2*math.Abs(valence) + 0.2*fc.ConsciousnessLevel),
		ConsolidationLevel: 0,
		CreatedAt:          now,
		LastAccessedAt:     now,
		SemanticLinks:      semanticTerms(content, m.cfg.MaxLinks),
		FormationContext:   fc,
	}
	m.insertLocked(t)

	var report *ConsolidationReport
	if len(m.fast) > m.cfg.FastCapacity {
		r := m.consolidateLocked(true)
		report = &r
	}
	fastCount, slowCount := len(m.fast), len(m.slow)
	m.mu.Unlock()

	capitan.Emit(ctx, TraceStored,
		FieldMemoryID.Field(t.ID),
		FieldStream.Field(string(StreamFastLearning)),
		FieldFastCount.Field(fastCount),
	)
	if report != nil {
		m.emitConsolidated(ctx, *report, fastCount, slowCount)
	}
	return t.ID
}

// insertLocked adds t to its stream and every index.
func (m *Memory) insertLocked(t *MemoryTrace) {
	if t.StreamType.Fast() {
		m.fast[t.ID] = t
	} else {
		m.slow[t.ID] = t
	}
	m.nextSeq++
	m.seq[t.ID] = m.nextSeq
	for _, l := range t.SemanticLinks {
		addIndex(m.byTerm, l, t.ID)
	}
	addIndex(m.byDay, dayKey(t.CreatedAt), t.ID)
	addIndex(m.byEmotion, t.emotionLabel(), t.ID)
}

// removeLocked deletes a trace and every reference to it.
func (m *Memory) removeLocked(t *MemoryTrace) {
	delete(m.fast, t.ID)
	delete(m.slow, t.ID)
	delete(m.seq, t.ID)
	for _, l := range t.SemanticLinks {
		removeIndex(m.byTerm, l, t.ID)
	}
	removeIndex(m.byDay, dayKey(t.CreatedAt), t.ID)
	removeIndex(m.byEmotion, t.emotionLabel(), t.ID)
	for theme, c := range m.clusters {
		for i, id := range c.MemberIDs {
			if id == t.ID {
				c.MemberIDs = append(c.MemberIDs[:i], c.MemberIDs[i+1:]...)
				break
			}
		}
		if len(c.MemberIDs) == 0 {
			delete(m.clusters, theme)
		}
	}
}

// linkLocked adds a semantic link to a live trace and indexes it.
func (m *Memory) linkLocked(t *MemoryTrace, link string) bool {
	if link == "" || !t.addLink(link) {
		return false
	}
	addIndex(m.byTerm, link, t.ID)
	return true
}

func (m *Memory) traceLocked(id string) (*MemoryTrace, bool) {
	if t, ok := m.fast[id]; ok {
		return t, true
	}
	t, ok := m.slow[id]
	return t, ok
}

// orderedLocked returns traces matching filter in insertion order.
func (m *Memory) orderedLocked(filter StreamFilter) []*MemoryTrace {
	out := make([]*MemoryTrace, 0, len(m.fast)+len(m.slow))
	if filter != StreamsSlow {
		for _, t := range m.fast {
			out = append(out, t)
		}
	}
	if filter != StreamsFast {
		for _, t := range m.slow {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out
}

// Retrieve ranks traces matching query by relevance. Only traces whose
// content or semantic links match are returned. Retrieval is not
// read-only: each returned trace is boosted and its access recorded,
// after ranking. Boosts join the ranking only once memory next changes, so
// repeating a query returns the same order.
func (m *Memory) Retrieve(query string, filter StreamFilter, limit int, minStrength float64) []RetrievalResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()

	type hit struct {
		t     *MemoryTrace
		score float64
	}
	var hits []hit
	for _, t := range m.orderedLocked(filter) {
		strength := t.Strength - m.unsettled[t.ID]
		if strength < minStrength {
			continue
		}
		contentMatch := strings.Contains(strings.ToLower(t.Content), q)
		linkMatch := false
		for _, l := range t.SemanticLinks {
			if strings.Contains(q, l) || strings.Contains(l, q) {
				linkMatch = true
				break
			}
		}
		if !contentMatch && !linkMatch {
			continue
		}
		score := 0.4*boolf(contentMatch) + 0.2*boolf(linkMatch) +
			0.2*strength + 0.1*t.ConsolidationLevel
		if now.Sub(t.CreatedAt) < m.cfg.RecencyWindow {
			score += 0.1
		}
		hits = append(hits, hit{t: t, score: math.Min(1, score)})
	}

	// Stable sort over insertion order breaks ties by insertion.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]RetrievalResult, len(hits))
	for i, h := range hits {
		boost := 0.005
		if h.t.StreamType.Fast() {
			boost = 0.01
		}
		before := h.t.Strength
		h.t.Strength = math.Min(1, h.t.Strength+boost)
		m.unsettled[h.t.ID] += h.t.Strength - before
		h.t.AccessCount++
		h.t.LastAccessedAt = now
		out[i] = RetrievalResult{Trace: h.t.clone(), Relevance: h.score}
	}
	return out
}

// Get returns a copy of a trace without touching its access state.
func (m *Memory) Get(id string) (MemoryTrace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.traceLocked(id)
	if !ok {
		return MemoryTrace{}, false
	}
	return t.clone(), true
}

// InFast reports whether id is owned by the fast stream.
func (m *Memory) InFast(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.fast[id]
	return ok
}

// InSlow reports whether id is owned by the slow stream.
func (m *Memory) InSlow(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.slow[id]
	return ok
}

// ByTerm returns ids indexed under a semantic term, in insertion order.
func (m *Memory) ByTerm(term string) []string {
	return m.lookup(m.byTerm, strings.ToLower(term))
}

// ByDay returns ids created on the UTC day of t, in insertion order.
func (m *Memory) ByDay(t time.Time) []string {
	return m.lookup(m.byDay, dayKey(t))
}

// ByEmotion returns ids indexed under an emotional label, in insertion
// order. Labels are the formation emotional state, or positive, negative
// or neutral by valence when no state was recorded.
func (m *Memory) ByEmotion(label string) []string {
	return m.lookup(m.byEmotion, strings.ToLower(label))
}

func (m *Memory) lookup(index map[string]map[string]struct{}, key string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := index[key]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return m.seq[ids[i]] < m.seq[ids[j]] })
	return ids
}

// Clusters returns copies of all consolidated clusters sorted by theme.
func (m *Memory) Clusters() []ConsolidatedCluster {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ConsolidatedCluster, 0, len(m.clusters))
	for _, c := range m.clusters {
		cc := *c
		cc.MemberIDs = append([]string(nil), c.MemberIDs...)
		out = append(out, cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Theme < out[j].Theme })
	return out
}

// Statistics summarizes both streams.
func (m *Memory) Statistics() MemoryStatistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := MemoryStatistics{
		FastCount:           len(m.fast),
		SlowCount:           len(m.slow),
		ClusterCount:        len(m.clusters),
		ConsolidationPasses: m.passes,
		ConsolidatedTotal:   m.consolidated,
		PrunedTotal:         m.pruned,
	}
	for _, t := range m.fast {
		s.AvgFastStrength += t.Strength
		s.LinkCount += len(t.SemanticLinks)
	}
	for _, t := range m.slow {
		s.AvgSlowStrength += t.Strength
		s.LinkCount += len(t.SemanticLinks)
	}
	if s.FastCount > 0 {
		s.AvgFastStrength /= float64(s.FastCount)
	}
	if s.SlowCount > 0 {
		s.AvgSlowStrength /= float64(s.SlowCount)
	}
	return s
}

// Snapshot returns copies of every trace in insertion order.
func (m *Memory) Snapshot() []MemoryTrace {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.orderedLocked(StreamsAll)
	out := make([]MemoryTrace, len(all))
	for i, t := range all {
		out[i] = t.clone()
	}
	return out
}

// Restore replaces all state with traces, keeping their order as the
// insertion order. Clusters are rebuilt from the slow stream.
func (m *Memory) Restore(traces []MemoryTrace) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fast = make(map[string]*MemoryTrace)
	m.slow = make(map[string]*MemoryTrace)
	m.seq = make(map[string]uint64)
	m.byTerm = make(map[string]map[string]struct{})
	m.byDay = make(map[string]map[string]struct{})
	m.byEmotion = make(map[string]map[string]struct{})
	m.clusters = make(map[string]*ConsolidatedCluster)
	clear(m.unsettled)
	for i := range traces {
		t := traces[i].clone()
		if _, dup := m.seq[t.ID]; dup || t.ID == "" {
			continue
		}
		m.insertLocked(&t)
		if !t.StreamType.Fast() {
			m.clusterLocked(&t, t.CreatedAt)
		}
	}
}

func addIndex(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeIndex(index map[string]map[string]struct{}, key, id string) {
	if set, ok := index[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(index, key)
		}
	}
}
