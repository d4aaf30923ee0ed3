package syntra

import (
	"strings"
	"time"
	"unicode"
)

// StreamType identifies the kind of a memory trace. Fast-learning traces
// live in the fast stream; every other type lives in the slow stream.
type StreamType string

// Stream types.
const (
	StreamFastLearning StreamType = "fast-learning"
	StreamSlowLearning StreamType = "slow-learning"
	StreamEpisodic     StreamType = "episodic"
	StreamSemantic     StreamType = "semantic"
	StreamProcedural   StreamType = "procedural"
)

// Fast reports whether traces of this type belong to the fast stream.
func (s StreamType) Fast() bool {
	return s == StreamFastLearning
}

// StreamFilter restricts retrieval to one or both streams.
type StreamFilter int

// Stream filters.
const (
	StreamsAll StreamFilter = iota
	StreamsFast
	StreamsSlow
)

func (f StreamFilter) includes(s StreamType) bool {
	switch f {
	case StreamsFast:
		return s.Fast()
	case StreamsSlow:
		return !s.Fast()
	default:
		return true
	}
}

// FormationContext is a snapshot of conditions when a trace was formed.
type FormationContext struct {
	ConsciousnessState string   `json:"consciousness_state"`
	ConsciousnessLevel float64  `json:"consciousness_level"`
	EmotionalState     string   `json:"emotional_state"`
	AttentionLevel     float64  `json:"attention_level"`
	EnvironmentTags    []string `json:"environment_tags,omitempty"`
}

// MemoryTrace is the atomic unit of memory.
type MemoryTrace struct {
	ID                 string           `json:"id"`
	StreamType         StreamType       `json:"stream_type"`
	Content            string           `json:"content"`
	EmotionalValence   float64          `json:"emotional_valence"`
	Strength           float64          `json:"strength"`
	ConsolidationLevel float64          `json:"consolidation_level"`
	CreatedAt          time.Time        `json:"created_at"`
	LastAccessedAt     time.Time        `json:"last_accessed_at"`
	AccessCount        int              `json:"access_count"`
	SemanticLinks      []string         `json:"semantic_links"`
	FormationContext   FormationContext `json:"formation_context"`

	// DecayedAt is when decay was last applied; forgetting is measured from
	// the later of this and LastAccessedAt.
	DecayedAt time.Time `json:"decayed_at,omitempty"`
}

func (t *MemoryTrace) clone() MemoryTrace {
	c := *t
	c.SemanticLinks = append([]string(nil), t.SemanticLinks...)
	c.FormationContext.EnvironmentTags = append([]string(nil), t.FormationContext.EnvironmentTags...)
	return c
}

// Theme is the cluster key of a trace: its first semantic link.
func (t *MemoryTrace) Theme() string {
	if len(t.SemanticLinks) == 0 {
		return "general"
	}
	return t.SemanticLinks[0]
}

// addLink appends link if absent, keeping insertion order.
func (t *MemoryTrace) addLink(link string) bool {
	for _, l := range t.SemanticLinks {
		if l == link {
			return false
		}
	}
	t.SemanticLinks = append(t.SemanticLinks, link)
	return true
}

// emotionLabel is the emotional index key of a trace.
func (t *MemoryTrace) emotionLabel() string {
	if s := strings.TrimSpace(t.FormationContext.EmotionalState); s != "" {
		return strings.ToLower(s)
	}
	return valenceLabel(t.EmotionalValence)
}

func valenceLabel(v float64) string {
	switch {
	case v > 0.3:
		return "positive"
	case v < -0.3:
		return "negative"
	default:
		return "neutral"
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "been": true, "before": true,
	"being": true, "could": true, "does": true, "doing": true, "from": true, "have": true,
	"having": true, "here": true, "into": true, "just": true, "more": true, "most": true,
	"much": true, "must": true, "only": true, "other": true, "over": true, "should": true,
	"some": true, "such": true, "than": true, "that": true, "their": true, "them": true,
	"then": true, "there": true, "these": true, "they": true, "this": true, "those": true,
	"very": true, "want": true, "were": true, "what": true, "when": true, "where": true,
	"which": true, "while": true, "will": true, "with": true, "would": true, "your": true,
}

// semanticTerms returns up to limit distinct lowercase terms of at least
// four letters, stop words removed, in order of first appearance.
func semanticTerms(text string, limit int) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	seen := make(map[string]bool)
	var out []string
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if i := strings.Index(f, "'"); i >= 0 {
			f = f[:i]
		}
		if len([]rune(f)) < 4 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == limit {
			break
		}
	}
	return out
}
