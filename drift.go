package syntra

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Severity classifies drift magnitude.
type Severity string

// Severities with inclusive lower bounds at 0.2, 0.4 and 0.6.
const (
	SeverityMinimal     Severity = "minimal"
	SeverityModerate    Severity = "moderate"
	SeveritySignificant Severity = "significant"
	SeverityCritical    Severity = "critical"
)

// Severity thresholds.
const (
	ModerateThreshold    = 0.2
	SignificantThreshold = 0.4
	CriticalThreshold    = 0.6
)

// SeverityFor maps a magnitude onto its severity bucket.
func SeverityFor(magnitude float64) Severity {
	switch {
	case magnitude >= CriticalThreshold:
		return SeverityCritical
	case magnitude >= SignificantThreshold:
		return SeveritySignificant
	case magnitude >= ModerateThreshold:
		return SeverityModerate
	default:
		return SeverityMinimal
	}
}

// DriftType names the dominant kind of deviation.
type DriftType string

// Drift types.
const (
	DriftStable            DriftType = "stable"
	DriftValue             DriftType = "value-drift"
	DriftEmotional         DriftType = "emotional-drift"
	DriftReasoning         DriftType = "reasoning-drift"
	DriftIdentityViolation DriftType = "identity-violation"
)

// DriftComponents holds the per-dimension deviations behind a magnitude.
type DriftComponents struct {
	Principle float64 `json:"principle"`
	Emotional float64 `json:"emotional"`
	Empathy   float64 `json:"empathy"`
	Reasoning float64 `json:"reasoning"`
}

// DriftAlert records one comparison against the reference baseline.
// Alerts are never modified after creation.
type DriftAlert struct {
	ID                   string          `json:"id"`
	DriftType            DriftType       `json:"drift_type"`
	Severity             Severity        `json:"severity"`
	AffectedAspects      []string        `json:"affected_aspects"`
	Magnitude            float64         `json:"magnitude"`
	Components           DriftComponents `json:"components"`
	Recommendations      []string        `json:"recommendations"`
	PreservationRequired bool            `json:"preservation_required"`
	ViolatedPrinciples   []Principle     `json:"violated_principles,omitempty"`
	DisallowedEmotion    Emotion         `json:"disallowed_emotion,omitempty"`
	FrameworkIntegrity   float64         `json:"framework_integrity"`
	Timestamp            time.Time       `json:"timestamp"`
}

// Aspect labels.
const (
	AspectPrinciples = "principle-alignment"
	AspectEmotional  = "emotional-pattern"
	AspectEmpathy    = "empathy"
	AspectReasoning  = "reasoning-style"
)

var caringEmotions = map[Emotion]bool{
	EmotionCompassion: true, EmotionConcern: true, EmotionProtectiveness: true, EmotionHope: true,
}

// ComputeDrift compares an affect assessment, and optionally the response
// text produced from it, against baseline. The result has no ID or
// timestamp; DriftMonitor assigns those when recording.
func ComputeDrift(affect AffectAssessment, response string, baseline *ReferenceBaseline) DriftAlert {
	u := clamp01(affect.MoralUrgency)

	// Principle alignment: coverage of the baseline by weight, against an
	// expectation that grows with urgency.
	covered := 0.0
	unexpected := 0
	for _, p := range affect.ActivatedPrinciples {
		if w := baseline.Weight(p); w > 0 {
			covered += w
		} else {
			unexpected++
		}
	}
	coverage := math.Min(1, covered/(1+2*u))
	principleDev := clamp01((1-coverage)*u + 0.2*float64(unexpected))

	// Emotional pattern.
	emotionDev := 0.5
	switch {
	case baseline.Disallowed(affect.PrimaryEmotion):
		emotionDev = 1
	case baseline.Expected(affect.PrimaryEmotion):
		emotionDev = 0
	}
	empathy := 0.5*clamp01(affect.Weight) + 0.3*boolf(len(affect.Concerns) > 0) + 0.2*boolf(caringEmotions[affect.PrimaryEmotion])
	empathyDev := math.Abs(empathy - baseline.Empathy())
	emotionalDev := clamp01(0.7*emotionDev + 0.3*empathyDev)

	// Reasoning style.
	text := strings.ToLower(affect.Guidance + "\n" + strings.Join(affect.Concerns, "\n") + "\n" + response)
	found := countAny(text, baseline.ReasoningMarkers()...)
	reasoningDev := 1 - math.Min(1, float64(found)/float64(baseline.MinReasoningMarkers()))

	magnitude := clamp01(0.4*principleDev + 0.4*emotionalDev + 0.2*reasoningDev)
	disallowed := baseline.Disallowed(affect.PrimaryEmotion)
	if disallowed {
		// A disallowed emotion is a hard violation; severity follows
		// magnitude, so magnitude carries it into the critical bucket.
		magnitude = math.Max(magnitude, CriticalThreshold)
	}
	magnitude = math.Round(magnitude*1e6) / 1e6
	severity := SeverityFor(magnitude)

	alert := DriftAlert{
		Severity:  severity,
		Magnitude: magnitude,
		Components: DriftComponents{
			Principle: principleDev,
			Emotional: emotionalDev,
			Empathy:   empathyDev,
			Reasoning: reasoningDev,
		},
		PreservationRequired: severity == SeveritySignificant || severity == SeverityCritical || disallowed,
		FrameworkIntegrity:   FrameworkIntegrity(magnitude, severity),
	}
	if disallowed {
		alert.DisallowedEmotion = affect.PrimaryEmotion
	}

	switch {
	case disallowed:
		alert.DriftType = DriftIdentityViolation
	case severity == SeverityMinimal:
		alert.DriftType = DriftStable
	case 0.4*principleDev >= 0.4*emotionalDev && 0.4*principleDev >= 0.2*reasoningDev:
		alert.DriftType = DriftValue
	case 0.4*emotionalDev >= 0.2*reasoningDev:
		alert.DriftType = DriftEmotional
	default:
		alert.DriftType = DriftReasoning
	}

	if principleDev > 0.3 {
		alert.AffectedAspects = append(alert.AffectedAspects, AspectPrinciples)
		alert.Recommendations = append(alert.Recommendations, "Re-ground the response in the core principles at stake")
	}
	if emotionDev > 0 {
		alert.AffectedAspects = append(alert.AffectedAspects, AspectEmotional)
		if disallowed {
			alert.Recommendations = append(alert.Recommendations, fmt.Sprintf("Replace %s with a caring emotional stance", affect.PrimaryEmotion))
		} else {
			alert.Recommendations = append(alert.Recommendations, "Return to an expected emotional register")
		}
	}
	if empathyDev > 0.3 {
		alert.AffectedAspects = append(alert.AffectedAspects, AspectEmpathy)
		alert.Recommendations = append(alert.Recommendations, "Acknowledge the concerns of the people involved")
	}
	if reasoningDev > 0.5 {
		alert.AffectedAspects = append(alert.AffectedAspects, AspectReasoning)
		alert.Recommendations = append(alert.Recommendations, "Explain the reasoning and its consequences explicitly")
	}
	if len(alert.Recommendations) == 0 {
		alert.Recommendations = []string{"Maintain current alignment"}
	}

	if principleDev > 0.3 || alert.PreservationRequired {
		for _, p := range baseline.Principles() {
			if len(alert.ViolatedPrinciples) == 3 {
				break
			}
			if baseline.Weight(p) >= 0.8 && !affect.HasPrinciple(p) {
				alert.ViolatedPrinciples = append(alert.ViolatedPrinciples, p)
			}
		}
	}
	return alert
}

// FrameworkIntegrity scores how intact the reference framework is after a
// check: max(0, 1 - 0.5*magnitude - 0.3 if critical).
func FrameworkIntegrity(magnitude float64, severity Severity) float64 {
	v := 1 - 0.5*magnitude
	if severity == SeverityCritical {
		v -= 0.3
	}
	return math.Max(0, v)
}

// PreservationBlock renders the instruction added to a corrective
// re-synthesis.
func (a DriftAlert) PreservationBlock() string {
	var b strings.Builder
	b.WriteString("The previous decision drifted from the reference framework")
	fmt.Fprintf(&b, " (%s, magnitude %.2f).", a.Severity, a.Magnitude)
	if len(a.ViolatedPrinciples) > 0 {
		names := make([]string, len(a.ViolatedPrinciples))
		for i, p := range a.ViolatedPrinciples {
			names[i] = string(p)
		}
		fmt.Fprintf(&b, " Realign with these principles: %s.", strings.Join(names, ", "))
	}
	if a.DisallowedEmotion != "" {
		fmt.Fprintf(&b, " Do not express %s.", a.DisallowedEmotion)
	}
	for _, r := range a.Recommendations {
		fmt.Fprintf(&b, " %s.", r)
	}
	return b.String()
}

// IntegrityReport summarizes the drift history.
type IntegrityReport struct {
	TotalChecks            int     `json:"total_checks"`
	RecentAverageMagnitude float64 `json:"recent_average_magnitude"`
	CriticalCount          int     `json:"critical_count"`
	PreservationCount      int     `json:"preservation_count"`
	CurrentIntegrity       float64 `json:"current_integrity"`
	Trend                  string  `json:"trend"` // improving, degrading, stable, insufficient-data
}

// DriftMonitor checks assessments against an injected baseline and keeps
// an append-only alert history.
type DriftMonitor struct {
	baseline *ReferenceBaseline
	journal  Journal
	clock    clockz.Clock
	window   int

	mu      sync.RWMutex
	history []DriftAlert
}

// NewDriftMonitor creates a monitor bound to baseline for its lifetime.
func NewDriftMonitor(baseline *ReferenceBaseline) *DriftMonitor {
	return &DriftMonitor{
		baseline: baseline,
		clock:    clockz.RealClock,
		window:   20,
	}
}

// WithJournal records every alert to j.
func (m *DriftMonitor) WithJournal(j Journal) *DriftMonitor {
	m.journal = j
	return m
}

// WithClock sets the time source for alert timestamps.
func (m *DriftMonitor) WithClock(c clockz.Clock) *DriftMonitor {
	m.clock = c
	return m
}

// WithWindow sets how many recent alerts feed the integrity report.
func (m *DriftMonitor) WithWindow(n int) *DriftMonitor {
	if n > 0 {
		m.window = n
	}
	return m
}

// Baseline returns the monitor's reference baseline.
func (m *DriftMonitor) Baseline() *ReferenceBaseline {
	return m.baseline
}

// Analyze checks an affect assessment against the baseline.
func (m *DriftMonitor) Analyze(ctx context.Context, affect AffectAssessment) DriftAlert {
	return m.AnalyzeResponse(ctx, affect, "")
}

// AnalyzeResponse checks an affect assessment together with the response
// text produced from it.
func (m *DriftMonitor) AnalyzeResponse(ctx context.Context, affect AffectAssessment, response string) DriftAlert {
	alert := ComputeDrift(affect, response, m.baseline)
	alert.ID = uuid.New().String()
	alert.Timestamp = m.clock.Now()

	m.mu.Lock()
	m.history = append(m.history, alert)
	m.mu.Unlock()

	if m.journal != nil {
		if err := m.journal.RecordDrift(ctx, alert); err != nil {
			capitan.Error(ctx, JournalFailed,
				FieldComponent.Field("drift"),
				FieldError.Field(err),
			)
		}
	}

	capitan.Emit(ctx, DriftChecked,
		FieldSeverity.Field(string(alert.Severity)),
		FieldDriftType.Field(string(alert.DriftType)),
		FieldMagnitude.Field(float32(alert.Magnitude)),
		FieldIntegrity.Field(float32(alert.FrameworkIntegrity)),
	)
	return alert
}

// History returns a copy of every alert recorded so far, oldest first.
func (m *DriftMonitor) History() []DriftAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]DriftAlert(nil), m.history...)
}

// Restore prepends previously recorded alerts to the history. Restored
// alerts are not written to the journal again.
func (m *DriftMonitor) Restore(alerts []DriftAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(append([]DriftAlert(nil), alerts...), m.history...)
}

// Report computes rolling statistics over the alert history.
func (m *DriftMonitor) Report() IntegrityReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return integrityReport(m.history, m.window)
}

func integrityReport(history []DriftAlert, window int) IntegrityReport {
	r := IntegrityReport{TotalChecks: len(history), CurrentIntegrity: 1, Trend: "insufficient-data"}
	if len(history) == 0 {
		return r
	}
	for _, a := range history {
		if a.Severity == SeverityCritical {
			r.CriticalCount++
		}
		if a.PreservationRequired {
			r.PreservationCount++
		}
	}
	r.CurrentIntegrity = history[len(history)-1].FrameworkIntegrity

	recent := history
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	r.RecentAverageMagnitude = meanMagnitude(recent)

	if len(recent) >= 4 {
		half := len(recent) / 2
		older, newer := meanMagnitude(recent[:half]), meanMagnitude(recent[half:])
		switch {
		case newer < older-0.05:
			r.Trend = "improving"
		case newer > older+0.05:
			r.Trend = "degrading"
		default:
			r.Trend = "stable"
		}
	}
	return r
}

func meanMagnitude(alerts []DriftAlert) float64 {
	if len(alerts) == 0 {
		return 0
	}
	sum := 0.0
	for _, a := range alerts {
		sum += a.Magnitude
	}
	return sum / float64(len(alerts))
}
