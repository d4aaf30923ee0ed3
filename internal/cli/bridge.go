package cli

import (
	"context"
	"time"

	"github.com/infektyd/syntra"
	"github.com/zoobzio/capitan"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// bridge forwards syntra signals to a zap logger.
type bridge struct {
	logger    *zap.Logger
	listeners []any
}

func newBridge(logger *zap.Logger) *bridge {
	b := &bridge{logger: logger}
	b.listeners = []any{
		capitan.Hook(syntra.PassStarted, b.handler("pass started", zapcore.DebugLevel)),
		capitan.Hook(syntra.PassCompleted, b.handler("pass completed", zapcore.InfoLevel)),
		capitan.Hook(syntra.PassFailed, b.handler("pass failed", zapcore.ErrorLevel)),
		capitan.Hook(syntra.AssessmentCompleted, b.handler("assessment completed", zapcore.DebugLevel)),
		capitan.Hook(syntra.AssessmentFailed, b.handler("assessment failed", zapcore.WarnLevel)),
		capitan.Hook(syntra.AssessmentDegraded, b.handler("assessment degraded", zapcore.WarnLevel)),
		capitan.Hook(syntra.SynthesisCompleted, b.handler("synthesis completed", zapcore.DebugLevel)),
		capitan.Hook(syntra.SynthesisFailed, b.handler("synthesis failed", zapcore.WarnLevel)),
		capitan.Hook(syntra.RenderCompleted, b.handler("render completed", zapcore.DebugLevel)),
		capitan.Hook(syntra.RenderFailed, b.handler("render failed", zapcore.WarnLevel)),
		capitan.Hook(syntra.DriftChecked, b.handler("drift checked", zapcore.DebugLevel)),
		capitan.Hook(syntra.CorrectionApplied, b.handler("correction applied", zapcore.InfoLevel)),
		capitan.Hook(syntra.CorrectionFailed, b.handler("correction failed", zapcore.WarnLevel)),
		capitan.Hook(syntra.TraceStored, b.handler("trace stored", zapcore.DebugLevel)),
		capitan.Hook(syntra.MemoryConsolidated, b.handler("memory consolidated", zapcore.InfoLevel)),
		capitan.Hook(syntra.MemoryDecayed, b.handler("memory decayed", zapcore.InfoLevel)),
		capitan.Hook(syntra.RehearsalCompleted, b.handler("rehearsal completed", zapcore.InfoLevel)),
		capitan.Hook(syntra.RehearsalScheduled, b.handler("rehearsal scheduled", zapcore.InfoLevel)),
		capitan.Hook(syntra.RehearsalFailed, b.handler("rehearsal failed", zapcore.WarnLevel)),
		capitan.Hook(syntra.JournalFailed, b.handler("journal write failed", zapcore.ErrorLevel)),
	}
	return b
}

func (b *bridge) handler(msg string, level zapcore.Level) func(context.Context, *capitan.Event) {
	return func(_ context.Context, e *capitan.Event) {
		if ce := b.logger.Check(level, msg); ce != nil {
			ce.Write(eventFields(e)...)
		}
	}
}

// Close detaches every listener.
func (b *bridge) Close() {
	for _, l := range b.listeners {
		switch c := l.(type) {
		case interface{ Close() error }:
			_ = c.Close()
		case interface{ Close() }:
			c.Close()
		}
	}
	b.listeners = nil
}

type fieldKey[T any] interface {
	Name() string
	From(*capitan.Event) (T, bool)
}

func field[T any, K fieldKey[T]](fields []zap.Field, e *capitan.Event, k K) []zap.Field {
	v, ok := k.From(e)
	if !ok {
		return fields
	}
	return append(fields, zap.Any(k.Name(), v))
}

func eventFields(e *capitan.Event) []zap.Field {
	fields := make([]zap.Field, 0, 8)
	fields = field[string](fields, e, syntra.FieldTraceID)
	fields = field[string](fields, e, syntra.FieldComponent)
	fields = field[int](fields, e, syntra.FieldInputSize)
	fields = field[string](fields, e, syntra.FieldProvider)
	fields = field[float32](fields, e, syntra.FieldTemperature)
	fields = field[string](fields, e, syntra.FieldMode)
	fields = field[string](fields, e, syntra.FieldEmotion)
	fields = field[string](fields, e, syntra.FieldFramework)
	fields = field[float32](fields, e, syntra.FieldValonInfluence)
	fields = field[int](fields, e, syntra.FieldConflictCount)
	fields = field[string](fields, e, syntra.FieldSeverity)
	fields = field[string](fields, e, syntra.FieldDriftType)
	fields = field[float32](fields, e, syntra.FieldMagnitude)
	fields = field[float32](fields, e, syntra.FieldIntegrity)
	fields = field[string](fields, e, syntra.FieldMemoryID)
	fields = field[string](fields, e, syntra.FieldStream)
	fields = field[int](fields, e, syntra.FieldFastCount)
	fields = field[int](fields, e, syntra.FieldSlowCount)
	fields = field[int](fields, e, syntra.FieldMoved)
	fields = field[int](fields, e, syntra.FieldPruned)
	fields = field[string](fields, e, syntra.FieldSessionID)
	fields = field[string](fields, e, syntra.FieldStrategy)
	fields = field[int](fields, e, syntra.FieldItemCount)
	fields = field[float32](fields, e, syntra.FieldEffectiveness)
	fields = field[time.Duration](fields, e, syntra.FieldDuration)
	fields = field[error](fields, e, syntra.FieldError)
	return fields
}
