package syntra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zoobzio/zyn"
)

// generation carries the per-component settings for one provider call.
type generation struct {
	component   string
	provider    Provider
	temperature float32
	timeout     time.Duration
}

// respond runs a transform synapse and returns its free-form output.
// Exactly one provider round is attempted.
func (g generation) respond(ctx context.Context, prompt string, input zyn.TransformInput) (string, error) {
	provider, err := ResolveProvider(ctx, g.provider)
	if err != nil {
		return "", err
	}
	rec := &recordingProvider{Provider: provider}

	synapse, err := zyn.Transform(prompt, rec, g.options()...)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create transform synapse: %w", ErrGenerationFailed, err)
	}

	input.Temperature = g.temperature
	out, err := synapse.FireWithInput(ctx, zyn.NewSession(), input)
	if err != nil {
		return "", classifyGeneration(rec.lastErr(), err)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: empty response from %s", ErrGenerationFailed, provider.Name())
	}
	return out, nil
}

// extractStructured runs an extract synapse for schema-constrained output.
func extractStructured[T zyn.Validator](ctx context.Context, g generation, what, text string) (T, error) {
	var zero T
	provider, err := ResolveProvider(ctx, g.provider)
	if err != nil {
		return zero, err
	}
	rec := &recordingProvider{Provider: provider}

	synapse, err := zyn.Extract[T](what, rec, g.options()...)
	if err != nil {
		return zero, fmt.Errorf("%w: failed to create extract synapse: %w", ErrGenerationFailed, err)
	}

	out, err := synapse.FireWithInput(ctx, zyn.NewSession(), zyn.ExtractionInput{
		Text:        text,
		Temperature: g.temperature,
	})
	if err != nil {
		return zero, classifyGeneration(rec.lastErr(), err)
	}
	return out, nil
}

// options bounds the synapse pipeline by the component timeout. No retry
// option is ever added: each call is a single attempt.
func (g generation) options() []zyn.Option {
	if g.timeout <= 0 {
		return nil
	}
	return []zyn.Option{zyn.WithTimeout(g.timeout)}
}

func (g generation) providerName(ctx context.Context) string {
	p, err := ResolveProvider(ctx, g.provider)
	if err != nil {
		return ""
	}
	return p.Name()
}

// classifyGeneration keeps unavailability distinct from every other
// failure, which is reported as ErrGenerationFailed.
func classifyGeneration(providerErr, synapseErr error) error {
	if errors.Is(providerErr, ErrCapabilityUnavailable) || errors.Is(synapseErr, ErrCapabilityUnavailable) {
		if providerErr != nil {
			return fmt.Errorf("%w: %w", ErrCapabilityUnavailable, providerErr)
		}
		return synapseErr
	}
	return fmt.Errorf("%w: %w", ErrGenerationFailed, synapseErr)
}

// validateInput applies the shared input rules: non-empty after trimming
// and at most MaxInputLength characters.
func validateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidInput)
	}
	if n := len([]rune(input)); n > MaxInputLength {
		return fmt.Errorf("%w: %d characters exceeds limit of %d", ErrInvalidInput, n, MaxInputLength)
	}
	return nil
}
