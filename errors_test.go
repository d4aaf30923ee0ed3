package syntra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      FailureCategory
		retryable bool
	}{
		{"nil", nil, FailureNone, false},
		{"invalid input", fmt.Errorf("affect: %w", ErrInvalidInput), FailureInvalid, false},
		{"unavailable", fmt.Errorf("logic: %w", ErrNoProvider), FailureUnavailable, false},
		{"generation", fmt.Errorf("synthesis: %w: boom", ErrGenerationFailed), FailureTransient, true},
		{"deadline", fmt.Errorf("render: %w", context.DeadlineExceeded), FailureTransient, true},
		{"validation", fmt.Errorf("synthesis: %w", ErrValidationFailed), FailureValidation, true},
		{"unknown", errors.New("disk on fire"), FailureUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
			if got := Retryable(tt.err); got != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", true},
		{"whitespace", "  \n\t ", true},
		{"ordinary", "Should I report it?", false},
		{"at limit", strings.Repeat("a", MaxInputLength), false},
		{"over limit", strings.Repeat("a", MaxInputLength+1), true},
		{"multibyte at limit", strings.Repeat("é", MaxInputLength), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInput(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestClassifyGeneration(t *testing.T) {
	providerErr := fmt.Errorf("%w: api key missing", ErrCapabilityUnavailable)
	err := classifyGeneration(providerErr, errors.New("synapse wrapped"))
	if !errors.Is(err, ErrCapabilityUnavailable) {
		t.Errorf("expected unavailable to survive, got %v", err)
	}

	err = classifyGeneration(errors.New("503"), errors.New("synapse wrapped"))
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}
