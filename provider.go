package syntra

import (
	"context"
	"fmt"
	"sync"

	"github.com/zoobzio/zyn"
)

// Provider defines the interface for LLM providers.
// This matches zyn.Provider interface for compatibility.
type Provider interface {
	Call(ctx context.Context, messages []zyn.Message, temperature float32) (*zyn.ProviderResponse, error)
	Name() string
}

type providerKeyType struct{}

var providerKey = providerKeyType{}

var (
	globalProvider   Provider
	globalProviderMu sync.RWMutex
)

// ErrNoProvider is returned when no provider can be resolved.
var ErrNoProvider = fmt.Errorf("%w: no provider configured (set via component, context, or global)", ErrCapabilityUnavailable)

// SetProvider sets the global fallback provider.
func SetProvider(p Provider) {
	globalProviderMu.Lock()
	defer globalProviderMu.Unlock()
	globalProvider = p
}

// GetProvider returns the global provider, if set.
func GetProvider() Provider {
	globalProviderMu.RLock()
	defer globalProviderMu.RUnlock()
	return globalProvider
}

// WithProvider adds a provider to the context.
func WithProvider(ctx context.Context, p Provider) context.Context {
	return context.WithValue(ctx, providerKey, p)
}

// ProviderFromContext retrieves the provider from context, if present.
func ProviderFromContext(ctx context.Context) (Provider, bool) {
	p, ok := ctx.Value(providerKey).(Provider)
	return p, ok && p != nil
}

// ResolveProvider determines which provider to use:
// 1. Component-level provider (passed as argument)
// 2. Context provider
// 3. Global provider
// 4. ErrNoProvider.
func ResolveProvider(ctx context.Context, own Provider) (Provider, error) {
	if own != nil {
		return own, nil
	}
	if p, ok := ProviderFromContext(ctx); ok {
		return p, nil
	}
	if p := GetProvider(); p != nil {
		return p, nil
	}
	return nil, ErrNoProvider
}

// recordingProvider remembers the last error returned by the wrapped
// provider. zyn may rewrap provider errors on the way out, so the raw
// error is kept for classification.
type recordingProvider struct {
	Provider
	mu    sync.Mutex
	err   error
	calls int
}

func (r *recordingProvider) Call(ctx context.Context, messages []zyn.Message, temperature float32) (*zyn.ProviderResponse, error) {
	resp, err := r.Provider.Call(ctx, messages, temperature)
	r.mu.Lock()
	r.calls++
	r.err = err
	r.mu.Unlock()
	return resp, err
}

func (r *recordingProvider) lastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
