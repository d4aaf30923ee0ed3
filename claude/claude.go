// Package claude adapts the Anthropic Messages API to syntra.Provider.
package claude

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/infektyd/syntra"
	"github.com/zoobzio/zyn"
)

// Defaults used when Options leaves a field empty.
const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultMaxTokens = 1024
	APIKeyEnv        = "ANTHROPIC_API_KEY"
)

// Options configures a Provider.
type Options struct {
	APIKey    string
	Model     string
	MaxTokens int64
	BaseURL   string

	// MaxRetries is the number of retries the client may make after a
	// failed request. Zero means a single attempt.
	MaxRetries int
}

// Provider implements syntra.Provider on the Anthropic Messages API.
type Provider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New creates a provider. The API key falls back to ANTHROPIC_API_KEY;
// with neither set, New returns an error wrapping
// syntra.ErrCapabilityUnavailable.
func New(opts Options) (*Provider, error) {
	key := opts.APIKey
	if key == "" {
		key = os.Getenv(APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("claude: %w: %s not set", syntra.ErrCapabilityUnavailable, APIKeyEnv)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(key)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}
	reqOpts = append(reqOpts, option.WithMaxRetries(retries))

	p := &Provider{
		client:    anthropic.NewClient(reqOpts...),
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
	}
	if p.model == "" {
		p.model = DefaultModel
	}
	if p.maxTokens <= 0 {
		p.maxTokens = DefaultMaxTokens
	}
	return p, nil
}

// Name implements syntra.Provider.
func (p *Provider) Name() string {
	return "claude:" + p.model
}

// Call implements syntra.Provider. System messages become the system
// prompt; user and assistant messages keep their order.
func (p *Provider) Call(ctx context.Context, messages []zyn.Message, temperature float32) (*zyn.ProviderResponse, error) {
	params, err := p.params(messages, temperature)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &zyn.ProviderResponse{
		Content: text.String(),
		Usage: zyn.TokenUsage{
			Prompt:     int(resp.Usage.InputTokens),
			Completion: int(resp.Usage.OutputTokens),
			Total:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

func (p *Provider) params(messages []zyn.Message, temperature float32) (anthropic.MessageNewParams, error) {
	var (
		system []anthropic.TextBlockParam
		turns  []anthropic.MessageParam
	)
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case "assistant":
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case "user", "":
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		default:
			return anthropic.MessageNewParams{}, fmt.Errorf("claude: unsupported role %q", m.Role)
		}
	}
	if len(turns) == 0 {
		return anthropic.MessageNewParams{}, errors.New("claude: no user messages")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Messages:    turns,
		Temperature: anthropic.Float(float64(temperature)),
	}
	if len(system) > 0 {
		params.System = system
	}
	return params, nil
}

// classify marks authentication and permission failures as unavailable
// capability; everything else passes through for the caller to treat as a
// generation failure.
func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("claude: %w: %w", syntra.ErrCapabilityUnavailable, err)
		}
	}
	return fmt.Errorf("claude: %w", err)
}
