package generation

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when GEMINI_MODEL is unset.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiProvider calls the Gemini API with a JSON response MIME type.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

var _ Provider = (*GeminiProvider)(nil)

// GeminiOption adjusts the genai client configuration.
type GeminiOption func(*genai.ClientConfig)

// WithGeminiBaseURL points the client at another API host.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(cfg *genai.ClientConfig) { cfg.HTTPOptions.BaseURL = url }
}

// NewGeminiProvider creates the genai client for model.
func NewGeminiProvider(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("generation.NewGeminiProvider: API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("generation.NewGeminiProvider: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string { return p.model }

func (p *GeminiProvider) config(system string) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](temperature),
	}
}

// Complete returns the whole response text in one call.
func (p *GeminiProvider) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(user), p.config(system))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return resp.Text(), nil
}

// Stream relays response text as it arrives.
func (p *GeminiProvider) Stream(ctx context.Context, system, user string) (<-chan string, <-chan error) {
	contentChan := make(chan string, contentBuffer)
	errorChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errorChan)

		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, genai.Text(user), p.config(system)) {
			if err != nil {
				errorChan <- fmt.Errorf("gemini: %w", err)
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case contentChan <- text:
			case <-ctx.Done():
				errorChan <- ctx.Err()
				return
			}
		}
	}()

	return contentChan, errorChan
}
