package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when OPENAI_MODEL is unset.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider calls the OpenAI chat completions API in JSON-object mode.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider builds a provider for model. Extra request options are
// appended after the API key, so tests can point the client at a fake server
// with option.WithBaseURL.
func NewOpenAIProvider(apiKey, model string, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("generation.NewOpenAIProvider: API key is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIProvider{client: openai.NewClient(all...), model: model}, nil
}

func (p *OpenAIProvider) Name() string { return p.model }

func (p *OpenAIProvider) params(system, user string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(temperature),
	}
}

// Complete returns the whole response text in one call.
func (p *OpenAIProvider) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.params(system, user))
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream relays content deltas as they arrive.
func (p *OpenAIProvider) Stream(ctx context.Context, system, user string) (<-chan string, <-chan error) {
	contentChan := make(chan string, contentBuffer)
	errorChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errorChan)

		stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(system, user))
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case contentChan <- delta:
			case <-ctx.Done():
				errorChan <- ctx.Err()
				return
			}
		}
		if err := stream.Err(); err != nil {
			errorChan <- fmt.Errorf("openai: %w", err)
		}
	}()

	return contentChan, errorChan
}
