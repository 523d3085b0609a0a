package provider

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultEmbeddingModel is the embedding model used when none is configured.
const DefaultEmbeddingModel = "text-embedding-3-small"

// DefaultCompletionModel is the chat model used when none is configured.
const DefaultCompletionModel = "gpt-4o-mini"

// OpenAIEmbedder produces embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	BaseEmbedder
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAIEmbedder creates an embedder for the given model.
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrProvider)
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}

	dim := 1536 // text-embedding-3-small
	if model == "text-embedding-3-large" {
		dim = 3072
	}

	e := &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		dim:    dim,
	}
	e.BaseEmbedder.EmbedFn = e.Embed
	return e, nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding data returned", ErrProvider)
	}

	return resp.Data[0].Embedding, nil
}

// Dim returns the embedding dimension for the configured model.
func (e *OpenAIEmbedder) Dim() int {
	return e.dim
}

// OpenAICompleter produces chat completions via the OpenAI API.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates a completer for the given model.
func NewOpenAICompleter(apiKey, model string) (*OpenAICompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrProvider)
	}
	if model == "" {
		model = DefaultCompletionModel
	}
	return &OpenAICompleter{client: openai.NewClient(apiKey), model: model}, nil
}

// Complete issues a single chat completion with the caller's temperature
// passed through unmodified.
func (c *OpenAICompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion choices returned", ErrProvider)
	}

	return resp.Choices[0].Message.Content, nil
}
