// Package provider defines the generative capabilities the retrieval core
// consumes as opaque collaborators: producing an embedding vector from text
// and producing natural-language text from a prompt.
package provider

import (
	"context"
	"errors"
)

// ErrProvider is returned when an embedding or completion call fails.
var ErrProvider = errors.New("provider call failed")

// ErrEmptyText is returned when an empty text string is provided.
var ErrEmptyText = errors.New("empty text provided")

// Embedder converts text into a fixed-dimension vector. The dimension must be
// consistent for the lifetime of any partition built with it.
type Embedder interface {
	// Embed converts a single text string into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts in one call. Implementations may
	// fan out to Embed; callers use it as a performance seam, not a
	// semantic change.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dim returns the dimension of vectors produced by this embedder.
	Dim() int
}

// Completer produces natural-language text from a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error)
}

// BaseEmbedder provides a default EmbedBatch built on a single-text embed
// function. Embedders can embed this to get batch support for free.
type BaseEmbedder struct {
	EmbedFn func(ctx context.Context, text string) ([]float32, error)
}

// EmbedBatch embeds each text concurrently, preserving input order.
func (b *BaseEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	type result struct {
		idx int
		vec []float32
		err error
	}

	ch := make(chan result, len(texts))
	for i, text := range texts {
		go func(idx int, t string) {
			vec, err := b.EmbedFn(ctx, t)
			ch <- result{idx: idx, vec: vec, err: err}
		}(i, text)
	}

	for range texts {
		r := <-ch
		results[r.idx] = r.vec
		errs[r.idx] = r.err
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
