// Package answer assembles retrieved chunks into a prompt context and asks
// the generative provider for a grounded, cited answer.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/counselops/lexrag/pkg/provider"
	"github.com/counselops/lexrag/pkg/vectorstore"
)

const systemPrompt = `You are a legal research assistant. Answer the question using ONLY the context provided below.

Rules:
- Ground every statement in the context. Do not use outside knowledge.
- If the context does not contain enough information to answer, say so explicitly instead of guessing.
- End your answer with a "**Sources:**" section listing each unique "Title (Source: Label)" pair you actually relied on, one per line.`

// Passage is one retrieval hit with its chunk text recovered. The index
// stores metadata only; the caller joins text back in from the record layer.
type Passage struct {
	vectorstore.Result
	Text string
}

// Source identifies one chunk the answer drew on.
type Source struct {
	DocumentTitle  string  `json:"document_title"`
	DocumentID     string  `json:"document_id"`
	Ordinal        int     `json:"ordinal"`
	Score          float64 `json:"score"`
	PartitionLabel string  `json:"partition_label"`
}

// Timing records where a query's wall time went.
type Timing struct {
	RetrievalMS  int64 `json:"retrieval_ms"`
	GenerationMS int64 `json:"generation_ms"`
	TotalMS      int64 `json:"total_ms"`
}

// Answer is a synthesized response with its supporting sources and timing.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
	Timing  Timing   `json:"timing"`
}

// Synthesizer turns retrieval results into an answer via a Completer.
type Synthesizer struct {
	completer provider.Completer
	log       *zap.Logger
}

// New creates a Synthesizer.
func New(completer provider.Completer, log *zap.Logger) *Synthesizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synthesizer{completer: completer, log: log}
}

// Synthesize sends the question with the retrieved context to the generative
// provider. retrievalElapsed is how long retrieval took; generation and total
// timings are measured here. The caller is responsible for not calling this
// with an empty result set.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, passages []Passage, temperature float32, retrievalElapsed time.Duration) (*Answer, error) {
	userPrompt := fmt.Sprintf("Context:\n\n%s\n\nQuestion: %s", ContextBlock(passages), question)

	genStart := time.Now()
	text, err := s.completer.Complete(ctx, systemPrompt, userPrompt, temperature)
	if err != nil {
		return nil, fmt.Errorf("answer synthesis failed: %w", err)
	}
	genElapsed := time.Since(genStart)

	sources := make([]Source, len(passages))
	for i, p := range passages {
		r := p.Result
		sources[i] = Source{
			DocumentTitle:  r.DocumentTitle,
			DocumentID:     r.DocumentID,
			Ordinal:        r.Ordinal,
			Score:          r.Score,
			PartitionLabel: r.Partition,
		}
	}

	s.log.Debug("synthesized answer",
		zap.Int("sources", len(sources)),
		zap.Duration("generation", genElapsed))

	return &Answer{
		Text:    text,
		Sources: sources,
		Timing: Timing{
			RetrievalMS:  retrievalElapsed.Milliseconds(),
			GenerationMS: genElapsed.Milliseconds(),
			TotalMS:      (retrievalElapsed + genElapsed).Milliseconds(),
		},
	}, nil
}

// ContextBlock renders one block per passage, blank-line separated:
//
//	Document: {title} (Source: {label})
//	Chunk {ordinal}:
//	{text}
func ContextBlock(passages []Passage) string {
	blocks := make([]string, len(passages))
	for i, p := range passages {
		blocks[i] = fmt.Sprintf("Document: %s (Source: %s)\nChunk %d:\n%s",
			p.DocumentTitle, p.Partition, p.Ordinal, p.Text)
	}
	return strings.Join(blocks, "\n\n")
}
