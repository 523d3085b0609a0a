package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counselops/lexrag/pkg/vectorstore"
)

type captureCompleter struct {
	system      string
	user        string
	temperature float32
	reply       string
	err         error
}

func (c *captureCompleter) Complete(_ context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	c.system = systemPrompt
	c.user = userPrompt
	c.temperature = temperature
	return c.reply, c.err
}

func passage(title, label, text string, ordinal int, score float64) Passage {
	return Passage{
		Result: vectorstore.Result{
			ChunkMeta: vectorstore.ChunkMeta{
				ChunkID:       "chunk-" + title,
				DocumentID:    "doc-" + title,
				DocumentTitle: title,
				Ordinal:       ordinal,
			},
			Score:     score,
			Partition: label,
		},
		Text: text,
	}
}

func TestContextBlock(t *testing.T) {
	passages := []Passage{
		passage("Lease Agreement", "Tenant Files", "The lease term is twelve months.", 0, 0.9),
		passage("Employment Contract", "HR Files", "Notice period is thirty days.", 3, 0.8),
	}

	got := ContextBlock(passages)
	want := "Document: Lease Agreement (Source: Tenant Files)\nChunk 0:\nThe lease term is twelve months.\n\n" +
		"Document: Employment Contract (Source: HR Files)\nChunk 3:\nNotice period is thirty days."
	assert.Equal(t, want, got)
}

func TestSynthesize(t *testing.T) {
	completer := &captureCompleter{reply: "The lease runs twelve months.\n\n**Sources:**\nLease Agreement (Source: Tenant Files)"}
	s := New(completer, nil)

	passages := []Passage{
		passage("Lease Agreement", "Tenant Files", "The lease term is twelve months.", 2, 0.93),
	}
	ans, err := s.Synthesize(context.Background(), "How long is the lease?", passages, 0.3, 40*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, completer.reply, ans.Text)
	assert.Equal(t, float32(0.3), completer.temperature)
	assert.Contains(t, completer.system, "ONLY the context")
	assert.Contains(t, completer.system, "**Sources:**")
	assert.Contains(t, completer.user, "Question: How long is the lease?")
	assert.Contains(t, completer.user, "Document: Lease Agreement (Source: Tenant Files)")

	require.Len(t, ans.Sources, 1)
	src := ans.Sources[0]
	assert.Equal(t, "Lease Agreement", src.DocumentTitle)
	assert.Equal(t, "doc-Lease Agreement", src.DocumentID)
	assert.Equal(t, 2, src.Ordinal)
	assert.Equal(t, 0.93, src.Score)
	assert.Equal(t, "Tenant Files", src.PartitionLabel)

	assert.Equal(t, int64(40), ans.Timing.RetrievalMS)
	assert.GreaterOrEqual(t, ans.Timing.TotalMS, ans.Timing.RetrievalMS+ans.Timing.GenerationMS)
}

func TestSynthesizeCompleterError(t *testing.T) {
	wantErr := errors.New("model unavailable")
	s := New(&captureCompleter{err: wantErr}, nil)

	_, err := s.Synthesize(context.Background(), "q", []Passage{passage("T", "L", "text", 0, 1)}, 0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, wantErr))
	assert.True(t, strings.Contains(err.Error(), "answer synthesis failed"))
}
