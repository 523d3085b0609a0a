package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counselops/lexrag/pkg/record"
	"github.com/counselops/lexrag/pkg/vectorstore"
)

type fakePartitions []record.PartitionRef

func (f fakePartitions) IndexedConversationPartitions(_ context.Context, _ string) ([]record.PartitionRef, error) {
	return f, nil
}

type fixedEmbedder struct {
	vecs map[string][]float32
}

func (f *fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vecs[text]; ok {
		return v, nil
	}
	return []float32{0.5, 0.5, 0, 0}, nil
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fixedEmbedder) Dim() int { return 4 }

func budgetSum(contexts []SearchContext) int {
	sum := 0
	for _, sc := range contexts {
		sum += sc.Budget
	}
	return sum
}

func TestPlanExplicitOnly(t *testing.T) {
	p := New(fakePartitions{}, nil, &fixedEmbedder{})

	contexts, err := p.Plan(context.Background(), PlanInput{
		ExplicitPartition: "kb-contracts",
		ExplicitLabel:     "Contracts",
		TopK:              10,
	})
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, "kb-contracts", contexts[0].Partition)
	assert.Equal(t, "Contracts", contexts[0].Label)
	assert.Equal(t, 5, contexts[0].Budget)
}

func TestPlanConversationPartitions(t *testing.T) {
	parts := fakePartitions{
		{Partition: "kb-a", Label: "Lease Agreements"},
		{Partition: "kb-b", Label: "Employment"},
	}
	p := New(parts, nil, &fixedEmbedder{})

	contexts, err := p.Plan(context.Background(), PlanInput{
		ConversationID: "conv-1",
		TopK:           9,
		IncludeGlobal:  true,
	})
	require.NoError(t, err)
	// Two conversation partitions plus the global remainder.
	require.Len(t, contexts, 3)
	assert.Equal(t, 3, contexts[0].Budget) // 9 / (2 conversation + 1 global)
	assert.Equal(t, 3, contexts[1].Budget)
	assert.Equal(t, DefaultGlobalPartition, contexts[2].Partition)
	assert.Equal(t, 3, contexts[2].Budget)
	assert.LessOrEqual(t, budgetSum(contexts), 9)
}

func TestPlanGlobalFallback(t *testing.T) {
	p := New(fakePartitions{}, nil, &fixedEmbedder{})

	contexts, err := p.Plan(context.Background(), PlanInput{
		TopK:          7,
		IncludeGlobal: true,
	})
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, DefaultGlobalPartition, contexts[0].Partition)
	assert.Equal(t, DefaultGlobalLabel, contexts[0].Label)
	assert.Equal(t, 7, contexts[0].Budget)
}

func TestPlanNoGlobalWhenExhausted(t *testing.T) {
	parts := fakePartitions{
		{Partition: "kb-a", Label: "A"},
		{Partition: "kb-b", Label: "B"},
	}
	p := New(parts, nil, &fixedEmbedder{})

	contexts, err := p.Plan(context.Background(), PlanInput{
		ExplicitPartition: "kb-x",
		ConversationID:    "conv-1",
		TopK:              4,
		IncludeGlobal:     true,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, budgetSum(contexts), 4)
	for _, sc := range contexts {
		assert.NotEqual(t, DefaultGlobalPartition, sc.Partition,
			"global must not be added once the budget is spent")
	}
}

func TestPlanBudgetNeverExceedsTopK(t *testing.T) {
	cases := []struct {
		name string
		in   PlanInput
		n    int
	}{
		{"tiny top_k many partitions", PlanInput{ExplicitPartition: "x", ConversationID: "c", TopK: 3, IncludeGlobal: true}, 4},
		{"top_k one", PlanInput{ConversationID: "c", TopK: 1, IncludeGlobal: true}, 4},
		{"default top_k", PlanInput{ConversationID: "c", IncludeGlobal: true}, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parts := make(fakePartitions, tc.n)
			for i := range parts {
				parts[i] = record.PartitionRef{Partition: string(rune('a' + i)), Label: "P"}
			}
			p := New(parts, nil, &fixedEmbedder{})

			contexts, err := p.Plan(context.Background(), tc.in)
			require.NoError(t, err)

			topK := tc.in.TopK
			if topK <= 0 {
				topK = DefaultTopK
			}
			assert.LessOrEqual(t, budgetSum(contexts), topK)
		})
	}
}

func TestPlanDeduplicatesExplicit(t *testing.T) {
	parts := fakePartitions{
		{Partition: "kb-a", Label: "A"},
	}
	p := New(parts, nil, &fixedEmbedder{})

	contexts, err := p.Plan(context.Background(), PlanInput{
		ExplicitPartition: "kb-a",
		ExplicitLabel:     "A",
		ConversationID:    "conv-1",
		TopK:              10,
	})
	require.NoError(t, err)
	require.Len(t, contexts, 1)
}

func TestExecuteMergesAndTruncates(t *testing.T) {
	ctx := context.Background()
	emb := &fixedEmbedder{vecs: map[string][]float32{
		"best":      {1, 0, 0, 0},
		"good":      {0.9, 0.1, 0, 0},
		"weak":      {0.1, 0.9, 0, 0},
		"the query": {1, 0, 0, 0},
	}}
	vectors := vectorstore.New(vectorstore.NewMemoryBlobStore(), emb, nil)

	_, err := vectors.Build(ctx, "kb-a", []vectorstore.BuildItem{
		{Text: "good", Meta: vectorstore.ChunkMeta{ChunkID: "c-good", DocumentTitle: "Doc A"}},
		{Text: "weak", Meta: vectorstore.ChunkMeta{ChunkID: "c-weak", DocumentTitle: "Doc A"}},
	})
	require.NoError(t, err)
	_, err = vectors.Build(ctx, "kb-b", []vectorstore.BuildItem{
		{Text: "best", Meta: vectorstore.ChunkMeta{ChunkID: "c-best", DocumentTitle: "Doc B"}},
	})
	require.NoError(t, err)

	p := New(fakePartitions{}, vectors, emb)
	contexts := []SearchContext{
		{Partition: "kb-a", Label: "Label A", Budget: 2},
		{Partition: "kb-b", Label: "Label B", Budget: 2},
		{Partition: "kb-empty", Label: "Empty", Budget: 2},
	}

	results, err := p.Execute(ctx, contexts, "the query", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c-best", results[0].ChunkID)
	assert.Equal(t, "Label B", results[0].Partition)
	assert.Equal(t, "c-good", results[1].ChunkID)
	assert.Equal(t, "Label A", results[1].Partition)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestExecuteNoContexts(t *testing.T) {
	p := New(fakePartitions{}, nil, &fixedEmbedder{})

	results, err := p.Execute(context.Background(), nil, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
