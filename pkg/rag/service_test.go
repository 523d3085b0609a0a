package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counselops/lexrag/pkg/answer"
	"github.com/counselops/lexrag/pkg/chunker"
	"github.com/counselops/lexrag/pkg/extract"
	"github.com/counselops/lexrag/pkg/planner"
	"github.com/counselops/lexrag/pkg/record"
	"github.com/counselops/lexrag/pkg/vectorstore"
)

type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()
	vec := make([]float32, 4)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000)/1000 + 0.001
	}
	return vec, nil
}

func (e hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (hashEmbedder) Dim() int { return 4 }

type recordingCompleter struct {
	calls []string
	reply string
}

func (c *recordingCompleter) Complete(_ context.Context, _, userPrompt string, _ float32) (string, error) {
	c.calls = append(c.calls, userPrompt)
	return c.reply, nil
}

type fakeFetcher struct {
	text    string
	locator string
	err     error
}

func (f *fakeFetcher) FromURL(_ context.Context, _ string) (string, string, error) {
	return f.text, f.locator, f.err
}

type testEnv struct {
	svc       *Service
	records   *record.Store
	vectors   *vectorstore.Store
	completer *recordingCompleter
	fetcher   *fakeFetcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	records, err := record.Open(ctx, filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { records.Close() })

	emb := hashEmbedder{}
	vectors := vectorstore.New(vectorstore.NewMemoryBlobStore(), emb, records)
	splitter, err := chunker.New(200, 40)
	require.NoError(t, err)
	completer := &recordingCompleter{reply: "Grounded answer.\n\n**Sources:**\nTest"}
	uploads, err := extract.NewDirContentStore(t.TempDir())
	require.NoError(t, err)
	fetcher := &fakeFetcher{text: "Fetched page text about zoning variances and municipal appeals.", locator: "/tmp/web_abc.txt"}

	svc := New(Config{
		Records:   records,
		Vectors:   vectors,
		Splitter:  splitter,
		Planner:   planner.New(records, vectors, emb),
		Synth:     answer.New(completer, nil),
		Completer: completer,
		Uploads:   uploads,
		Fetcher:   fetcher,
	})
	return &testEnv{svc: svc, records: records, vectors: vectors, completer: completer, fetcher: fetcher}
}

const leaseText = `The tenant shall pay rent on the first day of each month. Late payments incur a fee of fifty dollars after a five day grace period.

The landlord must provide twenty four hours notice before entering the premises, except in emergencies involving immediate danger to persons or property.`

func TestIngestFileAndQuery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	kb, err := env.svc.CreateKnowledgeBase(ctx, "Leases", "residential lease agreements")
	require.NoError(t, err)

	doc, err := env.svc.IngestFile(ctx, IngestFileInput{
		KnowledgeBaseID: kb.ID,
		Title:           "Standard Lease",
		Filename:        "lease.txt",
		FileType:        "txt",
		Data:            []byte(leaseText),
	})
	require.NoError(t, err)
	assert.Equal(t, record.StatusIndexed, doc.Status)

	stored, err := env.records.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusIndexed, stored.Status)

	chunks, err := env.records.ChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	idx, err := env.vectors.Load(ctx, kb.Partition)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, len(chunks), idx.Version.Count)

	out, err := env.svc.Query(ctx, QueryInput{
		Question:        "When is rent due?",
		KnowledgeBaseID: kb.ID,
		TopK:            3,
	})
	require.NoError(t, err)
	assert.False(t, out.NoContext)
	require.NotNil(t, out.Answer)
	assert.Equal(t, env.completer.reply, out.Answer.Text)
	require.Len(t, env.completer.calls, 1)
	assert.Contains(t, env.completer.calls[0], "When is rent due?")
	assert.Contains(t, env.completer.calls[0], "Standard Lease")
	assert.NotEmpty(t, out.Answer.Sources)

	history, err := env.records.QueriesByKnowledgeBase(ctx, kb.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, env.completer.reply, history[0].ResponseText)
}

func TestIngestFileUnsupportedType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc, err := env.svc.IngestFile(ctx, IngestFileInput{
		Title:    "Spreadsheet",
		Filename: "rates.xlsx",
		FileType: "xlsx",
		Data:     []byte("binary"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, extract.ErrUnsupportedFormat))
	require.NotNil(t, doc)
	assert.Equal(t, record.StatusFailed, doc.Status)

	// Nothing was published.
	idx, err := env.vectors.Load(ctx, planner.DefaultGlobalPartition)
	require.NoError(t, err)
	assert.Nil(t, idx)
}

func TestIngestURL(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc, err := env.svc.IngestURL(ctx, IngestURLInput{
		URL: "https://example.org/ordinances",
	})
	require.NoError(t, err)
	assert.Equal(t, record.StatusIndexed, doc.Status)
	assert.Equal(t, "https://example.org/ordinances", doc.Title)
	assert.Equal(t, "https://example.org/ordinances", doc.SourceURL)
	assert.Equal(t, env.fetcher.locator, doc.FilePath)
}

func TestQueryNoContext(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := env.svc.Query(ctx, QueryInput{
		Question:      "Anything at all?",
		TopK:          5,
		IncludeGlobal: true,
	})
	require.NoError(t, err)
	assert.True(t, out.NoContext)
	assert.Equal(t, NoContextMessage, out.Message)
	assert.Nil(t, out.Answer)
	assert.Empty(t, env.completer.calls, "generative provider must not run without context")
	assert.NotEmpty(t, out.QueryID)
}

func TestSummarizeCase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.records.CreateConversation(ctx, "Deposit dispute")
	require.NoError(t, err)
	_, err = env.records.AddMessage(ctx, conv.ID, "My landlord kept my deposit without explanation.", true)
	require.NoError(t, err)
	_, err = env.records.AddMessage(ctx, conv.ID, "Did you receive an itemized statement of deductions?", false)
	require.NoError(t, err)

	_, err = env.svc.IngestFile(ctx, IngestFileInput{
		ConversationID: conv.ID,
		Title:          "Lease",
		Filename:       "lease.txt",
		FileType:       "txt",
		Data:           []byte(leaseText),
	})
	require.NoError(t, err)

	env.completer.reply = "1. Key legal issues: wrongful deposit retention."
	analysis, err := env.svc.SummarizeCase(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, env.completer.reply, analysis)

	require.Len(t, env.completer.calls, 1)
	assert.Contains(t, env.completer.calls[0], "Client: My landlord kept my deposit")
	assert.Contains(t, env.completer.calls[0], "RELEVANT DOCUMENTS:")
	assert.Contains(t, env.completer.calls[0], "Lease")

	c, err := env.records.GetCaseByConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, env.completer.reply, c.LegalAnalysis)
}

func TestSummarizeCaseEmptyConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.records.CreateConversation(ctx, "Empty")
	require.NoError(t, err)

	msg, err := env.svc.SummarizeCase(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, strings.Contains(msg, "No messages"))
	assert.Empty(t, env.completer.calls)
}
