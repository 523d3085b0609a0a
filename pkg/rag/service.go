// Package rag wires extraction, chunking, indexing, retrieval and synthesis
// into the ingestion and query operations the application exposes.
package rag

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/counselops/lexrag/pkg/answer"
	"github.com/counselops/lexrag/pkg/chunker"
	"github.com/counselops/lexrag/pkg/extract"
	"github.com/counselops/lexrag/pkg/planner"
	"github.com/counselops/lexrag/pkg/provider"
	"github.com/counselops/lexrag/pkg/record"
	"github.com/counselops/lexrag/pkg/vectorstore"
)

// NoContextMessage is returned when retrieval finds nothing relevant.
const NoContextMessage = "No relevant information was found in the available documents for this question."

// URLExtractor fetches and extracts web content. extract.Fetcher implements it.
type URLExtractor interface {
	FromURL(ctx context.Context, url string) (text string, locator string, err error)
}

// Service orchestrates the ingestion and query pipelines.
type Service struct {
	records   *record.Store
	vectors   *vectorstore.Store
	splitter  *chunker.Splitter
	planner   *planner.Planner
	synth     *answer.Synthesizer
	completer provider.Completer
	uploads   extract.ContentStore
	fetcher   URLExtractor
	log       *zap.Logger
}

// Config collects the Service's collaborators.
type Config struct {
	Records   *record.Store
	Vectors   *vectorstore.Store
	Splitter  *chunker.Splitter
	Planner   *planner.Planner
	Synth     *answer.Synthesizer
	Completer provider.Completer
	Uploads   extract.ContentStore
	Fetcher   URLExtractor
	Logger    *zap.Logger
}

// New creates a Service.
func New(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		records:   cfg.Records,
		vectors:   cfg.Vectors,
		splitter:  cfg.Splitter,
		planner:   cfg.Planner,
		synth:     cfg.Synth,
		completer: cfg.Completer,
		uploads:   cfg.Uploads,
		fetcher:   cfg.Fetcher,
		log:       log,
	}
}

// IngestFileInput describes one uploaded document.
type IngestFileInput struct {
	KnowledgeBaseID string // empty means the global partition
	ConversationID  string
	Title           string
	Description     string
	Filename        string
	FileType        string
	Data            []byte
}

// IngestURLInput describes one web page to ingest.
type IngestURLInput struct {
	KnowledgeBaseID string
	ConversationID  string
	Title           string
	URL             string
}

// IngestFile extracts, chunks and indexes an uploaded document. The document
// record moves pending -> processing -> indexed, or to failed on any error;
// a failed ingestion publishes nothing to the index.
func (s *Service) IngestFile(ctx context.Context, in IngestFileInput) (*record.Document, error) {
	partition, err := s.resolvePartition(ctx, in.KnowledgeBaseID)
	if err != nil {
		return nil, err
	}

	locator, err := extract.StoreUpload(s.uploads, in.Data, in.Filename)
	if err != nil {
		return nil, err
	}

	doc := &record.Document{
		ID:               uuid.New().String(),
		Title:            in.Title,
		Description:      in.Description,
		FilePath:         locator,
		FileType:         in.FileType,
		OriginalFilename: in.Filename,
		Status:           record.StatusPending,
		KnowledgeBaseID:  in.KnowledgeBaseID,
		ConversationID:   in.ConversationID,
	}
	if err := s.records.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	text, err := extract.FromFile(in.Data, in.FileType)
	if err != nil {
		return doc, s.failDocument(ctx, doc, err)
	}
	return doc, s.indexDocument(ctx, doc, partition, text)
}

// IngestURL fetches a web page, extracts its text and indexes it like an
// uploaded document.
func (s *Service) IngestURL(ctx context.Context, in IngestURLInput) (*record.Document, error) {
	partition, err := s.resolvePartition(ctx, in.KnowledgeBaseID)
	if err != nil {
		return nil, err
	}

	text, locator, err := s.fetcher.FromURL(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	title := in.Title
	if title == "" {
		title = in.URL
	}
	doc := &record.Document{
		ID:              uuid.New().String(),
		Title:           title,
		FilePath:        locator,
		FileType:        "url",
		SourceURL:       in.URL,
		Status:          record.StatusPending,
		KnowledgeBaseID: in.KnowledgeBaseID,
		ConversationID:  in.ConversationID,
	}
	if err := s.records.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, s.indexDocument(ctx, doc, partition, text)
}

// indexDocument runs text through chunking, records the chunks and appends
// them to the partition index.
func (s *Service) indexDocument(ctx context.Context, doc *record.Document, partition, text string) error {
	if err := s.records.UpdateDocumentStatus(ctx, doc.ID, record.StatusProcessing); err != nil {
		return err
	}
	doc.Status = record.StatusProcessing

	pieces := s.splitter.Split(text)
	if len(pieces) == 0 {
		return s.failDocument(ctx, doc, errors.New("no text content to index"))
	}

	chunks := make([]record.Chunk, len(pieces))
	items := make([]vectorstore.BuildItem, len(pieces))
	for i, piece := range pieces {
		chunks[i] = record.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Ordinal:    i,
			Content:    piece,
		}
		items[i] = vectorstore.BuildItem{
			Text: piece,
			Meta: vectorstore.ChunkMeta{
				ChunkID:       chunks[i].ID,
				DocumentID:    doc.ID,
				DocumentTitle: doc.Title,
				Ordinal:       i,
			},
		}
	}
	if err := s.records.CreateChunks(ctx, chunks); err != nil {
		return s.failDocument(ctx, doc, err)
	}

	if _, err := s.vectors.AppendAndRebuild(ctx, partition, items); err != nil {
		return s.failDocument(ctx, doc, err)
	}

	if err := s.records.UpdateDocumentStatus(ctx, doc.ID, record.StatusIndexed); err != nil {
		return err
	}
	doc.Status = record.StatusIndexed

	s.log.Info("document indexed",
		zap.String("document_id", doc.ID),
		zap.String("partition", partition),
		zap.Int("chunks", len(pieces)))
	return nil
}

// failDocument marks the document failed and returns the original error.
func (s *Service) failDocument(ctx context.Context, doc *record.Document, cause error) error {
	if err := s.records.UpdateDocumentStatus(ctx, doc.ID, record.StatusFailed); err != nil {
		s.log.Error("failed to mark document as failed",
			zap.String("document_id", doc.ID), zap.Error(err))
	}
	doc.Status = record.StatusFailed
	s.log.Warn("document ingestion failed",
		zap.String("document_id", doc.ID), zap.Error(cause))
	return cause
}

// resolvePartition maps a knowledge base ID to its partition key; an empty ID
// means the global partition.
func (s *Service) resolvePartition(ctx context.Context, kbID string) (string, error) {
	if kbID == "" {
		return planner.DefaultGlobalPartition, nil
	}
	kb, err := s.records.GetKnowledgeBase(ctx, kbID)
	if err != nil {
		return "", err
	}
	return kb.Partition, nil
}

// QueryInput describes one question against the indexed material.
type QueryInput struct {
	Question        string
	ConversationID  string
	KnowledgeBaseID string // explicit knowledge base, optional
	TopK            int
	Temperature     float32
	IncludeGlobal   bool
}

// QueryOutput is the result of one query. When NoContext is set, no answer
// was generated and Message explains why.
type QueryOutput struct {
	QueryID   string
	Answer    *answer.Answer
	NoContext bool
	Message   string
}

// Query plans and runs retrieval, then synthesizes a grounded answer. When
// retrieval produces nothing, the generative provider is not called and the
// output carries NoContext. Query history is recorded either way.
func (s *Service) Query(ctx context.Context, in QueryInput) (*QueryOutput, error) {
	start := time.Now()

	planInput := planner.PlanInput{
		ConversationID: in.ConversationID,
		TopK:           in.TopK,
		IncludeGlobal:  in.IncludeGlobal,
	}
	if in.KnowledgeBaseID != "" {
		kb, err := s.records.GetKnowledgeBase(ctx, in.KnowledgeBaseID)
		if err != nil {
			return nil, err
		}
		planInput.ExplicitPartition = kb.Partition
		planInput.ExplicitLabel = kb.Name
	}

	contexts, err := s.planner.Plan(ctx, planInput)
	if err != nil {
		return nil, err
	}
	results, err := s.planner.Execute(ctx, contexts, in.Question, in.TopK)
	if err != nil {
		return nil, err
	}
	retrievalElapsed := time.Since(start)

	queryRec := &record.QueryRecord{
		ID:              uuid.New().String(),
		QueryText:       in.Question,
		KnowledgeBaseID: in.KnowledgeBaseID,
		ConversationID:  in.ConversationID,
	}
	if err := s.records.RecordQuery(ctx, queryRec); err != nil {
		return nil, err
	}

	if len(results) == 0 {
		if err := s.records.SetQueryResponse(ctx, queryRec.ID, NoContextMessage); err != nil {
			return nil, err
		}
		return &QueryOutput{QueryID: queryRec.ID, NoContext: true, Message: NoContextMessage}, nil
	}

	passages, err := s.recoverPassages(ctx, results)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		if err := s.records.SetQueryResponse(ctx, queryRec.ID, NoContextMessage); err != nil {
			return nil, err
		}
		return &QueryOutput{QueryID: queryRec.ID, NoContext: true, Message: NoContextMessage}, nil
	}

	ans, err := s.synth.Synthesize(ctx, in.Question, passages, in.Temperature, retrievalElapsed)
	if err != nil {
		return nil, err
	}
	if err := s.records.SetQueryResponse(ctx, queryRec.ID, ans.Text); err != nil {
		return nil, err
	}
	return &QueryOutput{QueryID: queryRec.ID, Answer: ans}, nil
}

// recoverPassages joins retrieval hits back to their chunk text. Hits whose
// chunk row has disappeared are dropped with a warning.
func (s *Service) recoverPassages(ctx context.Context, results []vectorstore.Result) ([]answer.Passage, error) {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}
	texts, err := s.records.ChunkTextsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	passages := make([]answer.Passage, 0, len(results))
	for _, r := range results {
		text, ok := texts[r.ChunkID]
		if !ok {
			s.log.Warn("retrieved chunk has no stored text, dropping",
				zap.String("chunk_id", r.ChunkID))
			continue
		}
		passages = append(passages, answer.Passage{Result: r, Text: text})
	}
	return passages, nil
}

// CreateKnowledgeBase creates a named document collection with its own index
// partition.
func (s *Service) CreateKnowledgeBase(ctx context.Context, name, description string) (*record.KnowledgeBase, error) {
	return s.records.CreateKnowledgeBase(ctx, name, description)
}

// ListKnowledgeBases lists all knowledge bases with their document counts.
func (s *Service) ListKnowledgeBases(ctx context.Context) ([]record.KnowledgeBaseInfo, error) {
	return s.records.ListKnowledgeBases(ctx)
}
