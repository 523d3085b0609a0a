// Package planner decides which index partitions a query touches, allocates
// per-partition result budgets, runs the searches and merges the hits.
package planner

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/counselops/lexrag/pkg/provider"
	"github.com/counselops/lexrag/pkg/record"
	"github.com/counselops/lexrag/pkg/vectorstore"
)

const (
	// DefaultGlobalPartition is the shared partition holding general
	// reference material available to every conversation.
	DefaultGlobalPartition = "global"

	// DefaultGlobalLabel names the global partition in citations.
	DefaultGlobalLabel = "Global Knowledge Base"

	// DefaultTopK is the merged result cap when the caller does not set one.
	DefaultTopK = 5

	minBudget = 2
)

// SearchContext is one planned partition search: which partition, how it is
// labeled in results, and how many hits it may contribute.
type SearchContext struct {
	Partition string
	Label     string
	Budget    int
}

// PlanInput describes one query to plan for.
type PlanInput struct {
	// ExplicitPartition, when set, is searched with priority budget.
	ExplicitPartition string
	ExplicitLabel     string

	// ConversationID scopes partition discovery to documents attached to
	// this conversation. Empty means no conversation partitions.
	ConversationID string

	TopK          int
	IncludeGlobal bool
}

// PartitionSource discovers a conversation's indexed partitions. The record
// layer implements it.
type PartitionSource interface {
	IndexedConversationPartitions(ctx context.Context, conversationID string) ([]record.PartitionRef, error)
}

// Planner plans and executes multi-partition searches.
type Planner struct {
	records  PartitionSource
	vectors  *vectorstore.Store
	embedder provider.Embedder
	log      *zap.Logger

	globalPartition string
	globalLabel     string
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Planner) { p.log = log }
}

// WithGlobalPartition overrides the global partition key and label.
func WithGlobalPartition(partition, label string) Option {
	return func(p *Planner) {
		p.globalPartition = partition
		p.globalLabel = label
	}
}

// New creates a Planner over the record store, vector store and embedder.
func New(records PartitionSource, vectors *vectorstore.Store, embedder provider.Embedder, opts ...Option) *Planner {
	p := &Planner{
		records:         records,
		vectors:         vectors,
		embedder:        embedder,
		log:             zap.NewNop(),
		globalPartition: DefaultGlobalPartition,
		globalLabel:     DefaultGlobalLabel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan allocates search contexts for the query. The sum of allocated budgets
// never exceeds TopK: each allocation is clamped to what remains, and the
// clamp wins over the per-context minimum when they conflict.
func (p *Planner) Plan(ctx context.Context, in PlanInput) ([]SearchContext, error) {
	topK := in.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	var contexts []SearchContext
	remaining := topK

	add := func(partition, label string, budget int) {
		if remaining <= 0 {
			return
		}
		if budget > remaining {
			budget = remaining
		}
		contexts = append(contexts, SearchContext{Partition: partition, Label: label, Budget: budget})
		remaining -= budget
	}

	if in.ExplicitPartition != "" {
		label := in.ExplicitLabel
		if label == "" {
			label = in.ExplicitPartition
		}
		add(in.ExplicitPartition, label, max(minBudget, topK/2))
	}

	var convPartitions []record.PartitionRef
	if in.ConversationID != "" {
		var err error
		convPartitions, err = p.records.IndexedConversationPartitions(ctx, in.ConversationID)
		if err != nil {
			return nil, err
		}
	}

	seen := map[string]bool{in.ExplicitPartition: true}
	slots := len(convPartitions)
	if in.IncludeGlobal {
		slots++
	}
	for _, ref := range convPartitions {
		if seen[ref.Partition] {
			continue
		}
		seen[ref.Partition] = true
		add(ref.Partition, ref.Label, max(minBudget, topK/slots))
	}

	if in.IncludeGlobal && !seen[p.globalPartition] {
		if len(contexts) == 0 {
			add(p.globalPartition, p.globalLabel, topK)
		} else if remaining > 0 {
			add(p.globalPartition, p.globalLabel, remaining)
		}
	}

	p.log.Debug("planned search contexts",
		zap.String("conversation_id", in.ConversationID),
		zap.Int("top_k", topK),
		zap.Int("contexts", len(contexts)))
	return contexts, nil
}

// Execute embeds the query once, searches every planned context concurrently
// and merges the hits by descending cosine similarity, truncated to topK.
// A context whose partition has no index yet is skipped. An empty return
// means no partition held relevant material; the caller must not invoke the
// generative provider for it.
func (p *Planner) Execute(ctx context.Context, contexts []SearchContext, queryText string, topK int) ([]vectorstore.Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if len(contexts) == 0 {
		return nil, nil
	}

	query, err := p.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		merged []vectorstore.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, sc := range contexts {
		sc := sc
		g.Go(func() error {
			results, err := p.vectors.SearchPartition(gctx, sc.Partition, query, sc.Budget)
			if err != nil {
				if errors.Is(err, vectorstore.ErrNoIndex) {
					p.log.Debug("partition has no index, skipping",
						zap.String("partition", sc.Partition))
					return nil
				}
				return err
			}
			for i := range results {
				results[i].Partition = sc.Label
			}
			mu.Lock()
			merged = append(merged, results...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if topK < len(merged) {
		merged = merged[:topK]
	}
	return merged, nil
}
