// Package vectorstore owns the partitioned, versioned vector index: building
// and rebuilding partition snapshots, loading the latest published version,
// and brute-force similarity search over it.
//
// Writers publish a new immutable IndexVersion (vector blob, then metadata
// blob, then the latest pointer, in that order) so a reader that observes the
// pointer always finds fully written blobs. Writes to one partition are
// serialized by a partition-scoped exclusive lock; reads need no lock beyond
// pointer atomicity.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/counselops/lexrag/internal/vecenc"
	"github.com/counselops/lexrag/pkg/provider"
)

const (
	pointerKey      = "latest"
	vectorKeySuffix = ".vectors"
	metaKeySuffix   = ".meta"

	defaultLockWait = 30 * time.Second
)

// Store manages all partitions of the vector index.
type Store struct {
	blobs    BlobStore
	embedder provider.Embedder
	texts    TextSource
	log      *zap.Logger
	locks    *lockTable
	lockWait time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithLockWait bounds how long a writer waits for a partition lock.
func WithLockWait(wait time.Duration) Option {
	return func(s *Store) { s.lockWait = wait }
}

// New creates a Store over the given blob backend, embedder and chunk text
// source.
func New(blobs BlobStore, embedder provider.Embedder, texts TextSource, opts ...Option) *Store {
	s := &Store{
		blobs:    blobs,
		embedder: embedder,
		texts:    texts,
		log:      zap.NewNop(),
		locks:    newLockTable(),
		lockWait: defaultLockWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build embeds every item and publishes a new IndexVersion for the partition,
// replacing whatever the latest pointer referenced before.
func (s *Store) Build(ctx context.Context, partition string, items []BuildItem) (*IndexVersion, error) {
	release, err := s.locks.acquire(ctx, partition, s.lockWait)
	if err != nil {
		return nil, wrapError("build", err)
	}
	defer release()

	prev, err := s.loadLocked(ctx, partition)
	if err != nil {
		return nil, wrapError("build", err)
	}
	return s.buildLocked(ctx, partition, items, prev)
}

// AppendAndRebuild loads the partition's current index (absent means empty),
// recovers the existing chunk texts, and rebuilds the partition from the old
// set followed by the new items.
//
// This is a full rebuild, not an incremental insert: every append costs
// O(total chunks in partition) embedding and encoding work. At the target
// scale of a few thousand chunks per partition that buys index consistency
// cheaply; past that scale an incremental on-disk structure would be needed.
func (s *Store) AppendAndRebuild(ctx context.Context, partition string, items []BuildItem) (*IndexVersion, error) {
	if len(items) == 0 {
		return nil, wrapError("append_and_rebuild", ErrEmptyInput)
	}

	release, err := s.locks.acquire(ctx, partition, s.lockWait)
	if err != nil {
		return nil, wrapError("append_and_rebuild", err)
	}
	defer release()

	prev, err := s.loadLocked(ctx, partition)
	if err != nil {
		return nil, wrapError("append_and_rebuild", err)
	}

	var combined []BuildItem
	if prev != nil {
		ids := make([]string, len(prev.Meta))
		for i, m := range prev.Meta {
			ids[i] = m.ChunkID
		}
		texts, err := s.texts.ChunkTextsByID(ctx, ids)
		if err != nil {
			return nil, wrapError("append_and_rebuild", fmt.Errorf("failed to recover chunk texts: %w", err))
		}

		combined = make([]BuildItem, 0, len(prev.Meta)+len(items))
		for _, m := range prev.Meta {
			text, ok := texts[m.ChunkID]
			if !ok {
				s.log.Warn("chunk text missing during rebuild, dropping from index",
					zap.String("partition", partition),
					zap.String("chunk_id", m.ChunkID))
				continue
			}
			combined = append(combined, BuildItem{Text: text, Meta: m})
		}
	}
	combined = append(combined, items...)

	return s.buildLocked(ctx, partition, combined, prev)
}

// buildLocked embeds and publishes. The caller holds the partition lock.
func (s *Store) buildLocked(ctx context.Context, partition string, items []BuildItem, prev *LoadedIndex) (*IndexVersion, error) {
	if len(items) == 0 {
		return nil, wrapError("build", ErrEmptyInput)
	}

	start := time.Now()
	vectors := make([][]float32, len(items))
	meta := make([]ChunkMeta, len(items))
	dim := 0
	for i, item := range items {
		// One embedding call per item keeps the contract simple;
		// provider.Embedder.EmbedBatch is the batching seam.
		vec, err := s.embedder.Embed(ctx, item.Text)
		if err != nil {
			return nil, wrapError("build", fmt.Errorf("embedding item %d: %w", i, err))
		}
		if i == 0 {
			dim = len(vec)
		} else if len(vec) != dim {
			return nil, wrapError("build", fmt.Errorf("%w: item %d has dimension %d, want %d",
				ErrDimensionMismatch, i, len(vec), dim))
		}
		vectors[i] = vec
		meta[i] = item.Meta
	}
	s.log.Debug("embedded partition items",
		zap.String("partition", partition),
		zap.Int("count", len(items)),
		zap.Duration("elapsed", time.Since(start)))

	versionID := time.Now().UnixNano()
	if prev != nil && versionID <= prev.Version.VersionID {
		versionID = prev.Version.VersionID + 1
	}

	vectorBlob, err := vecenc.EncodeMatrix(vectors)
	if err != nil {
		return nil, wrapError("build", err)
	}
	metaBlob, err := json.Marshal(meta)
	if err != nil {
		return nil, wrapError("build", fmt.Errorf("failed to marshal metadata: %w", err))
	}

	vectorKey := versionKey(versionID, vectorKeySuffix)
	metaKey := versionKey(versionID, metaKeySuffix)

	// Publish order matters: both blobs must be durable before the
	// pointer names them.
	if err := s.blobs.Put(ctx, partition, vectorKey, vectorBlob); err != nil {
		return nil, wrapError("build", err)
	}
	if err := s.blobs.Put(ctx, partition, metaKey, metaBlob); err != nil {
		return nil, wrapError("build", err)
	}

	ptr := pointer{
		VectorKey:   vectorKey,
		MetadataKey: metaKey,
		VersionID:   versionID,
		Count:       len(items),
	}
	ptrBlob, err := json.Marshal(ptr)
	if err != nil {
		return nil, wrapError("build", err)
	}
	if err := s.blobs.Put(ctx, partition, pointerKey, ptrBlob); err != nil {
		return nil, wrapError("build", err)
	}

	version := &IndexVersion{Partition: partition, VersionID: versionID, Count: len(items)}
	s.log.Info("published index version",
		zap.String("partition", partition),
		zap.Int64("version_id", versionID),
		zap.Int("count", len(items)))
	return version, nil
}

// Load reads the partition's latest index version. An absent pointer, missing
// blob or corrupt payload all yield (nil, nil): an empty partition is a
// normal, recoverable state, not an error.
func (s *Store) Load(ctx context.Context, partition string) (*LoadedIndex, error) {
	return s.loadLocked(ctx, partition)
}

func (s *Store) loadLocked(ctx context.Context, partition string) (*LoadedIndex, error) {
	ptrBlob, err := s.blobs.Get(ctx, partition, pointerKey)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, nil
		}
		s.log.Warn("failed to read index pointer, treating partition as empty",
			zap.String("partition", partition), zap.Error(err))
		return nil, nil
	}

	var ptr pointer
	if err := json.Unmarshal(ptrBlob, &ptr); err != nil {
		s.log.Warn("corrupt index pointer, treating partition as empty",
			zap.String("partition", partition), zap.Error(err))
		return nil, nil
	}

	vectorBlob, err := s.blobs.Get(ctx, partition, ptr.VectorKey)
	if err != nil {
		s.log.Warn("missing vector blob, treating partition as empty",
			zap.String("partition", partition), zap.Int64("version_id", ptr.VersionID), zap.Error(err))
		return nil, nil
	}
	metaBlob, err := s.blobs.Get(ctx, partition, ptr.MetadataKey)
	if err != nil {
		s.log.Warn("missing metadata blob, treating partition as empty",
			zap.String("partition", partition), zap.Int64("version_id", ptr.VersionID), zap.Error(err))
		return nil, nil
	}

	vectors, err := vecenc.DecodeMatrix(vectorBlob)
	if err != nil {
		s.log.Warn("corrupt vector blob, treating partition as empty",
			zap.String("partition", partition), zap.Int64("version_id", ptr.VersionID), zap.Error(err))
		return nil, nil
	}
	var meta []ChunkMeta
	if err := json.Unmarshal(metaBlob, &meta); err != nil {
		s.log.Warn("corrupt metadata blob, treating partition as empty",
			zap.String("partition", partition), zap.Int64("version_id", ptr.VersionID), zap.Error(err))
		return nil, nil
	}

	if len(vectors) != len(meta) || len(meta) != ptr.Count {
		s.log.Warn("vector/metadata misalignment, treating partition as empty",
			zap.String("partition", partition),
			zap.Int("vectors", len(vectors)),
			zap.Int("metadata", len(meta)),
			zap.Int("count", ptr.Count))
		return nil, nil
	}

	return &LoadedIndex{
		Version: IndexVersion{Partition: partition, VersionID: ptr.VersionID, Count: ptr.Count},
		Vectors: vectors,
		Meta:    meta,
	}, nil
}

// Search computes cosine similarity of the query vector against every stored
// vector and returns the k most similar records, highest score first. Brute
// force is deliberate: partitions hold at most a few thousand chunks.
func (s *Store) Search(idx *LoadedIndex, query []float32, k int) ([]Result, error) {
	if idx == nil {
		return nil, wrapError("search", ErrNoIndex)
	}
	if k <= 0 || len(idx.Vectors) == 0 {
		return nil, nil
	}

	results := make([]Result, len(idx.Vectors))
	for i, vec := range idx.Vectors {
		results[i] = Result{
			ChunkMeta: idx.Meta[i],
			Score:     cosineSimilarity(query, vec),
			Partition: idx.Version.Partition,
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// SearchPartition loads the partition's latest index and searches it.
func (s *Store) SearchPartition(ctx context.Context, partition string, query []float32, k int) ([]Result, error) {
	idx, err := s.loadLocked(ctx, partition)
	if err != nil {
		return nil, err
	}
	return s.Search(idx, query, k)
}

// Versions lists the partition's persisted version IDs, oldest first.
func (s *Store) Versions(ctx context.Context, partition string) ([]int64, error) {
	keys, err := s.blobs.List(ctx, partition)
	if err != nil {
		return nil, wrapError("versions", err)
	}

	var out []int64
	for _, k := range keys {
		if !strings.HasSuffix(k, vectorKeySuffix) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(k, vectorKeySuffix), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// PruneVersions deletes superseded versions, keeping the newest keep versions
// and never the one the latest pointer references. Old versions accumulate
// harmlessly otherwise; pruning is an explicit maintenance call.
func (s *Store) PruneVersions(ctx context.Context, partition string, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}

	release, err := s.locks.acquire(ctx, partition, s.lockWait)
	if err != nil {
		return 0, wrapError("prune_versions", err)
	}
	defer release()

	versions, err := s.Versions(ctx, partition)
	if err != nil {
		return 0, err
	}
	if len(versions) <= keep {
		return 0, nil
	}

	var current int64 = -1
	if idx, err := s.loadLocked(ctx, partition); err == nil && idx != nil {
		current = idx.Version.VersionID
	}

	pruned := 0
	for _, id := range versions[:len(versions)-keep] {
		if id == current {
			continue
		}
		if err := s.blobs.Delete(ctx, partition, versionKey(id, vectorKeySuffix)); err != nil {
			return pruned, wrapError("prune_versions", err)
		}
		if err := s.blobs.Delete(ctx, partition, versionKey(id, metaKeySuffix)); err != nil {
			return pruned, wrapError("prune_versions", err)
		}
		pruned++
	}

	if pruned > 0 {
		s.log.Info("pruned index versions",
			zap.String("partition", partition), zap.Int("pruned", pruned))
	}
	return pruned, nil
}

// versionKey formats a blob key so lexical order matches version order.
func versionKey(versionID int64, suffix string) string {
	return fmt.Sprintf("%020d%s", versionID, suffix)
}
