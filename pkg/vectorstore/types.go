package vectorstore

import "context"

// ChunkMeta is the metadata entry paired 1:1, by array position, with one
// stored vector.
type ChunkMeta struct {
	ChunkID       string `json:"chunk_id"`
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
	Ordinal       int    `json:"ordinal"`
}

// BuildItem is one chunk text with its metadata, as supplied to Build.
type BuildItem struct {
	Text string
	Meta ChunkMeta
}

// IndexVersion identifies one immutable snapshot of a partition's vectors and
// metadata. Version IDs are monotonic within a partition.
type IndexVersion struct {
	Partition string `json:"partition"`
	VersionID int64  `json:"version_id"`
	Count     int    `json:"count"`
}

// LoadedIndex is a fully materialized index version. Vectors and Meta are
// always the same length.
type LoadedIndex struct {
	Version IndexVersion
	Vectors [][]float32
	Meta    []ChunkMeta
}

// Result is one search hit. Score is cosine similarity against the query
// vector; higher means more similar.
type Result struct {
	ChunkMeta
	Score     float64 `json:"score"`
	Partition string  `json:"partition"`
}

// TextSource recovers chunk text by ID during a rebuild. The record layer
// implements it.
type TextSource interface {
	ChunkTextsByID(ctx context.Context, ids []string) (map[string]string, error)
}

// pointer is the persisted LatestPointer record. It is written only after
// both blobs it references are fully written.
type pointer struct {
	VectorKey   string `json:"vector_key"`
	MetadataKey string `json:"metadata_key"`
	VersionID   int64  `json:"version_id"`
	Count       int    `json:"count"`
}
