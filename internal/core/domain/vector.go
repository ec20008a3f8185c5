package domain

import "time"

// VectorIndexVersion is the on-disk format version of the index document.
const VectorIndexVersion = 1

// DefaultTopK is the number of local matches returned when none is requested.
const DefaultTopK = 10

// IndexDocument is a piece of text offered to the vector index for embedding.
type IndexDocument struct {
	// ID is a stable, content-addressed identifier.
	ID string

	// Text is the content to embed.
	Text string

	// Meta carries provenance such as the source path and chunk number.
	Meta map[string]any
}

// VectorItem is an embedded document owned by the vector index.
// Items are never mutated after insertion.
type VectorItem struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Path returns the "path" meta entry, or "" when absent.
func (v VectorItem) Path() string {
	p, _ := v.Meta["path"].(string)
	return p
}

// VectorDocument is the persisted form of the whole index.
// It is loaded fully before search and rewritten whole on every append.
type VectorDocument struct {
	Version   int          `json:"version"`
	Items     []VectorItem `json:"items"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// VectorMatch is a scored hit from a similarity search.
type VectorMatch struct {
	Item  VectorItem `json:"item"`
	Score float64    `json:"score"`
}

// IndexStats summarises the persisted index.
type IndexStats struct {
	// Exists is false when no index document has been written yet.
	Exists bool `json:"exists"`

	// Items is the number of stored vectors.
	Items int `json:"items"`

	// UpdatedAt is the timestamp of the last save. Zero when the index is empty.
	UpdatedAt time.Time `json:"updatedAt"`
}

// IngestResult counts what an ingestion pass added to the index.
type IngestResult struct {
	Files   int `json:"files"`
	Chunks  int `json:"chunks"`
	Skipped int `json:"skipped"`
}
