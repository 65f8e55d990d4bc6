// Package vector stores knowledge document chunks with their embeddings and
// finds the chunks closest to a query embedding.
package vector

import "context"

// Document is one chunk of a knowledge document.
type Document struct {
	// ID is unique per chunk, typically "<source>#<index>".
	ID string

	// Source names the file the chunk was cut from.
	Source string

	// Content is the chunk text handed to the model as context.
	Content string

	// Hash is a digest of Content, used to skip re-embedding unchanged chunks.
	Hash string

	// Embedding is the vector representation of Content.
	Embedding []float32
}

// QueryResult is a search hit with its similarity score.
type QueryResult struct {
	Document

	// Score is higher for closer documents, in (0, 1].
	Score float32
}

// Driver handles storage and retrieval of document embeddings.
type Driver interface {
	// Add stores documents with their embeddings. A document whose ID is
	// already stored is replaced.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK documents closest to embedding, best first.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves documents by ID. Unknown IDs are left out of the result.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by ID.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}

// DefaultTopK is used when a query asks for zero or fewer results.
const DefaultTopK = 10

// Score converts a distance (lower is closer) into a similarity score.
func Score(distance float64) float32 {
	return float32(1.0 / (1.0 + distance))
}
