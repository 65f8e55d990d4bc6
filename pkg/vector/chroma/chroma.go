// Package chroma stores knowledge chunks in a Chroma collection over its v2
// REST API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
	"github.com/KimYongKuk/commercial-analysis/pkg/vector"
)

const (
	// DefaultCollectionName holds jobflex knowledge chunks.
	DefaultCollectionName = "jobflex"

	// DefaultMaxRetries is how many times the collection lookup is tried
	// while Chroma is still starting up.
	DefaultMaxRetries = 5

	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultMaxRetryDelay = 5 * time.Second

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
	maxErrorBody    = 4096
)

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName defaults to DefaultCollectionName.
	CollectionName string

	// MaxRetries, RetryDelay and MaxRetryDelay control the backoff used to
	// reach the collection when the driver is created. Zero values take the
	// package defaults. RetryDelay doubles after each failure up to
	// MaxRetryDelay.
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	// HTTPClient defaults to a client with a 60 second timeout.
	HTTPClient *http.Client
}

// Driver implements vector.Driver on a Chroma collection. Chunk text is kept
// in Chroma's documents field, the source and hash in its metadata.
type Driver struct {
	baseURL      string
	collection   string
	collectionID string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewDriver connects to Chroma and gets or creates the configured collection.
func NewDriver(c Config, log *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, errors.New("chroma URL is required")
	}
	if c.CollectionName == "" {
		c.CollectionName = DefaultCollectionName
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}

	d := &Driver{
		baseURL:    strings.TrimRight(c.URL, "/"),
		collection: c.CollectionName,
		httpClient: c.HTTPClient,
		logger:     logger.OrNop(log),
	}

	id, err := d.connect(context.Background(), c)
	if err != nil {
		return nil, err
	}
	d.collectionID = id

	d.logger.Info("connected to chroma",
		"url", d.baseURL,
		"collection", d.collection,
		"collection_id", id,
	)

	return d, nil
}

func (d *Driver) connect(ctx context.Context, c Config) (string, error) {
	delay := c.RetryDelay

	var lastErr error
	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		var coll collection
		lastErr = d.do(ctx, http.MethodPost, collectionsPath,
			createCollectionRequest{Name: d.collection, GetOrCreate: true}, &coll)
		if lastErr == nil {
			return coll.ID, nil
		}

		if attempt == c.MaxRetries {
			break
		}

		d.logger.Warn("chroma not ready, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", lastErr,
		)
		time.Sleep(delay)
		delay = min(delay*2, c.MaxRetryDelay)
	}

	return "", fmt.Errorf("%w: collection %q after %d attempts: %v",
		vector.ErrConnection, d.collection, c.MaxRetries, lastErr)
}

// Add upserts docs into the collection.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	req := addRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
		Documents:  make([]string, len(docs)),
	}
	for i, doc := range docs {
		req.IDs[i] = doc.ID
		req.Embeddings[i] = doc.Embedding
		req.Documents[i] = doc.Content
		req.Metadatas[i] = map[string]any{"source": doc.Source, "hash": doc.Hash}
	}

	if err := d.do(ctx, http.MethodPost, d.collectionPath("upsert"), req, nil); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}

	d.logger.Debug("added documents to chroma", "count", len(docs))
	return nil
}

// Query finds the topK documents closest to embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = vector.DefaultTopK
	}

	var resp queryResponse
	err := d.do(ctx, http.MethodPost, d.collectionPath("query"), queryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"documents", "metadatas", "distances"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}

	if len(resp.IDs) == 0 {
		return nil, nil
	}

	results := make([]vector.QueryResult, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		res := vector.QueryResult{
			Document: buildDocument(id, at(resp.Documents, i), at(resp.Metadatas, i), nil),
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			res.Score = vector.Score(resp.Distances[0][i])
		}
		results = append(results, res)
	}

	d.logger.Debug("queried chroma", "results", len(results))
	return results, nil
}

// Get retrieves documents by ID.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var resp getResponse
	err := d.do(ctx, http.MethodPost, d.collectionPath("get"), getRequest{
		IDs:     ids,
		Include: []string{"documents", "metadatas", "embeddings"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("getting documents: %w", err)
	}

	docs := make([]vector.Document, len(resp.IDs))
	for i, id := range resp.IDs {
		var content *string
		if i < len(resp.Documents) {
			content = resp.Documents[i]
		}
		var meta map[string]any
		if i < len(resp.Metadatas) {
			meta = resp.Metadatas[i]
		}
		var emb []float32
		if i < len(resp.Embeddings) {
			emb = resp.Embeddings[i]
		}
		docs[i] = buildDocument(id, content, meta, emb)
	}
	return docs, nil
}

// Delete removes documents by ID.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := d.do(ctx, http.MethodPost, d.collectionPath("delete"), deleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	d.logger.Debug("deleted documents from chroma", "count", len(ids))
	return nil
}

// Close is a no-op; the HTTP client holds nothing that needs releasing.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) collectionPath(op string) string {
	return collectionsPath + "/" + d.collectionID + "/" + op
}

// do sends body as JSON and decodes a 2xx response into out when out is
// non-nil.
func (d *Driver) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("chroma returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func buildDocument(id string, content *string, meta map[string]any, emb []float32) vector.Document {
	doc := vector.Document{ID: id, Embedding: emb}
	if content != nil {
		doc.Content = *content
	}
	if s, ok := meta["source"].(string); ok {
		doc.Source = s
	}
	if h, ok := meta["hash"].(string); ok {
		doc.Hash = h
	}
	return doc
}

// at returns the i-th entry of the first result group, or the zero value.
func at[T any](groups [][]T, i int) T {
	var zero T
	if len(groups) == 0 || i >= len(groups[0]) {
		return zero
	}
	return groups[0][i]
}

var _ vector.Driver = (*Driver)(nil)
