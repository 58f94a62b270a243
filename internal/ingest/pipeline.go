// Package ingest orchestrates the document-ingestion pipeline: chunk the
// extracted text, embed the chunks in one batch, then persist vectors and
// metadata across the two stores.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ragingest/internal/chunker"
	"ragingest/internal/embedding"
	"ragingest/internal/metastore"
	"ragingest/internal/vectorstore"
)

var (
	// ErrStorageUnavailable indicates one of the stores was not injected.
	// Checked before any chunking or embedding work.
	ErrStorageUnavailable = errors.New("storage not initialized")

	// ErrEmbedderUnavailable indicates no embedding provider was injected.
	ErrEmbedderUnavailable = errors.New("embedding provider not initialized")

	// ErrEmbeddingCountMismatch indicates the embedding backend returned a
	// different number of vectors than chunks. A backend contract
	// violation, not retried.
	ErrEmbeddingCountMismatch = errors.New("embedding count does not match chunk count")
)

// Result is the outcome of one successful ingestion.
type Result struct {
	DocumentID     string `json:"document_id"`
	NumChunks      int    `json:"num_chunks"`
	EmbeddingModel string `json:"embedding_model"`
}

// Pipeline drives one document through chunk → embed → vector write →
// metadata write. Collaborators are injected at construction; a nil store
// or embedder is typed absence, reported before any compute.
//
// Safe for concurrent use: each call is an independent sequential run, and
// the stores serialize their own mutations.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder embedding.Embedder
	vectors  *vectorstore.Store
	meta     *metastore.Store
}

// NewPipeline creates a Pipeline. embedder, vectors, and meta may each be
// nil when the corresponding collaborator is disabled; Ingest then fails
// fast with the matching sentinel.
func NewPipeline(c *chunker.Chunker, embedder embedding.Embedder, vectors *vectorstore.Store, meta *metastore.Store) *Pipeline {
	if c == nil {
		c = chunker.New()
	}
	return &Pipeline{
		chunker:  c,
		embedder: embedder,
		vectors:  vectors,
		meta:     meta,
	}
}

// Ingest runs the full pipeline for one document and returns the assigned
// identity. The vector store is written before the metadata store: a crash
// between the two leaves orphaned vectors (recoverable by re-ingestion),
// never a document record pointing at missing vectors.
func (p *Pipeline) Ingest(ctx context.Context, text, filename string) (*Result, error) {
	// Cheap validation first; no embedding compute for a doomed run.
	if p.vectors == nil || p.meta == nil {
		return nil, ErrStorageUnavailable
	}
	if p.embedder == nil {
		return nil, ErrEmbedderUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pieces, err := p.chunker.Chunk(text)
	if err != nil {
		return nil, fmt.Errorf("chunking failed: %w", err)
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}

	// A document with zero chunks is valid; EmbedBatch returns an empty
	// result for it without touching the model.
	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(embeddings) != len(pieces) {
		return nil, fmt.Errorf("%w: %d embeddings for %d chunks",
			ErrEmbeddingCountMismatch, len(embeddings), len(pieces))
	}

	documentID := uuid.NewString()

	items := make([]vectorstore.Meta, len(pieces))
	for i, piece := range pieces {
		items[i] = vectorstore.Meta{DocumentID: documentID, ChunkID: piece.ID}
	}
	if _, err := p.vectors.AddEmbeddings(embeddings, items); err != nil {
		return nil, fmt.Errorf("vector store write failed: %w", err)
	}

	doc := metastore.Document{
		DocumentID:      documentID,
		Filename:        filename,
		UploadTimestamp: time.Now().UTC().Format(time.RFC3339),
		NumChunks:       len(pieces),
		EmbeddingModel:  p.embedder.ModelName(),
	}
	if err := p.meta.SaveDocument(doc); err != nil {
		return nil, fmt.Errorf("metadata write failed: %w", err)
	}
	if err := p.meta.SaveChunks(documentID, pieces); err != nil {
		return nil, fmt.Errorf("metadata write failed: %w", err)
	}

	return &Result{
		DocumentID:     documentID,
		NumChunks:      len(pieces),
		EmbeddingModel: p.embedder.ModelName(),
	}, nil
}
