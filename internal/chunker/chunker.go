// Package chunker provides text splitting functionality for document ingestion.
// It splits text into fixed-size character chunks with configurable overlap.
package chunker

import (
	"errors"
	"strings"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 500

// DefaultOverlap is the default number of overlapping characters between adjacent chunks.
const DefaultOverlap = 100

// ErrInvalidChunkSize indicates a non-positive chunk size.
var ErrInvalidChunkSize = errors.New("chunk size must be > 0")

// Chunker splits text into fixed-size chunks with configurable overlap.
type Chunker struct {
	Size    int // characters per chunk, default 500
	Overlap int // characters shared between adjacent chunks, default 100
}

// Piece is one emitted chunk of a document's text. IDs are 1-based and
// sequential over emitted pieces; windows that trim to nothing get no id.
type Piece struct {
	ID   int    `json:"chunk_id"`
	Text string `json:"text"`
}

// New creates a Chunker with default settings.
func New() *Chunker {
	return &Chunker{
		Size:    DefaultChunkSize,
		Overlap: DefaultOverlap,
	}
}

// Chunk divides text into windows of Size characters, each starting
// Size-Overlap characters after the previous one. Windows that are empty
// after trimming whitespace are dropped; the remaining pieces receive ids
// 1..N in text order.
//
// Returns an empty slice for empty text. Returns ErrInvalidChunkSize when
// Size <= 0. The output is deterministic for identical inputs.
func (c *Chunker) Chunk(text string) ([]Piece, error) {
	if text == "" {
		return []Piece{}, nil
	}
	if c.Size <= 0 {
		return nil, ErrInvalidChunkSize
	}

	// Guarantee forward progress even when overlap >= size.
	step := c.Size - c.Overlap
	if step <= 0 {
		step = 1
	}

	// Size, Overlap and step count characters, not bytes, so multibyte
	// text never gets split inside a rune.
	runes := []rune(text)

	var pieces []Piece
	id := 1

	for start := 0; start < len(runes); start += step {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}

		window := string(runes[start:end])
		if strings.TrimSpace(window) != "" {
			pieces = append(pieces, Piece{ID: id, Text: window})
			id++

			// The window that reaches the end of the text is the last one.
			if end == len(runes) {
				break
			}
		}
	}

	return pieces, nil
}
