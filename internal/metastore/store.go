// Package metastore provides SQLite persistence for document and chunk
// metadata. It is the relational half of the dual-store ingestion pipeline;
// the vector index holds the embeddings, this store holds the records.
package metastore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"ragingest/internal/chunker"
)

// ErrDuplicateKey indicates a primary key collision, an integrity violation
// that should never happen with UUID document ids.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is one ingested document's metadata row.
type Document struct {
	DocumentID      string `json:"document_id"`
	Filename        string `json:"filename"`
	UploadTimestamp string `json:"upload_timestamp"`
	NumChunks       int    `json:"num_chunks"`
	EmbeddingModel  string `json:"embedding_model"`
}

// Store persists documents and their chunk texts in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at dbPath, enables WAL
// mode and foreign keys, and ensures the schema exists. Safe to call on
// every startup.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to execute %s: %w", p, err)
		}
	}
	return nil
}

func createTables(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			document_id      TEXT PRIMARY KEY,
			filename         TEXT NOT NULL,
			upload_timestamp TEXT NOT NULL,
			num_chunks       INTEGER NOT NULL,
			embedding_model  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			document_id TEXT NOT NULL,
			chunk_id    INTEGER NOT NULL,
			chunk_text  TEXT NOT NULL,
			PRIMARY KEY (document_id, chunk_id),
			FOREIGN KEY (document_id) REFERENCES documents(document_id)
		)`,
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, ddl := range tables {
		if _, err := tx.Exec(ddl); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return tx.Commit()
}

// isDuplicateKey reports whether err is a primary-key or unique-constraint
// violation. Other constraint failures (foreign key, not null) pass through
// untouched.
func isDuplicateKey(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// SaveDocument inserts exactly one document row. Returns ErrDuplicateKey
// when the document id already exists.
func (s *Store) SaveDocument(doc Document) error {
	_, err := s.db.Exec(
		`INSERT INTO documents (document_id, filename, upload_timestamp, num_chunks, embedding_model)
		VALUES (?, ?, ?, ?, ?)`,
		doc.DocumentID, doc.Filename, doc.UploadTimestamp, doc.NumChunks, doc.EmbeddingModel,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: document %s", ErrDuplicateKey, doc.DocumentID)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// SaveChunks inserts one row per piece in a single transaction. A no-op on
// an empty batch.
func (s *Store) SaveChunks(documentID string, pieces []chunker.Piece) error {
	if len(pieces) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO chunks (document_id, chunk_id, chunk_text) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range pieces {
		if _, err := stmt.Exec(documentID, p.ID, p.Text); err != nil {
			tx.Rollback()
			if isDuplicateKey(err) {
				return fmt.Errorf("%w: chunk (%s, %d)", ErrDuplicateKey, documentID, p.ID)
			}
			return fmt.Errorf("failed to insert chunk %d: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetDocument returns the document row for id, or ErrNotFound.
func (s *Store) GetDocument(documentID string) (*Document, error) {
	var doc Document
	err := s.db.QueryRow(
		`SELECT document_id, filename, upload_timestamp, num_chunks, embedding_model
		FROM documents WHERE document_id = ?`, documentID,
	).Scan(&doc.DocumentID, &doc.Filename, &doc.UploadTimestamp, &doc.NumChunks, &doc.EmbeddingModel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns all document rows ordered by upload time descending.
func (s *Store) ListDocuments() ([]Document, error) {
	rows, err := s.db.Query(
		`SELECT document_id, filename, upload_timestamp, num_chunks, embedding_model
		FROM documents ORDER BY upload_timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.DocumentID, &d.Filename, &d.UploadTimestamp, &d.NumChunks, &d.EmbeddingModel); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}
	return docs, nil
}

// CountChunks returns the number of chunk rows for a document.
func (s *Store) CountChunks(documentID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks WHERE document_id = ?`, documentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// TotalChunks returns the number of chunk rows across all documents.
func (s *Store) TotalChunks() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Close releases the database connection. All writes are committed
// per-call, so nothing is buffered at this point.
func (s *Store) Close() error {
	return s.db.Close()
}
