package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"ragingest/internal/chunker"
	"ragingest/internal/config"
	"ragingest/internal/embedding"
	"ragingest/internal/extractor"
	"ragingest/internal/ingest"
	"ragingest/internal/metastore"
	"ragingest/internal/vectorstore"
)

// supportedContentTypes lists the MIME types accepted for upload.
var supportedContentTypes = map[string]bool{
	extractor.ContentTypePDF:  true,
	extractor.ContentTypeText: true,
}

// App bundles the wired services behind the HTTP handlers.
type App struct {
	cfg       *config.Config
	extractor *extractor.Extractor
	pipeline  *ingest.Pipeline
	meta      *metastore.Store
}

func main() {
	// 1. Load configuration (.env, optional config.yaml, environment)
	cfg, err := config.LoadEnv("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// 2. Open the stores unless persistence is disabled
	var (
		vectors *vectorstore.Store
		meta    *metastore.Store
	)
	if !cfg.DisableStorage {
		vectors, err = vectorstore.Open(cfg.VectorIndexPath)
		if err != nil {
			log.Fatalf("Failed to open vector store: %v", err)
		}
		defer vectors.Close()

		meta, err = metastore.Open(cfg.MetadataDBPath)
		if err != nil {
			log.Fatalf("Failed to open metadata store: %v", err)
		}
		defer meta.Close()
	}

	// 3. Construct the embedding provider; eager-load so a misconfigured
	// backend aborts startup instead of failing the first upload
	var embedder embedding.Embedder
	if !cfg.DisableEmbeddings {
		provider := embedding.NewProvider(cfg.EmbeddingModel, cfg.APIKey, cfg.EmbeddingBaseURL)
		if err := provider.Load(); err != nil {
			log.Fatalf("Failed to load embedding model %q: %v", cfg.EmbeddingModel, err)
		}
		embedder = provider
	}

	// 4. Assemble the pipeline
	tc := &chunker.Chunker{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
	app := &App{
		cfg:       cfg,
		extractor: &extractor.Extractor{},
		pipeline:  ingest.NewPipeline(tc, embedder, vectors, meta),
		meta:      meta,
	}

	// 5. Register HTTP handlers and serve
	http.HandleFunc("/health", handleHealth())
	http.HandleFunc("/ingest", handleIngest(app))
	http.HandleFunc("/documents", handleDocuments(app))

	fmt.Printf("%s listening on http://%s\n", cfg.Service, cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, nil))
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// --- Handlers ---

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleIngest(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if !supportedContentTypes[contentType] {
			writeError(w, http.StatusBadRequest, "unsupported file type")
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read file")
			return
		}

		text, err := app.extractor.Extract(data, contentType)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := app.pipeline.Ingest(r.Context(), text, header.Filename)
		if err != nil {
			log.Printf("ingest failed for %s: %v", header.Filename, err)
			status := http.StatusInternalServerError
			if errors.Is(err, ingest.ErrStorageUnavailable) || errors.Is(err, ingest.ErrEmbedderUnavailable) {
				status = http.StatusServiceUnavailable
			}
			writeError(w, status, "ingestion failed")
			return
		}

		log.Printf("ingested %s: document_id=%s num_chunks=%d", header.Filename, result.DocumentID, result.NumChunks)
		writeJSON(w, http.StatusOK, result)
	}
}

func handleDocuments(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if app.meta == nil {
			writeError(w, http.StatusServiceUnavailable, "storage disabled")
			return
		}
		docs, err := app.meta.ListDocuments()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list documents")
			return
		}
		if docs == nil {
			docs = []metastore.Document{}
		}
		writeJSON(w, http.StatusOK, docs)
	}
}
