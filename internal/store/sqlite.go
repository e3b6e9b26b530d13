package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"gwi.com/docs-assistant/internal/docparser"
)

// Embedder turns text into an embedding vector.
type Embedder func(ctx context.Context, text string) ([]float32, error)

// embedInterval keeps ingestion under the embedding API rate limit (1500/min).
var embedInterval = 40 * time.Millisecond

type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewSQLiteStore(dataSourceName string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, log: logger.With().Str("component", "store").Logger()}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS qa_history (
        id TEXT PRIMARY KEY, -- UUID
        question TEXT NOT NULL,
        answer TEXT NOT NULL,
        images_json TEXT NOT NULL DEFAULT '[]',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS data_chunks (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        content TEXT NOT NULL,
        images_json TEXT NOT NULL DEFAULT '[]',
        embedding_json TEXT -- Storing as JSON string of []float32
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// QA history methods
func (s *SQLiteStore) CreateQA(ctx context.Context, qa *QA) error {
	qa.ID = uuid.NewString()
	if qa.CreatedAt.IsZero() {
		qa.CreatedAt = time.Now().UTC()
	}
	if qa.Images == nil {
		qa.Images = []string{}
	}
	imagesJSON, err := json.Marshal(qa.Images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO qa_history (id, question, answer, images_json, created_at) VALUES (?, ?, ?, ?, ?)",
		qa.ID, qa.Question, qa.Answer, string(imagesJSON), qa.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute qa insert: %w", err)
	}
	return nil
}

// ListQA returns the whole history, oldest first.
func (s *SQLiteStore) ListQA(ctx context.Context) ([]QA, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, question, answer, images_json, created_at FROM qa_history ORDER BY created_at ASC, rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query qa history: %w", err)
	}
	defer rows.Close()
	return scanQA(rows)
}

// GetLastNQA returns the n most recent entries, oldest first.
func (s *SQLiteStore) GetLastNQA(ctx context.Context, n int) ([]QA, error) {
	if n <= 0 {
		return []QA{}, nil
	}
	query := `
        SELECT id, question, answer, images_json, created_at FROM (
            SELECT id, question, answer, images_json, created_at, rowid AS rid
            FROM qa_history
            ORDER BY created_at DESC, rowid DESC
            LIMIT ?
        ) ORDER BY created_at ASC, rid ASC
    `
	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query qa history: %w", err)
	}
	defer rows.Close()
	return scanQA(rows)
}

func (s *SQLiteStore) ClearQA(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM qa_history"); err != nil {
		return fmt.Errorf("failed to delete qa history: %w", err)
	}
	return nil
}

func scanQA(rows *sql.Rows) ([]QA, error) {
	qas := []QA{}
	for rows.Next() {
		var qa QA
		var imagesJSON string
		if err := rows.Scan(&qa.ID, &qa.Question, &qa.Answer, &imagesJSON, &qa.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan qa row: %w", err)
		}
		if err := json.Unmarshal([]byte(imagesJSON), &qa.Images); err != nil || qa.Images == nil {
			qa.Images = []string{}
		}
		qas = append(qas, qa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate qa rows: %w", err)
	}
	return qas, nil
}

// DataChunk methods (for RAG)
func (s *SQLiteStore) GetAllDataChunks(ctx context.Context) ([]DataChunk, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, content, images_json, embedding_json FROM data_chunks ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query data_chunks: %w", err)
	}
	defer rows.Close()

	var chunks []DataChunk
	for rows.Next() {
		var chunk DataChunk
		var imagesJSON string
		var embeddingJSON sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.Content, &imagesJSON, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan data_chunk row: %w", err)
		}
		if err := json.Unmarshal([]byte(imagesJSON), &chunk.Images); err != nil {
			s.log.Warn().Err(err).Int64("chunk_id", chunk.ID).Msg("Malformed images_json, chunk will have no images")
			chunk.Images = nil
		}
		if embeddingJSON.Valid && embeddingJSON.String != "" {
			chunk.EmbeddingJSON = embeddingJSON.String
			if err := json.Unmarshal([]byte(embeddingJSON.String), &chunk.Embedding); err != nil {
				s.log.Warn().Err(err).Int64("chunk_id", chunk.ID).Msg("Malformed embedding, chunk is keyword-only")
				chunk.Embedding = nil
			}
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate data_chunk rows: %w", err)
	}
	return chunks, nil
}

// ReplaceDataChunks swaps the stored chunk set for chunks in one transaction.
func (s *SQLiteStore) ReplaceDataChunks(ctx context.Context, chunks []DataChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM data_chunks"); err != nil {
		return fmt.Errorf("failed to delete data_chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name='data_chunks'"); err != nil && !strings.Contains(err.Error(), "no such table") {
		s.log.Warn().Err(err).Msg("Could not reset sequence for data_chunks")
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO data_chunks (content, images_json, embedding_json) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare data_chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		chunk := &chunks[i]
		if chunk.Images == nil {
			chunk.Images = []string{}
		}
		imagesJSON, err := json.Marshal(chunk.Images)
		if err != nil {
			return fmt.Errorf("failed to marshal images: %w", err)
		}
		var embedding any
		if len(chunk.Embedding) > 0 {
			raw, err := json.Marshal(chunk.Embedding)
			if err != nil {
				return fmt.Errorf("failed to marshal embedding: %w", err)
			}
			chunk.EmbeddingJSON = string(raw)
			embedding = chunk.EmbeddingJSON
		}
		res, err := stmt.ExecContext(ctx, chunk.Content, string(imagesJSON), embedding)
		if err != nil {
			return fmt.Errorf("failed to execute data_chunk insert: %w", err)
		}
		chunk.ID, _ = res.LastInsertId()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit data_chunks: %w", err)
	}
	return nil
}

// BuildChunks turns parsed document elements into chunks. Each text paragraph
// carries the images directly after it, then the images directly before it.
func BuildChunks(elements []docparser.Element) []DataChunk {
	var chunks []DataChunk
	for i, el := range elements {
		if el.Type != docparser.ElementText {
			continue
		}
		images := []string{}
		for j := i + 1; j < len(elements) && elements[j].Type == docparser.ElementImage; j++ {
			images = append(images, elements[j].Content)
		}
		for j := i - 1; j >= 0 && elements[j].Type == docparser.ElementImage; j-- {
			images = append(images, elements[j].Content)
		}
		chunks = append(chunks, DataChunk{Content: el.Content, Images: images})
	}
	return chunks
}

// IngestElements embeds the document's chunks and replaces the stored set.
// A chunk whose embedding fails is kept without one so keyword lookup still finds it.
func (s *SQLiteStore) IngestElements(ctx context.Context, elements []docparser.Element, embedder Embedder) (int, error) {
	chunks := BuildChunks(elements)
	if len(chunks) == 0 {
		s.log.Warn().Msg("No text paragraphs found in document, nothing to ingest")
		return 0, nil
	}

	s.log.Info().Int("chunks", len(chunks)).Msg("Embedding chunks (this may take a while)")

	ticker := time.NewTicker(embedInterval)
	defer ticker.Stop()

	embedded := 0
	for i := range chunks {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}

		embedding, err := embedder(ctx, chunks[i].Content)
		if err != nil {
			s.log.Warn().Err(err).Int("chunk", i+1).Msg("Failed to embed chunk, keeping it for keyword search")
			continue
		}
		chunks[i].Embedding = embedding
		embedded++
		if embedded%10 == 0 {
			s.log.Info().Int("embedded", embedded).Int("total", len(chunks)).Msg("Embedding progress")
		}
	}

	if err := s.ReplaceDataChunks(ctx, chunks); err != nil {
		return 0, err
	}
	s.log.Info().Int("chunks", len(chunks)).Int("embedded", embedded).Msg("Ingestion complete")
	return len(chunks), nil
}
