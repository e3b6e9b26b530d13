package store

import "time"

// QA is one answered question as kept in the service history.
type QA struct {
	ID        string    `json:"id"` // Using UUID for external ID
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Images    []string  `json:"images"`
	CreatedAt time.Time `json:"date"`
}

// DataChunk is a document paragraph with its adjacent images.
type DataChunk struct {
	ID            int64     `json:"id"`
	Content       string    `json:"content"`
	Images        []string  `json:"images"`
	Embedding     []float32 `json:"-"` // Don't marshal to JSON response, internal
	EmbeddingJSON string    `json:"-"` // Store as JSON string for DB
}
