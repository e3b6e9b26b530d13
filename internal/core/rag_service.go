package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"gwi.com/docs-assistant/internal/store"
	"gwi.com/docs-assistant/internal/utils"
)

const (
	NumRelevantChunks   = 3   // Number of chunks to retrieve by similarity
	SimilarityThreshold = 0.7 // Minimum similarity score to consider a chunk relevant
	maxKeywordChunks    = 10
)

// ChunkSource loads the ingested document chunks.
type ChunkSource interface {
	GetAllDataChunks(ctx context.Context) ([]store.DataChunk, error)
}

// Embedder embeds a query for similarity search.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Retrieval is the documentation context found for a question.
type Retrieval struct {
	Context string
	Images  []string
	Found   bool
}

type RAGService struct {
	embedder   Embedder
	dataChunks []store.DataChunk // In-memory cache of data chunks and their embeddings
	log        zerolog.Logger
}

func NewRAGService(ctx context.Context, source ChunkSource, embedder Embedder, logger zerolog.Logger) (*RAGService, error) {
	chunks, err := source.GetAllDataChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load data chunks for RAG service: %w", err)
	}

	log := logger.With().Str("component", "rag").Logger()
	if len(chunks) == 0 {
		log.Warn().Msg("RAGService initialized with no data chunks. Run ingest first.")
	} else {
		log.Info().Int("chunks", len(chunks)).Msg("RAGService initialized")
	}

	return &RAGService{
		embedder:   embedder,
		dataChunks: chunks,
		log:        log,
	}, nil
}

type ScoredChunk struct {
	Chunk      store.DataChunk
	Similarity float32
}

// Retrieve finds documentation for query by embedding similarity, falling
// back to keyword matching when similarity search is unavailable or finds nothing.
func (s *RAGService) Retrieve(ctx context.Context, query string) Retrieval {
	if len(s.dataChunks) == 0 {
		return Retrieval{}
	}

	if selected := s.bySimilarity(ctx, query); len(selected) > 0 {
		s.log.Debug().Int("chunks", len(selected)).Msg("Retrieved chunks by similarity")
		return assemble(selected)
	}
	if selected := s.byKeywords(query); len(selected) > 0 {
		s.log.Debug().Int("chunks", len(selected)).Msg("Retrieved chunks by keywords")
		return assemble(selected)
	}

	s.log.Debug().Str("query", query).Msg("No relevant chunks found")
	return Retrieval{}
}

func (s *RAGService) bySimilarity(ctx context.Context, query string) []store.DataChunk {
	if s.embedder == nil || !s.hasEmbeddings() {
		return nil
	}

	queryEmbedding, err := s.embedder.GetEmbedding(ctx, query)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to embed query, falling back to keywords")
		return nil
	}

	scoredChunks := make([]ScoredChunk, 0, len(s.dataChunks))
	for _, chunk := range s.dataChunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		similarity, err := utils.CosineSimilarity(queryEmbedding, chunk.Embedding)
		if err != nil {
			s.log.Warn().Err(err).Int64("chunk_id", chunk.ID).Msg("Skipping chunk")
			continue
		}
		if similarity >= SimilarityThreshold {
			scoredChunks = append(scoredChunks, ScoredChunk{Chunk: chunk, Similarity: similarity})
		}
	}

	sort.SliceStable(scoredChunks, func(i, j int) bool {
		return scoredChunks[i].Similarity > scoredChunks[j].Similarity
	})

	var selected []store.DataChunk
	for i := 0; i < len(scoredChunks) && i < NumRelevantChunks; i++ {
		selected = append(selected, scoredChunks[i].Chunk)
	}
	return selected
}

func (s *RAGService) byKeywords(query string) []store.DataChunk {
	keywords := utils.FindKeywords(query)
	if len(keywords) == 0 {
		return nil
	}

	var selected []store.DataChunk
	for _, chunk := range s.dataChunks {
		content := strings.ToLower(chunk.Content)
		for _, keyword := range keywords {
			if strings.Contains(content, keyword) {
				selected = append(selected, chunk)
				break
			}
		}
		if len(selected) == maxKeywordChunks {
			break
		}
	}
	return selected
}

func (s *RAGService) hasEmbeddings() bool {
	for _, chunk := range s.dataChunks {
		if len(chunk.Embedding) > 0 {
			return true
		}
	}
	return false
}

func assemble(chunks []store.DataChunk) Retrieval {
	var contextBuilder strings.Builder
	var images []string
	for _, chunk := range chunks {
		contextBuilder.WriteString(chunk.Content)
		contextBuilder.WriteString("\n\n")
		images = append(images, chunk.Images...)
	}
	return Retrieval{
		Context: strings.TrimSpace(contextBuilder.String()),
		Images:  images,
		Found:   true,
	}
}
