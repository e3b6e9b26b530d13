package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"gwi.com/docs-assistant/internal/store"
)

const (
	defaultChatModelName      = "gemini-1.5-flash-latest"
	defaultEmbeddingModelName = "text-embedding-004"

	chatSystemInstruction = "Ты — умный ассистент, помогающий пользователям работать с приложением. " +
		"Отвечай только на вопросы, связанные с документацией. Обрати внимание, что в документации могут быть изображения, связанные с текстом. " +
		"Если вопрос не относится к документации, ответь: \"" + notFoundAnswer + "\""

	emptyCompletionAnswer = "Ответ не получен"
)

type LLMService struct {
	client *genai.Client
	log    zerolog.Logger
}

func NewLLMService(ctx context.Context, apiKey string, logger zerolog.Logger) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &LLMService{
		client: client,
		log:    logger.With().Str("component", "llm").Logger(),
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.log.Error().Err(err).Msg("Error closing GenAI client")
		} else {
			s.log.Debug().Msg("GenAI client closed")
		}
	}
}

func (s *LLMService) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(defaultEmbeddingModelName)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

// GetChatCompletion answers question from documentation excerpts, with
// earlier exchanges replayed as chat history.
func (s *LLMService) GetChatCompletion(ctx context.Context, history []store.QA, documentation, question string) (string, error) {
	model := s.client.GenerativeModel(defaultChatModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(chatSystemInstruction)},
	}

	temp := float32(0.6)
	maxTokens := int32(2000)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	chatSession := model.StartChat()
	chatSession.History = promptHistory(history)

	resp, err := chatSession.SendMessage(ctx, genai.Text(buildPrompt(documentation, question)))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		s.log.Warn().Msg("Gemini response was empty or had no valid candidates/parts")
		return emptyCompletionAnswer, nil
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.log.Debug().Str("part_type", fmt.Sprintf("%T", part)).Msg("Skipping non-text response part")
		}
	}

	if responseText.Len() == 0 {
		return emptyCompletionAnswer, nil
	}
	return responseText.String(), nil
}

func promptHistory(history []store.QA) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)*2)
	for _, qa := range history {
		if qa.Question == "" || qa.Answer == "" {
			continue
		}
		contents = append(contents,
			&genai.Content{Role: "user", Parts: []genai.Part{genai.Text(qa.Question)}},
			&genai.Content{Role: "model", Parts: []genai.Part{genai.Text(qa.Answer)}},
		)
	}
	return contents
}

func buildPrompt(documentation, question string) string {
	return fmt.Sprintf("Документация:\n%s\n\nВопрос пользователя: %s", documentation, question)
}
