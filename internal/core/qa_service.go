package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"gwi.com/docs-assistant/internal/store"
	"gwi.com/docs-assistant/internal/utils"
)

const (
	invalidQuestionAnswer = "Вопрос некорректный. Пожалуйста, уточните свой вопрос."
	notFoundAnswer        = "Такой информации нет, вы можете обратиться к разработчику."
)

var ErrEmptyQuestion = errors.New("question is required")

// HistoryStore persists answered questions.
type HistoryStore interface {
	CreateQA(ctx context.Context, qa *store.QA) error
	ListQA(ctx context.Context) ([]store.QA, error)
	GetLastNQA(ctx context.Context, n int) ([]store.QA, error)
	ClearQA(ctx context.Context) error
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) Retrieval
}

type Completer interface {
	GetChatCompletion(ctx context.Context, history []store.QA, documentation, question string) (string, error)
}

type QAService struct {
	history      HistoryStore
	retriever    Retriever
	llm          Completer
	historyTurns int
	log          zerolog.Logger
}

func NewQAService(history HistoryStore, retriever Retriever, llm Completer, historyTurns int, logger zerolog.Logger) *QAService {
	return &QAService{
		history:      history,
		retriever:    retriever,
		llm:          llm,
		historyTurns: historyTurns,
		log:          logger.With().Str("component", "qa").Logger(),
	}
}

// Ask answers question from the ingested documentation. Image paths are
// published as URLs under imageBaseURL + "/images/". Invalid questions and
// questions without matching documentation get a canned answer; both are
// recorded in the history like regular answers.
func (s *QAService) Ask(ctx context.Context, question, imageBaseURL string) (*store.QA, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	if utils.IsInvalidQuestion(question) {
		return s.record(ctx, question, invalidQuestionAnswer, nil), nil
	}

	found := s.retriever.Retrieve(ctx, question)
	if !found.Found {
		return s.record(ctx, question, notFoundAnswer, nil), nil
	}

	var recent []store.QA
	if s.historyTurns > 0 {
		var err error
		recent, err = s.history.GetLastNQA(ctx, s.historyTurns)
		if err != nil {
			s.log.Warn().Err(err).Msg("Proceeding without chat history")
			recent = nil
		}
	}

	answer, err := s.llm.GetChatCompletion(ctx, recent, found.Context, question)
	if err != nil {
		return nil, fmt.Errorf("failed to get LLM completion: %w", err)
	}

	return s.record(ctx, question, answer, imageURLs(imageBaseURL, found.Images)), nil
}

func (s *QAService) record(ctx context.Context, question, answer string, images []string) *store.QA {
	qa := &store.QA{Question: question, Answer: answer, Images: images}
	if qa.Images == nil {
		qa.Images = []string{}
	}
	if err := s.history.CreateQA(ctx, qa); err != nil {
		s.log.Error().Err(err).Msg("Failed to save question and answer")
	}
	return qa
}

func (s *QAService) History(ctx context.Context) ([]store.QA, error) {
	return s.history.ListQA(ctx)
}

func (s *QAService) ClearHistory(ctx context.Context) error {
	return s.history.ClearQA(ctx)
}

// imageURLs maps on-disk image paths to public URLs, dropping duplicates
// while keeping first-seen order.
func imageURLs(base string, paths []string) []string {
	base = strings.TrimRight(base, "/")
	seen := make(map[string]struct{}, len(paths))
	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		u := fmt.Sprintf("%s/images/%s", base, filepath.Base(p))
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}
