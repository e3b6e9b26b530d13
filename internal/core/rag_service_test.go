package core

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/docs-assistant/internal/store"
)

type staticChunks []store.DataChunk

func (c staticChunks) GetAllDataChunks(context.Context) ([]store.DataChunk, error) {
	return c, nil
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (e stubEmbedder) GetEmbedding(context.Context, string) ([]float32, error) {
	return e.vec, e.err
}

var testChunks = staticChunks{
	{ID: 1, Content: "Чтобы войти, откройте страницу входа.", Images: []string{"images/login.png"}, Embedding: []float32{1, 0, 0}},
	{ID: 2, Content: "Отчёты создаются в меню Аналитика.", Images: []string{"images/reports.png"}, Embedding: []float32{0, 1, 0}},
	{ID: 3, Content: "Пароль можно сбросить в профиле.", Embedding: []float32{0.9, 0.1, 0}},
}

func TestRetrieveBySimilarity(t *testing.T) {
	rag, err := NewRAGService(context.Background(), testChunks, stubEmbedder{vec: []float32{1, 0, 0}}, zerolog.Nop())
	require.NoError(t, err)

	got := rag.Retrieve(context.Background(), "как войти")
	require.True(t, got.Found)
	assert.Equal(t, "Чтобы войти, откройте страницу входа.\n\nПароль можно сбросить в профиле.", got.Context)
	assert.Equal(t, []string{"images/login.png"}, got.Images)
}

func TestRetrieveFallsBackToKeywords(t *testing.T) {
	rag, err := NewRAGService(context.Background(), testChunks, stubEmbedder{err: errors.New("offline")}, zerolog.Nop())
	require.NoError(t, err)

	got := rag.Retrieve(context.Background(), "Где создаются отчёты?")
	require.True(t, got.Found)
	assert.Equal(t, "Отчёты создаются в меню Аналитика.", got.Context)
	assert.Equal(t, []string{"images/reports.png"}, got.Images)
}

func TestRetrieveNothingRelevant(t *testing.T) {
	rag, err := NewRAGService(context.Background(), testChunks, stubEmbedder{vec: []float32{0, 0, 1}}, zerolog.Nop())
	require.NoError(t, err)

	got := rag.Retrieve(context.Background(), "Как заказать пиццу?")
	assert.False(t, got.Found)
	assert.Empty(t, got.Context)
}

func TestRetrieveWithoutChunks(t *testing.T) {
	rag, err := NewRAGService(context.Background(), staticChunks{}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, rag.Retrieve(context.Background(), "Как войти?").Found)
}

func TestPromptHistorySkipsIncompleteTurns(t *testing.T) {
	contents := promptHistory([]store.QA{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: ""},
	})
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)

	assert.Contains(t, buildPrompt("docs", "вопрос"), "Вопрос пользователя: вопрос")
}
