package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"

	"pdfrag/internal/config"
	"pdfrag/internal/models"
)

type fakeEmbedder struct {
	docs    [][]float32
	query   []float32
	err     error
	texts   []string
	queried []string
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.texts = append(f.texts, texts...)
	return f.docs, f.err
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queried = append(f.queried, text)
	return f.query, f.err
}

var _ embeddings.Embedder = (*fakeEmbedder)(nil)

func TestEmbedChunks(t *testing.T) {
	chunks := []models.Chunk{
		models.NewChunk("first", 1, 1),
		models.NewChunk("second", 1, 2),
	}
	fake := &fakeEmbedder{docs: [][]float32{{1, 0}, {0, 1}}}

	vectors, err := EmbedChunks(context.Background(), fake, chunks)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
	assert.Equal(t, []string{"first", "second"}, fake.texts)
}

func TestEmbedChunksEmpty(t *testing.T) {
	fake := &fakeEmbedder{}
	vectors, err := EmbedChunks(context.Background(), fake, nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Empty(t, fake.texts)
}

func TestEmbedChunksErrors(t *testing.T) {
	chunks := []models.Chunk{models.NewChunk("only", 1, 1)}

	tests := []struct {
		name string
		fake *fakeEmbedder
	}{
		{name: "provider failure", fake: &fakeEmbedder{err: errors.New("401 invalid api key")}},
		{name: "count mismatch", fake: &fakeEmbedder{docs: [][]float32{{1}, {2}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vectors, err := EmbedChunks(context.Background(), tt.fake, chunks)
			assert.Nil(t, vectors)
			var embedErr *models.EmbeddingServiceError
			assert.True(t, errors.As(err, &embedErr))
		})
	}
}

func TestEmbedChunksKeepsProviderMessage(t *testing.T) {
	cause := errors.New("401 invalid api key")
	_, err := EmbedChunks(context.Background(), &fakeEmbedder{err: cause}, []models.Chunk{models.NewChunk("x", 1, 1)})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestEmbedQuestion(t *testing.T) {
	fake := &fakeEmbedder{query: []float32{0.5, 0.5}}
	vector, err := EmbedQuestion(context.Background(), fake, "what is covered?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vector)
	assert.Equal(t, []string{"what is covered?"}, fake.queried)
}

func TestEmbedQuestionErrors(t *testing.T) {
	for name, fake := range map[string]*fakeEmbedder{
		"provider failure": {err: errors.New("timeout")},
		"empty vector":     {query: nil},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := EmbedQuestion(context.Background(), fake, "q")
			var embedErr *models.EmbeddingServiceError
			assert.True(t, errors.As(err, &embedErr))
		})
	}
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(&config.LLMConfig{Provider: config.ProviderOpenAI, Model: "text-embedding-3-small", Key: "sk-test"})
	require.NoError(t, err)
	assert.NotNil(t, e)

	e, err = NewEmbedder(&config.LLMConfig{Provider: config.ProviderOllama, Model: "nomic-embed-text", BaseURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.NotNil(t, e)

	_, err = NewEmbedder(&config.LLMConfig{Provider: "bedrock"})
	assert.Error(t, err)
}

func TestEmbedderImplWrapsClientFailure(t *testing.T) {
	client := embeddings.EmbedderClientFunc(func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("quota exceeded")
	})
	e, err := embeddings.NewEmbedder(client)
	require.NoError(t, err)

	_, err = EmbedQuestion(context.Background(), e, "q")
	var embedErr *models.EmbeddingServiceError
	require.True(t, errors.As(err, &embedErr))
	assert.Contains(t, err.Error(), "quota exceeded")
}
