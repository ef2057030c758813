package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdfrag/internal/config"
	"pdfrag/internal/models"
)

// NewEmbedder picks the embedding client for the configured provider
func NewEmbedder(cfg *config.LLMConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Loaded embedder config")

	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(cfg)
	case config.ProviderOpenAI, "":
		return NewOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
}

func NewOpenAIEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	return embeddings.NewEmbedder(llm)
}

// new ollama embedder
func NewOllamaEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	return embeddings.NewEmbedder(llm)
}

// EmbedChunks returns one vector per chunk in the same order. It makes a
// single attempt; provider failures come back as EmbeddingServiceError.
func EmbedChunks(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, &models.EmbeddingServiceError{Err: err}
	}
	if len(vectors) != len(chunks) {
		return nil, &models.EmbeddingServiceError{
			Err: fmt.Errorf("expected %d vectors, got %d", len(chunks), len(vectors)),
		}
	}

	log.Debug().Int("vectors", len(vectors)).Int("dimension", len(vectors[0])).Msg("Embedded chunks")
	return vectors, nil
}

// EmbedQuestion embeds the query text of a search
func EmbedQuestion(ctx context.Context, embedder embeddings.Embedder, question string) ([]float32, error) {
	vector, err := embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, &models.EmbeddingServiceError{Err: err}
	}
	if len(vector) == 0 {
		return nil, &models.EmbeddingServiceError{Err: fmt.Errorf("empty embedding returned for query")}
	}
	return vector, nil
}
