package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"pdfrag/internal/helper"
	"pdfrag/internal/llmservice"
	"pdfrag/internal/models"
)

// Synthesizer turns retrieved chunks and a question into one model answer
type Synthesizer struct {
	llm         llms.Model
	prompt      prompts.PromptTemplate
	notFound    string
	countTokens bool
}

type SynthesizerOption func(*Synthesizer)

// WithNotFoundMessage sets the exact reply the model is told to give when
// the context lacks the answer
func WithNotFoundMessage(msg string) SynthesizerOption {
	return func(s *Synthesizer) {
		if msg != "" {
			s.notFound = msg
		}
	}
}

// WithTokenCount logs the prompt size before every call
func WithTokenCount(enabled bool) SynthesizerOption {
	return func(s *Synthesizer) {
		s.countTokens = enabled
	}
}

func NewSynthesizer(llm llms.Model, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		llm:      llm,
		prompt:   prompts.NewPromptTemplate(models.AnswerPromptTemplate, []string{"not_found", "context", "question"}),
		notFound: models.DefaultNotFoundMessage,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildPrompt renders the grounded prompt with the hits in rank order
func (s *Synthesizer) BuildPrompt(question string, hits []models.Hit) (string, error) {
	var contextText strings.Builder
	for i, hit := range hits {
		if i > 0 {
			contextText.WriteString("\n\n")
		}
		contextText.WriteString(hit.Chunk.Content)
	}

	return s.prompt.Format(map[string]any{
		"not_found": s.notFound,
		"context":   contextText.String(),
		"question":  question,
	})
}

// Answer makes exactly one completion call. The temperature is passed
// through unchanged.
func (s *Synthesizer) Answer(ctx context.Context, question string, hits []models.Hit, temperature float64) (string, error) {
	prompt, err := s.BuildPrompt(question, hits)
	if err != nil {
		return "", fmt.Errorf("failed to format prompt: %w", err)
	}

	if s.countTokens {
		log.Debug().Int("prompt_tokens", helper.CountTokens(prompt)).Int("hits", len(hits)).Msg("Prompt built")
	}

	text, err := llmservice.GenerateText(ctx, s.llm, prompt, llms.WithTemperature(temperature))
	if err != nil {
		return "", &models.CompletionServiceError{Err: err}
	}
	return text, nil
}
