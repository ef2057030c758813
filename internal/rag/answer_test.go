package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"pdfrag/internal/models"
)

// recordingModel captures the prompt and call options of every request
type recordingModel struct {
	reply   string
	err     error
	calls   int
	prompt  string
	options llms.CallOptions
}

func (m *recordingModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	m.options = llms.CallOptions{}
	for _, opt := range options {
		opt(&m.options)
	}
	var prompt strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt.WriteString(text.Text)
			}
		}
	}
	m.prompt = prompt.String()

	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *recordingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func sampleHits() []models.Hit {
	return []models.Hit{
		{Chunk: models.NewChunk("The warranty lasts two years.", 1, 1), Score: 0.9},
		{Chunk: models.NewChunk("Batteries are excluded.", 2, 5), Score: 0.7},
	}
}

func TestAnswerBuildsGroundedPrompt(t *testing.T) {
	model := &recordingModel{reply: "Two years, batteries excluded."}
	s := NewSynthesizer(model)

	answer, err := s.Answer(context.Background(), "How long is the warranty?", sampleHits(), 0.3)
	require.NoError(t, err)
	assert.Equal(t, "Two years, batteries excluded.", answer)
	assert.Equal(t, 1, model.calls)
	assert.InDelta(t, 0.3, model.options.Temperature, 1e-9)

	p := model.prompt
	assert.Contains(t, p, models.DefaultNotFoundMessage)
	assert.Contains(t, p, "<context>")
	assert.Contains(t, p, "Question: How long is the warranty?")
	assert.True(t, strings.HasSuffix(p, "Answer:"))

	first := strings.Index(p, "The warranty lasts two years.")
	second := strings.Index(p, "Batteries are excluded.")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second)
}

func TestAnswerPassesTemperatureUnchanged(t *testing.T) {
	model := &recordingModel{reply: "ok"}
	s := NewSynthesizer(model)

	_, err := s.Answer(context.Background(), "q", sampleHits(), 1.7)
	require.NoError(t, err)
	assert.InDelta(t, 1.7, model.options.Temperature, 1e-9)
}

func TestAnswerCustomNotFoundMessage(t *testing.T) {
	model := &recordingModel{reply: "ok"}
	s := NewSynthesizer(model, WithNotFoundMessage("Not in the document."), WithTokenCount(false))

	prompt, err := s.BuildPrompt("q", nil)
	require.NoError(t, err)
	assert.Contains(t, prompt, `reply exactly with: "Not in the document."`)
	assert.NotContains(t, prompt, models.DefaultNotFoundMessage)
}

func TestAnswerCompletionFailure(t *testing.T) {
	cause := errors.New("rate limit reached")
	model := &recordingModel{err: cause}
	s := NewSynthesizer(model)

	answer, err := s.Answer(context.Background(), "q", sampleHits(), 0)
	assert.Empty(t, answer)

	var completionErr *models.CompletionServiceError
	require.True(t, errors.As(err, &completionErr))
	assert.ErrorIs(t, err, cause)
}

func TestAnswerKeepsVerbatimQuestion(t *testing.T) {
	model := &recordingModel{reply: "ok"}
	s := NewSynthesizer(model)

	question := `What does "<b>clause 4</b>" & {{.context}} mean?`
	_, err := s.Answer(context.Background(), question, sampleHits(), 0)
	require.NoError(t, err)
	assert.Contains(t, model.prompt, question)
}
