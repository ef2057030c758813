package rag

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"pdfrag/internal/chromemdb"
	"pdfrag/internal/chunker"
	"pdfrag/internal/embedding"
	"pdfrag/internal/models"
	"pdfrag/internal/parser"
)

// AnswerSynthesizer produces the final answer from retrieved chunks
type AnswerSynthesizer interface {
	Answer(ctx context.Context, question string, hits []models.Hit, temperature float64) (string, error)
}

// State is either Empty or Ready
type State interface {
	isState()
}

// Empty means no document has been indexed yet
type Empty struct{}

// Ready holds the live index and the source it was built from
type Ready struct {
	SourceID   string
	Index      *chromemdb.Index
	ChunkCount int
	BuiltAt    time.Time
}

func (Empty) isState() {}
func (Ready) isState() {}

// Request is one question about one source document
type Request struct {
	Source       string
	Question     string
	ChunkSize    int
	ChunkOverlap int
	Temperature  float64
}

type Answer struct {
	Text    string
	Sources []models.Hit
	Rebuilt bool
}

type Options struct {
	TopK       int
	Separators []string
}

// Stats counts index builds (cache misses) and queries served from the
// cached index
type Stats struct {
	Builds int
	Hits   int
}

// Session keeps at most one index and rebuilds it only when the source
// document changes. One lock serializes every query, build included.
type Session struct {
	loader      parser.Parser
	embedder    embeddings.Embedder
	builder     chromemdb.Builder
	synthesizer AnswerSynthesizer
	opts        Options

	mu    sync.Mutex
	state State
	stats Stats
}

func NewSession(loader parser.Parser, embedder embeddings.Embedder, builder chromemdb.Builder, synthesizer AnswerSynthesizer, opts Options) *Session {
	if opts.TopK <= 0 {
		opts.TopK = models.DefaultTopK
	}
	if len(opts.Separators) == 0 {
		opts.Separators = models.DefaultSeparators
	}
	return &Session{
		loader:      loader,
		embedder:    embedder,
		builder:     builder,
		synthesizer: synthesizer,
		opts:        opts,
		state:       Empty{},
	}
}

// Query answers a question about req.Source, indexing the source first when
// it is not the one currently loaded. A failed build leaves the previous
// state in place.
func (s *Session) Query(ctx context.Context, req Request) (Answer, error) {
	if req.Source == "" {
		return Answer{}, models.ErrNoDocument
	}
	if strings.TrimSpace(req.Question) == "" {
		return Answer{}, models.ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		ready   Ready
		rebuilt bool
	)
	if current, ok := s.state.(Ready); ok && current.SourceID == req.Source {
		ready = current
		s.stats.Hits++
	} else {
		next, err := s.build(ctx, req)
		if err != nil {
			return Answer{}, err
		}
		s.state = next
		s.stats.Builds++
		ready = next
		rebuilt = true
	}

	log.Info().
		Str("source", req.Source).
		Bool("rebuilt", rebuilt).
		Int("builds", s.stats.Builds).
		Int("cache_hits", s.stats.Hits).
		Msg("Answering question")

	vector, err := embedding.EmbedQuestion(ctx, s.embedder, req.Question)
	if err != nil {
		return Answer{}, err
	}

	hits, err := ready.Index.Search(ctx, vector, s.opts.TopK)
	if err != nil {
		return Answer{}, err
	}

	text, err := s.synthesizer.Answer(ctx, req.Question, hits, req.Temperature)
	if err != nil {
		return Answer{}, err
	}

	return Answer{Text: text, Sources: hits, Rebuilt: rebuilt}, nil
}

func (s *Session) build(ctx context.Context, req Request) (Ready, error) {
	size, overlap := req.ChunkSize, req.ChunkOverlap
	if size == 0 {
		size = models.DefaultChunkSize
	}

	splitter, err := chunker.New(size, overlap, s.opts.Separators)
	if err != nil {
		return Ready{}, err
	}

	pages, err := s.loader.Load(ctx, req.Source)
	if err != nil {
		return Ready{}, err
	}

	chunks, err := splitter.Split(pages)
	if err != nil {
		return Ready{}, err
	}

	vectors, err := embedding.EmbedChunks(ctx, s.embedder, chunks)
	if err != nil {
		return Ready{}, err
	}

	index, err := s.builder.Build(ctx, chunks, vectors)
	if err != nil {
		return Ready{}, err
	}

	log.Info().
		Str("source", req.Source).
		Int("pages", len(pages)).
		Int("chunks", index.Count()).
		Msg("Indexed document")

	return Ready{
		SourceID:   req.Source,
		Index:      index,
		ChunkCount: index.Count(),
		BuiltAt:    index.BuiltAt(),
	}, nil
}

// Reset drops the index
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Empty{}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Loaded() bool {
	_, ok := s.State().(Ready)
	return ok
}

// Source is the id of the indexed document, empty when nothing is loaded
func (s *Session) Source() string {
	if ready, ok := s.State().(Ready); ok {
		return ready.SourceID
	}
	return ""
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
