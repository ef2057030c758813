package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"pdfrag/internal/models"
)

// Splitter cuts page text into overlapping chunks, trying separators in order
type Splitter struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

// New validates the size/overlap pair before building the splitter. The
// recursive splitter never terminates sensibly when overlap >= size.
func New(size, overlap int, separators []string) (*Splitter, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, &models.ChunkingConfigError{Size: size, Overlap: overlap}
	}
	if len(separators) == 0 {
		separators = models.DefaultSeparators
	}

	return &Splitter{
		size:    size,
		overlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(separators),
			textsplitter.WithKeepSeparator(true),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

// Split returns the chunks of every page in document order. ChunkID counts
// from 1 across the whole document.
func (s *Splitter) Split(pages []models.Page) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, page := range pages {
		pieces, err := s.splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d: %w", page.Number, err)
		}
		for _, piece := range pieces {
			if strings.TrimSpace(piece) == "" {
				continue
			}
			chunks = append(chunks, models.NewChunk(piece, page.Number, len(chunks)+1))
		}
	}

	log.Debug().
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Int("chunk_size", s.size).
		Int("chunk_overlap", s.overlap).
		Msg("Split document")
	return chunks, nil
}
