package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdfrag/internal/models"
)

const collectionName = "document"

// metadata keys stored next to each chunk
const (
	metaPage  = "page"
	metaChunk = "chunk_id"
)

// errNoEmbedFunc is returned if chromem ever tries to embed text itself.
// Vectors always come from the configured embedding provider.
var errNoEmbedFunc = errors.New("index does not embed text; pass precomputed vectors")

// Builder creates a new index from chunks and their vectors
type Builder interface {
	Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (*Index, error)
}

// BuilderFunc adapts a function to the Builder interface
type BuilderFunc func(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (*Index, error)

func (f BuilderFunc) Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (*Index, error) {
	return f(ctx, chunks, vectors)
}

// Index is an in-memory cosine similarity index over the chunks of one
// document. It is never updated; a new document means a new Index.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	chunks     map[string]models.Chunk
	builtAt    time.Time
}

// Build indexes chunks with their precomputed vectors. Both slices must be
// non-empty and of equal length.
func Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("cannot build index: no chunks")
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("cannot build index: %d chunks but %d vectors", len(chunks), len(vectors))
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(collectionName, nil, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbedFunc
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	byID := make(map[string]models.Chunk, len(chunks))
	docs := make([]chromem.Document, 0, len(chunks))
	for i, chunk := range chunks {
		if _, dup := byID[chunk.ID]; dup {
			return nil, fmt.Errorf("cannot build index: duplicate chunk id %s", chunk.ID)
		}
		if len(vectors[i]) == 0 {
			return nil, fmt.Errorf("cannot build index: empty vector for chunk %s", chunk.ID)
		}
		byID[chunk.ID] = chunk
		docs = append(docs, chromem.Document{
			ID:      chunk.ID,
			Content: chunk.Content,
			Metadata: map[string]string{
				metaPage:  strconv.Itoa(chunk.PageNumber),
				metaChunk: strconv.Itoa(chunk.ChunkID),
			},
			Embedding: vectors[i],
		})
	}

	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	log.Debug().Int("documents", collection.Count()).Msg("Built vector index")
	return &Index{
		db:         db,
		collection: collection,
		chunks:     byID,
		builtAt:    time.Now(),
	}, nil
}

// Count is the number of indexed chunks
func (idx *Index) Count() int {
	return idx.collection.Count()
}

func (idx *Index) BuiltAt() time.Time {
	return idx.builtAt
}

// Search returns at most k chunks ordered by decreasing cosine similarity
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]models.Hit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("search requires a query vector")
	}
	if k <= 0 {
		k = models.DefaultTopK
	}
	if n := idx.Count(); k > n {
		k = n
	}
	if k == 0 {
		return nil, nil
	}

	results, err := idx.collection.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	hits := make([]models.Hit, 0, len(results))
	for _, res := range results {
		chunk, ok := idx.chunks[res.ID]
		if !ok {
			continue
		}
		hits = append(hits, models.Hit{Chunk: chunk, Score: res.Similarity})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits, nil
}
