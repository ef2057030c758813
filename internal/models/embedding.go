package models

import (
	"fmt"
	"time"
)

// Page is the raw text of one page of a loaded document
type Page struct {
	Number int
	Text   string
}

// Chunk represents a split piece of a page with its position in the document
type Chunk struct {
	ID         string
	Content    string
	PageNumber int
	ChunkID    int
}

// NewChunk builds a chunk whose ID is unique within one index
func NewChunk(content string, pageNumber, chunkID int) Chunk {
	return Chunk{
		ID:         fmt.Sprintf("p%d-c%d", pageNumber, chunkID),
		Content:    content,
		PageNumber: pageNumber,
		ChunkID:    chunkID,
	}
}

// Hit is a chunk returned by a similarity search
type Hit struct {
	Chunk Chunk
	Score float32
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
}

// Exchange is one question and the answer or error text shown for it
type Exchange struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Question  string        `json:"question"`
	Answer    string        `json:"answer"`
	Failed    bool          `json:"failed"`
	Latency   time.Duration `json:"latency"`
	CreatedAt time.Time     `json:"created_at"`
}
