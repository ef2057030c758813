package server

import (
	"sync"

	"pdfrag/internal/models"
)

// Transcript is the chat history shown on the page. It lives only in memory.
type Transcript struct {
	mu        sync.RWMutex
	exchanges []models.Exchange
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

func (t *Transcript) Add(ex models.Exchange) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exchanges = append(t.exchanges, ex)
}

// All returns a copy in insertion order
func (t *Transcript) All() []models.Exchange {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.Exchange, len(t.exchanges))
	copy(out, t.exchanges)
	return out
}

func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exchanges = nil
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.exchanges)
}
