package models

import (
	"errors"
	"fmt"
)

var (
	ErrNoDocument    = errors.New("no document uploaded")
	ErrEmptyQuestion = errors.New("question is empty")
)

// ConfigurationError is fatal and only raised at startup
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// LoadError reports a document that is missing, unreadable or has no text
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ChunkingConfigError rejects a size/overlap pair the splitter cannot honor
type ChunkingConfigError struct {
	Size    int
	Overlap int
}

func (e *ChunkingConfigError) Error() string {
	return fmt.Sprintf("invalid chunking config: chunk_size=%d chunk_overlap=%d (need chunk_size > chunk_overlap >= 0)", e.Size, e.Overlap)
}

type EmbeddingServiceError struct {
	Err error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service: %v", e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

type CompletionServiceError struct {
	Err error
}

func (e *CompletionServiceError) Error() string {
	return fmt.Sprintf("completion service: %v", e.Err)
}

func (e *CompletionServiceError) Unwrap() error { return e.Err }
