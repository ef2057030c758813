package helper

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	return id.String(), nil
}

// pretty print
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Msg("Error pretty printing")
	}
	fmt.Println(string(b))
}

// CreateFolder creates the folder and its parents if missing
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// ContentHash returns the hex sha256 of everything read from r
func ContentHash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// tokenEncoder loads its encoding once and estimates when loading failed
type tokenEncoder struct {
	once sync.Once
	load func() (*tiktoken.Tiktoken, error)
	enc  *tiktoken.Tiktoken
	err  error
}

func (e *tokenEncoder) warm() error {
	e.once.Do(func() {
		e.enc, e.err = e.load()
		if e.err != nil {
			log.Warn().Err(e.err).Msg("Token encoding unavailable, estimating")
		}
	})
	return e.err
}

func (e *tokenEncoder) count(text string) int {
	if err := e.warm(); err != nil {
		return estimateTokens(text)
	}
	return len(e.enc.Encode(text, nil, nil))
}

var promptEncoder = &tokenEncoder{
	load: func() (*tiktoken.Tiktoken, error) {
		return tiktoken.EncodingForModel("gpt-3.5-turbo")
	},
}

// WarmTokenEncoding fetches the cl100k tables ahead of the first
// CountTokens call so the fetch does not happen inside a query.
func WarmTokenEncoding() error {
	return promptEncoder.warm()
}

// CountTokens counts prompt tokens with the cl100k encoding. When the
// tables cannot be fetched the count is estimated at four characters per
// token.
func CountTokens(text string) int {
	return promptEncoder.count(text)
}

func estimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}
