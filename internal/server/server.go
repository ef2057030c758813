package server

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"

	"pdfrag/internal/config"
	"pdfrag/internal/models"
	"pdfrag/internal/rag"
)

const pageTitle = "PDF Question Answering"

// Querier is the part of the RAG session the handlers use
type Querier interface {
	Query(ctx context.Context, req rag.Request) (rag.Answer, error)
	Reset()
	State() rag.State
}

// Recorder keeps a durable log of exchanges
type Recorder interface {
	Record(ctx context.Context, ex models.Exchange)
	List(ctx context.Context, limit int) ([]models.Exchange, error)
}

// Settings are the chunking and sampling values of the advanced panel
type Settings struct {
	ChunkSize    int     `json:"chunk_size" validate:"gt=0"`
	ChunkOverlap int     `json:"chunk_overlap" validate:"gte=0"`
	Temperature  float64 `json:"temperature" validate:"gte=0,lte=1"`
}

type Server struct {
	cfg        *config.Config
	session    Querier
	history    Recorder
	transcript *Transcript
	markdown   goldmark.Markdown
	app        *fiber.App

	mu           sync.Mutex
	document     string
	documentName string
	settings     Settings
}

// New wires the routes. history may be nil.
func New(cfg *config.Config, session Querier, history Recorder) *Server {
	s := &Server{
		cfg:        cfg,
		session:    session,
		history:    history,
		transcript: NewTranscript(),
		markdown:   newMarkdown(),
		settings: Settings{
			ChunkSize:    cfg.RAG.ChunkSize,
			ChunkOverlap: cfg.RAG.ChunkOverlap,
			Temperature:  cfg.RAG.Temperature,
		},
	}

	s.app = fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler,
		BodyLimit:             cfg.Server.MaxUploadMB * 1024 * 1024,
		DisableStartupMessage: true,
	})
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace:  true,
		StackTraceHandler: logPanic,
	}))

	var (
		check = s.app.Group("/check")
		apiv1 = s.app.Group("/api/v1")
	)

	s.app.Get("/", s.handleIndex)
	s.app.Post("/chat", s.handleChat)
	s.app.Post("/clear", s.handleClear)

	check.Get("/healthy", handleHealthy)

	apiv1.Post("/upload", s.handleUpload)
	apiv1.Post("/query", s.handleQuery)
	apiv1.Post("/reset", s.handleReset)
	apiv1.Get("/status", s.handleStatus)
	apiv1.Get("/history", s.handleHistory)

	return s
}

func logPanic(c *fiber.Ctx, e interface{}) {
	log.Error().Interface("panic", e).Str("path", c.Path()).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Transcript() *Transcript {
	return s.transcript
}

func (s *Server) Listen(addr string) error {
	log.Info().Str("addr", addr).Msg("Starting server")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Server stopped")
	return s.app.ShutdownWithContext(ctx)
}
