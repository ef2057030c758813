package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pdfrag/internal/chromemdb"
	"pdfrag/internal/config"
	"pdfrag/internal/db"
	"pdfrag/internal/embedding"
	"pdfrag/internal/helper"
	"pdfrag/internal/llmservice"
	"pdfrag/internal/models"
	"pdfrag/internal/parser"
	"pdfrag/internal/rag"
	"pdfrag/internal/server"
)

const (
	configFilePath  = "./configs/config.yaml"
	shutdownTimeout = 10 * time.Second
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to the document file")
	query := flag.String("query", "", "Query to be answered")
	resetHistory := flag.Bool("reset-history", false, "Drop the stored exchange log before serving")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	session := newSession(cfg)

	if *filePath != "" || *query != "" {
		if *filePath == "" || *query == "" {
			log.Fatal().Msg("Please provide both a document file using the -file flag and a query using the -query flag")
		}
		performRAG(context.Background(), session, cfg, *filePath, *query)
		return
	}

	serve(cfg, session, *resetHistory)
}

func newSession(cfg *config.Config) *rag.Session {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	llm, err := llmservice.NewChatModel(&cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing chat model")
	}

	if cfg.LLM.CountPromptTokens {
		if err := helper.WarmTokenEncoding(); err != nil {
			log.Warn().Err(err).Msg("Prompt tokens will be estimated")
		}
	}

	synthesizer := rag.NewSynthesizer(llm,
		rag.WithNotFoundMessage(cfg.RAG.NotFoundMessage),
		rag.WithTokenCount(cfg.LLM.CountPromptTokens),
	)

	return rag.NewSession(
		parser.NewFileParser(),
		embedder,
		chromemdb.BuilderFunc(chromemdb.Build),
		synthesizer,
		rag.Options{TopK: cfg.RAG.TopK, Separators: cfg.RAG.Separators},
	)
}

func performRAG(ctx context.Context, session *rag.Session, cfg *config.Config, filePath, query string) {
	answer, err := session.Query(ctx, rag.Request{
		Source:       filePath,
		Question:     query,
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
		Temperature:  cfg.RAG.Temperature,
	})
	if err != nil {
		log.Fatal().Err(err).Msg(server.UserMessage(err))
	}

	response := models.PromptResponse{
		Query:   query,
		Source:  filepath.Base(filePath),
		Content: answer.Text,
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Source)
	helper.PrettyPrint(answer.Sources)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}

func serve(cfg *config.Config, session *rag.Session, resetHistory bool) {
	if err := helper.CreateFolder(cfg.Server.UploadDir); err != nil {
		log.Fatal().Err(err).Msg("Error creating upload folder")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var history server.Recorder
	if cfg.Database.DSN != "" {
		dbClient, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Error connecting to database")
		}
		dbInstance := db.NewDB(dbClient, cfg.Database.Debug)
		defer dbInstance.Close()

		if resetHistory {
			if err := db.DropExchanges(ctx, dbInstance); err != nil {
				log.Fatal().Err(err).Msg("Error clearing exchanges")
			}
		}

		if err := db.InitDB(ctx, dbInstance); err != nil {
			log.Fatal().Err(err).Msg("Error initializing database")
		}
		history = db.NewHistory(dbInstance)
	}

	srv := server.New(cfg, session, history)
	addr := cfg.Server.ListenAddr()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("Error starting server")
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down server")
		}
	}
}
