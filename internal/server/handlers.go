package server

import (
	"context"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"pdfrag/internal/helper"
	"pdfrag/internal/models"
	"pdfrag/internal/rag"
)

type QueryParams struct {
	Source       string   `json:"source"`
	Question     string   `json:"question"`
	ChunkSize    *int     `json:"chunk_size" validate:"omitempty,gt=0"`
	ChunkOverlap *int     `json:"chunk_overlap" validate:"omitempty,gte=0"`
	Temperature  *float64 `json:"temperature" validate:"omitempty,gte=0,lte=1"`
}

type Source struct {
	Page    int     `json:"page"`
	ChunkID int     `json:"chunk_id"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

type QueryResponse struct {
	Answer    string    `json:"answer"`
	Sources   []Source  `json:"sources"`
	Rebuilt   bool      `json:"rebuilt"`
	Error     bool      `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

type StatusResponse struct {
	Loaded bool   `json:"loaded"`
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

func handleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": "ok"})
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	s.mu.Lock()
	data := pageData{
		Title:       pageTitle,
		Settings:    s.settings,
		Examples:    models.ExampleQuestions,
		MaxUploadMB: s.cfg.Server.MaxUploadMB,
	}
	document, documentName := s.document, s.documentName
	s.mu.Unlock()

	if ready, ok := s.session.State().(rag.Ready); ok {
		data.Document = filepath.Base(ready.SourceID)
		if ready.SourceID == document {
			data.Document = documentName
		}
		data.Chunks = ready.ChunkCount
	}

	for _, ex := range s.transcript.All() {
		pe := pageExchange{Question: ex.Question, Failed: ex.Failed}
		if ex.Failed {
			pe.Answer = escapeText(ex.Answer)
		} else {
			pe.Answer = renderMarkdown(s.markdown, ex.Answer)
		}
		data.Exchanges = append(data.Exchanges, pe)
	}

	var body strings.Builder
	if err := pageTemplate.Execute(&body, data); err != nil {
		return err
	}
	c.Type("html", "utf-8")
	return c.SendString(body.String())
}

// handleChat runs one turn of the web form and redirects back to the page
func (s *Server) handleChat(c *fiber.Ctx) error {
	ctx := c.UserContext()

	question := strings.TrimSpace(c.FormValue("question"))
	if question == "" {
		question = strings.TrimSpace(c.FormValue("example"))
	}

	// keep the upload even when the settings below are rejected
	if fh, err := c.FormFile("file"); err == nil {
		path, err := s.saveUpload(c, fh)
		if err != nil {
			s.addExchange(ctx, failedExchange(fh.Filename, question, UserMessage(err)))
			return c.Redirect("/", fiber.StatusSeeOther)
		}
		s.mu.Lock()
		s.document, s.documentName = path, fh.Filename
		s.mu.Unlock()
	}

	settings, err := s.formSettings(c)
	if err != nil {
		s.addExchange(ctx, failedExchange("", question, err.Error()))
		return c.Redirect("/", fiber.StatusSeeOther)
	}

	s.mu.Lock()
	s.settings = settings
	source := s.document
	s.mu.Unlock()

	ex, _, _ := s.ask(ctx, rag.Request{
		Source:       source,
		Question:     question,
		ChunkSize:    settings.ChunkSize,
		ChunkOverlap: settings.ChunkOverlap,
		Temperature:  settings.Temperature,
	})
	s.transcript.Add(ex)
	return c.Redirect("/", fiber.StatusSeeOther)
}

// handleClear empties the transcript. The index is kept.
func (s *Server) handleClear(c *fiber.Ctx) error {
	s.transcript.Clear()
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return NewError(fiber.StatusBadRequest, "file is required")
	}
	path, err := s.saveUpload(c, fh)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"source":   filepath.Base(path),
		"filename": fh.Filename,
	})
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	var params QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := validateParams(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	req := rag.Request{
		Question:     params.Question,
		ChunkSize:    s.cfg.RAG.ChunkSize,
		ChunkOverlap: s.cfg.RAG.ChunkOverlap,
		Temperature:  s.cfg.RAG.Temperature,
	}
	if params.Source != "" {
		req.Source = filepath.Join(s.cfg.Server.UploadDir, filepath.Base(params.Source))
	}
	if params.ChunkSize != nil {
		req.ChunkSize = *params.ChunkSize
	}
	if params.ChunkOverlap != nil {
		req.ChunkOverlap = *params.ChunkOverlap
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}

	ex, answer, err := s.ask(c.UserContext(), req)
	resp := QueryResponse{
		Answer:    ex.Answer,
		Rebuilt:   answer.Rebuilt,
		Error:     err != nil,
		Timestamp: ex.CreatedAt,
		Sources:   make([]Source, 0, len(answer.Sources)),
	}
	for _, hit := range answer.Sources {
		resp.Sources = append(resp.Sources, Source{
			Page:    hit.Chunk.PageNumber,
			ChunkID: hit.Chunk.ChunkID,
			Content: hit.Chunk.Content,
			Score:   hit.Score,
		})
	}
	return c.JSON(resp)
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	s.session.Reset()
	return c.JSON(fiber.Map{"result": "ok"})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	var resp StatusResponse
	if ready, ok := s.session.State().(rag.Ready); ok {
		resp = StatusResponse{
			Loaded: true,
			Source: filepath.Base(ready.SourceID),
			Chunks: ready.ChunkCount,
		}
	}
	return c.JSON(resp)
}

const defaultHistoryLimit = 50

// handleHistory lists past exchanges from the durable log, or from the
// transcript when no database is configured
func (s *Server) handleHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		return NewError(fiber.StatusBadRequest, "limit must be positive")
	}

	if s.history != nil {
		exchanges, err := s.history.List(c.UserContext(), limit)
		if err != nil {
			return err
		}
		return c.JSON(exchanges)
	}

	exchanges := s.transcript.All()
	// newest first, like the database listing
	out := make([]models.Exchange, 0, min(limit, len(exchanges)))
	for i := len(exchanges) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, exchanges[i])
	}
	return c.JSON(out)
}

// ask runs the query and turns the outcome into an exchange. Failures are
// never returned to fiber; they become the answer text.
func (s *Server) ask(ctx context.Context, req rag.Request) (models.Exchange, rag.Answer, error) {
	start := time.Now()
	answer, err := s.session.Query(ctx, req)

	source := ""
	if req.Source != "" {
		source = filepath.Base(req.Source)
	}
	ex := models.Exchange{
		Source:    source,
		Question:  req.Question,
		Answer:    answer.Text,
		Latency:   time.Since(start),
		CreatedAt: start,
	}
	if err != nil {
		log.Warn().Err(err).Str("source", source).Msg("Query failed")
		ex.Answer = UserMessage(err)
		ex.Failed = true
	}

	s.record(ctx, &ex)
	return ex, answer, err
}

func (s *Server) addExchange(ctx context.Context, ex models.Exchange) {
	s.record(ctx, &ex)
	s.transcript.Add(ex)
}

func (s *Server) record(ctx context.Context, ex *models.Exchange) {
	if ex.ID == "" {
		id, err := helper.GenerateUUID()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to generate exchange id")
		}
		ex.ID = id
	}
	if s.history != nil {
		s.history.Record(ctx, *ex)
	}
}

func failedExchange(source, question, msg string) models.Exchange {
	return models.Exchange{
		Source:    source,
		Question:  question,
		Answer:    msg,
		Failed:    true,
		CreatedAt: time.Now(),
	}
}

// formSettings reads the advanced panel; empty fields keep the last values
func (s *Server) formSettings(c *fiber.Ctx) (Settings, error) {
	s.mu.Lock()
	settings := s.settings
	s.mu.Unlock()

	if v := strings.TrimSpace(c.FormValue("chunk_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return settings, fmt.Errorf("invalid chunk size %q", v)
		}
		settings.ChunkSize = n
	}
	if v := strings.TrimSpace(c.FormValue("chunk_overlap")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return settings, fmt.Errorf("invalid chunk overlap %q", v)
		}
		settings.ChunkOverlap = n
	}
	if v := strings.TrimSpace(c.FormValue("temperature")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return settings, fmt.Errorf("invalid temperature %q", v)
		}
		settings.Temperature = f
	}

	if errs := validateParams(&settings); len(errs) > 0 {
		return settings, fmt.Errorf("invalid settings: %v", errs)
	}
	return settings, nil
}

// saveUpload stores the file under its content hash so that uploading the
// same bytes again yields the same source id
func (s *Server) saveUpload(c *fiber.Ctx, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", &models.LoadError{Path: fh.Filename, Err: err}
	}
	hash, err := helper.ContentHash(f)
	f.Close()
	if err != nil {
		return "", &models.LoadError{Path: fh.Filename, Err: err}
	}

	if err := helper.CreateFolder(s.cfg.Server.UploadDir); err != nil {
		return "", &models.LoadError{Path: fh.Filename, Err: err}
	}

	path := filepath.Join(s.cfg.Server.UploadDir, hash+strings.ToLower(filepath.Ext(fh.Filename)))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := c.SaveFile(fh, path); err != nil {
		return "", &models.LoadError{Path: fh.Filename, Err: err}
	}

	log.Info().Str("file", fh.Filename).Str("path", path).Int64("bytes", fh.Size).Msg("Saved upload")
	return path, nil
}
