package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"pdfrag/internal/models"
)

// ErrNoText is wrapped in a LoadError when nothing could be extracted
var ErrNoText = errors.New("no extractable text in document")

// SupportedExtensions lists the file types Load accepts
var SupportedExtensions = []string{".pdf", ".docx", ".xlsx", ".txt", ".md"}

type Parser interface {
	Load(ctx context.Context, filePath string) ([]models.Page, error)
}

// FileParser loads page text from a file on disk
type FileParser struct{}

func NewFileParser() *FileParser {
	return &FileParser{}
}

// Load extracts the non-blank pages of a document. Any failure is returned
// as a *models.LoadError carrying the underlying message.
func (p *FileParser) Load(ctx context.Context, filePath string) ([]models.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.LoadError{Path: filePath, Err: err}
	}

	var (
		pages []models.Page
		err   error
	)
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		pages, err = loadPDF(filePath)
	case ".docx":
		pages, err = loadDOCX(filePath)
	case ".xlsx":
		pages, err = loadXLSX(filePath)
	case ".txt", ".md":
		pages, err = loadText(filePath)
	default:
		err = fmt.Errorf("unsupported file format %q, expected one of %s", ext, strings.Join(SupportedExtensions, ", "))
	}
	if err != nil {
		return nil, &models.LoadError{Path: filePath, Err: err}
	}

	pages = dropBlankPages(pages)
	if len(pages) == 0 {
		return nil, &models.LoadError{Path: filePath, Err: ErrNoText}
	}

	log.Info().Str("file", filepath.Base(filePath)).Int("pages", len(pages)).Msg("Loaded document")
	return pages, nil
}

// loadPDF recovers the panics the pdf reader raises on malformed objects
func loadPDF(filePath string) (pages []models.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	// fonts are shared between pages, so parse each one once
	fonts := make(map[string]*pdf.Font)
	numPages := reader.NumPage()
	pages = make([]models.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, models.Page{Number: i, Text: pageText})
	}
	return pages, nil
}

func loadDOCX(filePath string) ([]models.Page, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	text := extractTextFromXML(r.Editable().GetContent())
	// DOCX has no page numbers
	return []models.Page{{Number: 1, Text: text}}, nil
}

func loadXLSX(filePath string) ([]models.Page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		if len(rows) == 0 {
			continue
		}
		pages = append(pages, models.Page{Number: sheetNum + 1, Text: text.String()})
	}
	return pages, nil
}

func loadText(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return []models.Page{{Number: 1, Text: string(data)}}, nil
}

var (
	paragraphEndRe = regexp.MustCompile(`</w:p>`)
	textRunRe      = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
	xmlEntities    = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")
)

// extractTextFromXML keeps the text runs of a word document, one line per paragraph
func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	for _, paragraph := range paragraphEndRe.Split(xmlContent, -1) {
		var line strings.Builder
		for _, m := range textRunRe.FindAllStringSubmatch(paragraph, -1) {
			line.WriteString(xmlEntities.Replace(m[1]))
		}
		if line.Len() == 0 {
			continue
		}
		text.WriteString(line.String())
		text.WriteString("\n")
	}
	return text.String()
}

func dropBlankPages(pages []models.Page) []models.Page {
	kept := pages[:0]
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		kept = append(kept, page)
	}
	return kept
}
