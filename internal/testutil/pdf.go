// Package testutil builds document fixtures for tests.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/require"
)

// WritePDF writes one PDF page per entry of pages into dir. Lines of a page
// are written as separate cells, each ending with a space so that extracted
// text keeps word boundaries. An empty entry produces a blank page.
func WritePDF(t testing.TB, dir, name string, pages []string) string {
	t.Helper()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 11)
	for _, page := range pages {
		doc.AddPage()
		if page == "" {
			continue
		}
		for _, line := range strings.Split(page, "\n") {
			doc.Cell(0, 6, line+" ")
			doc.Ln(6)
		}
	}

	path := filepath.Join(dir, name)
	require.NoError(t, doc.OutputFileAndClose(path))
	return path
}

// WriteMalformedPDF writes a PDF whose header and xref table are intact but
// whose object headers are not, so reading any object fails.
func WriteMalformedPDF(t testing.TB, dir, name string, pages []string) string {
	t.Helper()

	path := WritePDF(t, dir, name, pages)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// same length, so the xref offsets still point at the broken headers
	broken := bytes.ReplaceAll(data, []byte(" 0 obj"), []byte(" 0 xxx"))
	require.NoError(t, os.WriteFile(path, broken, 0o644))
	return path
}
