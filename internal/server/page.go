package server

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

type pageExchange struct {
	Question string
	Answer   template.HTML
	Failed   bool
}

type pageData struct {
	Title       string
	Document    string
	Chunks      int
	Settings    Settings
	Exchanges   []pageExchange
	Examples    []string
	MaxUploadMB int
}

// newMarkdown renders model answers; raw HTML in answers is not passed through
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
}

func renderMarkdown(md goldmark.Markdown, text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return escapeText(text)
	}
	return template.HTML(buf.String())
}

func escapeText(text string) template.HTML {
	return template.HTML(template.HTMLEscapeString(text))
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; }
.transcript { border: 1px solid #ddd; border-radius: 6px; padding: 1rem; min-height: 200px; }
.question { font-weight: bold; margin-top: 1rem; }
.answer.failed { color: #b00020; }
textarea { width: 100%; }
.examples button { margin: 0.25rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Upload a PDF and ask questions about its content.</p>
{{if .Document}}<p class="status">Loaded: {{.Document}} ({{.Chunks}} chunks)</p>{{end}}

<div class="transcript">
{{range .Exchanges}}
<div class="question">{{.Question}}</div>
<div class="answer{{if .Failed}} failed{{end}}">{{.Answer}}</div>
{{else}}
<p>No questions yet.</p>
{{end}}
</div>

<form method="post" action="/chat" enctype="multipart/form-data">
<p><label>Document (max {{.MaxUploadMB}} MB) <input type="file" name="file" accept=".pdf,.docx,.xlsx,.txt,.md"></label></p>
<details>
<summary>Advanced settings</summary>
<p><label>Chunk size <input type="number" name="chunk_size" min="1" value="{{.Settings.ChunkSize}}"></label></p>
<p><label>Chunk overlap <input type="number" name="chunk_overlap" min="0" value="{{.Settings.ChunkOverlap}}"></label></p>
<p><label>Temperature <input type="range" name="temperature" min="0" max="1" step="0.1" value="{{.Settings.Temperature}}"></label></p>
</details>
<p><textarea name="question" rows="3" placeholder="Ask a question about the document"></textarea></p>
<p><button type="submit">Submit</button></p>
<div class="examples">
<span>Examples:</span>
{{range .Examples}}<button type="submit" name="example" value="{{.}}">{{.}}</button>{{end}}
</div>
</form>

<form method="post" action="/clear"><button type="submit">Clear</button></form>
</body>
</html>
`))
