package models

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultTopK         = 6
	DefaultTemperature  = 0.0

	DefaultNotFoundMessage = "The provided document does not contain that information."
)

// DefaultSeparators are tried in order; the empty string splits per character
var DefaultSeparators = []string{"\n\n", "\n", ".", " ", ""}

var (
	AnswerPromptTemplate = `Answer the question accurately using only the context below.
If the context does not contain the information needed, reply exactly with: "{{.not_found}}"

<context>
{{.context}}
</context>

Question: {{.question}}

Answer:`

	ExampleQuestions = []string{
		"Summarize the main points of the document.",
		"What is the most important takeaway in this document?",
		"List the main procedures or steps described in the document.",
	}
)
