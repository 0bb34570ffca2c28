package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"booklens/internal/book"
)

// DefaultChunkSize keeps a chunk plus its prompt inside the analysis model's
// context window.
const DefaultChunkSize = 26000

const paragraphSeparator = "\n\n"

var blankLines = regexp.MustCompile(`\n\s*\n`)

// Paragraphs splits text on runs of blank lines and drops empty paragraphs.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range blankLines.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Split groups paragraphs into chunks of at most maxChars characters,
// counting the blank-line separators between them. A paragraph longer than
// maxChars is emitted whole as its own chunk.
func Split(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultChunkSize
	}

	var (
		chunks  []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, p := range Paragraphs(text) {
		n := utf8.RuneCountInString(p)
		if size > 0 && size+len(paragraphSeparator)+n > maxChars {
			flush()
		}
		if size > 0 {
			current.WriteString(paragraphSeparator)
			size += len(paragraphSeparator)
		}
		current.WriteString(p)
		size += n
	}
	flush()
	return chunks
}

// ChunksFor numbers texts 1..N for the referenced book.
func ChunksFor(ref book.Ref, texts []string) ([]book.Chunk, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	out := make([]book.Chunk, len(texts))
	for i, t := range texts {
		out[i] = book.Chunk{BookID: ref.ID, Order: i + 1, Text: t}
	}
	return out, nil
}
