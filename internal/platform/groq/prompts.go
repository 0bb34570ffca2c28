package groq

import (
	"errors"
	"fmt"
	"strings"
)

// SystemInstruction scopes every conversation to books.
const SystemInstruction = "You are a helpful assistant that only discusses books related topics."

// Kind names one of the analyses the service offers.
type Kind string

const (
	KindCharacters Kind = "characters"
	KindLanguage   Kind = "language"
	KindSummary    Kind = "summary"
)

var ErrUnknownKind = errors.New("unknown analysis kind")

var templates = map[Kind]string{
	KindCharacters: "Analyze the following text and identify the key characters. For each character, provide their name, personality concisely, and a very brief description of their role in the story:\n\n",
	KindLanguage:   "Analyze the following text and identify the language it's written in. If possible, also mention any distinct linguistic features or dialects:\n\n",
	KindSummary:    "Provide a concise summary of the following text, highlighting the main plot points and key events:\n\n",
}

const chunkSummaryTemplate = "Provide a summary of the following part of a book, be very concise and very thorough:\n\n"

// Kinds lists the supported analyses in a stable order.
func Kinds() []Kind {
	return []Kind{KindCharacters, KindLanguage, KindSummary}
}

// ParseKind validates a user-supplied analysis name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := templates[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Prompt interpolates text into the analysis template.
func (k Kind) Prompt(text string) string {
	return templates[k] + text
}

// ChunkSummaryPrompt asks for a condensed summary of one part of a book.
func ChunkSummaryPrompt(text string) string {
	return chunkSummaryTemplate + text
}
