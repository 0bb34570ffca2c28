package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
)

// CatalogPage is a catalog page with every labeled row and a cover image.
const CatalogPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Pride and Prejudice by Jane Austen | Project Gutenberg</title>
  <meta property="og:image" content="https://www.gutenberg.org/cache/epub/1342/pg1342.cover.medium.jpg">
</head>
<body>
<div id="cover">
  <img class="cover-art" src="https://www.gutenberg.org/cache/epub/1342/pg1342.cover.medium.jpg" alt="Book Cover">
</div>
<table class="bibrec">
  <tr><th>Author</th><td><a href="/ebooks/author/68">Austen, Jane, 1775-1817</a></td></tr>
  <tr><th>Illustrator</th><td><a href="/ebooks/author/2265">Brock, C. E.</a></td></tr>
  <tr><th>Title</th><td>Pride and Prejudice</td></tr>
  <tr><th>Summary</th><td>A witty story of love,
      manners and misunderstanding.</td></tr>
  <tr><th>Language</th><td>English</td></tr>
  <tr><th>Release Date</th><td>Jun 1, 1998</td></tr>
</table>
</body>
</html>`

// CatalogPageWithoutAuthor is a catalog page that lacks the author row and the
// primary cover element.
const CatalogPageWithoutAuthor = `<html>
<head><meta property="og:image" content="https://www.gutenberg.org/cache/epub/84/pg84.cover.medium.jpg"></head>
<body>
<table class="bibrec">
  <tr><th>Title</th><td>Frankenstein; Or, The Modern Prometheus</td></tr>
  <tr><th>Language</th><td>English</td></tr>
</table>
</body>
</html>`

// Paragraphs builds text of n paragraphs, each exactly size characters long,
// separated by a blank line.
func Paragraphs(n, size int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = strings.Repeat(string(rune('a'+i%26)), size)
	}
	return strings.Join(parts, "\n\n")
}

// DeltaFrame renders one provider stream frame carrying a content delta.
func DeltaFrame(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"delta": map[string]string{"content": content}}},
	})
	return fmt.Sprintf("data: %s\n", payload)
}

// DoneFrame is the provider end-of-stream frame.
const DoneFrame = "data: [DONE]\n"

// StreamBody concatenates delta frames for each piece followed by the sentinel.
func StreamBody(pieces ...string) string {
	var b strings.Builder
	for _, p := range pieces {
		b.WriteString(DeltaFrame(p))
	}
	b.WriteString(DoneFrame)
	return b.String()
}

// NewRequest creates a new HTTP request for testing
func NewRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	var r *http.Request
	if bodyBytes != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	return r
}

// RecordResponse records the HTTP response for testing
type RecordResponse struct {
	Code   int
	Header http.Header
	Body   map[string]interface{}
}

// RecordHTTPResponse records the HTTP response
func RecordHTTPResponse(w *httptest.ResponseRecorder) RecordResponse {
	result := w.Result()
	defer result.Body.Close()

	bodyBytes, _ := io.ReadAll(result.Body)

	var bodyMap map[string]interface{}
	if len(bodyBytes) > 0 {
		_ = json.NewDecoder(bytes.NewReader(bodyBytes)).Decode(&bodyMap)
	}

	return RecordResponse{
		Code:   result.StatusCode,
		Header: result.Header,
		Body:   bodyMap,
	}
}

// ErrorCode returns error.code from a JSON error envelope, or "".
func (r RecordResponse) ErrorCode() string {
	errBody, ok := r.Body["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errBody["code"].(string)
	return code
}
