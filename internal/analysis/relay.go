package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultFlushThreshold is the buffered length, in characters, past which a
// segment is flushed even without sentence-final punctuation.
const DefaultFlushThreshold = 80

const sentinel = "[DONE]"

var dataMarker = []byte("data:")

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Relay turns a provider's server-sent event body into readable text
// segments. It performs no I/O; feed it bytes as they arrive.
type Relay struct {
	pending   []byte
	out       strings.Builder
	threshold int
	malformed int
	done      bool
}

func NewRelay(threshold int) *Relay {
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	return &Relay{threshold: threshold}
}

// Feed appends p to the frame buffer, consumes every complete line and
// returns the segments that became ready. An incomplete trailing line is
// kept for the next call. Input after the end-of-stream sentinel is ignored.
func (r *Relay) Feed(p []byte) []string {
	if r.done {
		return nil
	}
	r.pending = append(r.pending, p...)

	var segments []string
	for !r.done {
		i := bytes.IndexByte(r.pending, '\n')
		if i < 0 {
			break
		}
		line := r.pending[:i]
		r.pending = r.pending[i+1:]
		if seg, ok := r.consume(line); ok {
			segments = append(segments, seg)
		}
	}
	if len(r.pending) == 0 || r.done {
		r.pending = nil
	}
	return segments
}

// Flush consumes any unterminated final line and returns what is left in
// the output buffer. Call it once the upstream body is exhausted.
func (r *Relay) Flush() (string, bool) {
	if len(r.pending) > 0 {
		line := r.pending
		r.pending = nil
		r.consume(line)
	}
	if r.out.Len() == 0 {
		return "", false
	}
	s := r.out.String()
	r.out.Reset()
	return s, true
}

// Malformed reports how many payload frames failed to parse.
func (r *Relay) Malformed() int {
	return r.malformed
}

// Done reports whether the end-of-stream sentinel was seen.
func (r *Relay) Done() bool {
	return r.done
}

func (r *Relay) consume(line []byte) (string, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	payload, ok := bytes.CutPrefix(line, dataMarker)
	if !ok {
		// blank separators, comments, event: and id: fields
		return "", false
	}
	payload = bytes.TrimPrefix(payload, []byte{' '})
	if string(bytes.TrimSpace(payload)) == sentinel {
		r.done = true
		return "", false
	}

	var chunk streamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		r.malformed++
		return "", false
	}
	if len(chunk.Choices) == 0 {
		return "", false
	}
	r.out.WriteString(chunk.Choices[0].Delta.Content)

	if !r.ready() {
		return "", false
	}
	s := r.out.String()
	r.out.Reset()
	return s, true
}

func (r *Relay) ready() bool {
	s := r.out.String()
	trimmed := strings.TrimRightFunc(s, unicode.IsSpace)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	}
	return utf8.RuneCountInString(s) > r.threshold
}

// Segments reads src until the end-of-stream sentinel or EOF and yields each
// segment as soon as it is ready. A read error is yielded once and ends the
// sequence without flushing the partial buffer.
func (r *Relay) Segments(src io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		buf := make([]byte, 4096)
		for {
			n, err := src.Read(buf)
			if n > 0 {
				for _, seg := range r.Feed(buf[:n]) {
					if !yield(seg, nil) {
						return
					}
				}
			}
			if r.done || errors.Is(err, io.EOF) {
				if seg, ok := r.Flush(); ok {
					yield(seg, nil)
				}
				return
			}
			if err != nil {
				yield("", err)
				return
			}
		}
	}
}
