// Package sse implements minimal Server-Sent Events parsing and writing,
// shared by the OpenAI-compatible node client (reading `chat.completion.chunk`
// events) and the gateway HTTP handler (writing the Anthropic event
// stream). Grounded on digitallysavvy-go-ai's
// pkg/providerutils/streaming/sse.go (bufio.Scanner line parser, WriteEvent/
// WriteData/IsStreamDone), trimmed to the fields this gateway actually uses.
package sse

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Event is one parsed SSE event.
type Event struct {
	Event string
	Data  string
	ID    string
	Retry string
}

// Parser reads one SSE event at a time from a stream.
type Parser struct {
	scanner *bufio.Scanner
}

// NewParser wraps r with a line-oriented SSE parser. maxLine bounds a single
// buffered line (0 uses bufio's default).
func NewParser(r io.Reader, maxLine int) *Parser {
	scanner := bufio.NewScanner(r)
	if maxLine > 0 {
		scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	}
	return &Parser{scanner: scanner}
}

// Next returns the next event, or io.EOF when the stream ends cleanly.
func (p *Parser) Next() (Event, error) {
	var ev Event
	var dataLines []string
	sawAny := false

	for p.scanner.Scan() {
		line := p.scanner.Text()
		if line == "" {
			if sawAny {
				ev.Data = strings.Join(dataLines, "\n")
				return ev, nil
			}
			continue
		}
		sawAny = true
		switch {
		case strings.HasPrefix(line, "event:"):
			ev.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "id:"):
			ev.ID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "retry:"):
			ev.Retry = strings.TrimSpace(strings.TrimPrefix(line, "retry:"))
		case strings.HasPrefix(line, ":"):
			// comment line, ignored
		}
	}

	if err := p.scanner.Err(); err != nil {
		return Event{}, err
	}
	if sawAny {
		ev.Data = strings.Join(dataLines, "\n")
		return ev, nil
	}
	return Event{}, io.EOF
}

// IsDone reports whether data is the `[DONE]` sentinel OpenAI-compatible
// servers send to terminate a stream.
func IsDone(data string) bool {
	return strings.TrimSpace(data) == "[DONE]"
}

// Writer writes Anthropic-style named SSE events to an http.ResponseWriter,
// flushing after every event so first-token latency isn't buffered.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter wraps w. Returns an error if w doesn't support flushing.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("sse: response writer does not support flushing")
	}
	return &Writer{w: w, flusher: f}, nil
}

// WriteNamedEvent writes one `event: name` / `data: payload` pair.
func (w *Writer) WriteNamedEvent(name, payload string) error {
	if _, err := fmt.Fprintf(w.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

// WriteDone writes the `[DONE]` sentinel as a bare data event.
func (w *Writer) WriteDone() error {
	if _, err := fmt.Fprintf(w.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}
