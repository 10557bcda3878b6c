// Package sse parses Server-Sent Events streams as defined by the HTML
// living standard.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Event is a single Server-Sent Event.
type Event struct {
	// Event is the event type (empty means "message").
	Event string
	// Data is the event payload. Multi-line data fields are joined with \n.
	Data string
	// ID is the event ID, if the server set one.
	ID string
}

// Reader reads events from an SSE stream.
type Reader interface {
	// Next returns the next event, or io.EOF when the stream ends.
	Next() (*Event, error)
	// Close releases the underlying stream.
	Close() error
}

type reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

// NewReader wraps an SSE stream. If rc is an io.Closer, Close will close it.
func NewReader(rc io.Reader) Reader {
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	r := &reader{scanner: scanner}
	if c, ok := rc.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// Next reads lines until a blank line terminates an event. Comment lines
// (starting with ":") are skipped.
func (r *reader) Next() (*Event, error) {
	event := &Event{}
	var dataLines []string
	seenField := false

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if seenField {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseSSELine(line)
		switch field {
		case "event":
			event.Event = value
			seenField = true
		case "data":
			dataLines = append(dataLines, value)
			seenField = true
		case "id":
			event.ID = value
			seenField = true
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// Stream ended without a terminating blank line; deliver what we have.
	if seenField {
		event.Data = strings.Join(dataLines, "\n")
		return event, nil
	}

	return nil, io.EOF
}

func (r *reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// parseSSELine splits "field: value", stripping a single leading space from
// the value per the SSE spec.
func parseSSELine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}
