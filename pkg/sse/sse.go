// package sse provides SSE (server-sent-event) parsing.
package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultEvent is the event name assumed when the server omits
// the event field, per the SSE specification.
const DefaultEvent = "message"

// maxLineSize bounds a single field line; data payloads from the
// agent endpoint can carry whole result sets.
const maxLineSize = 1024 * 1024

// Event is an event sent from the server.
type Event struct {
	// The name of the event.
	Event string `json:"event"`
	// The payload.
	Data string `json:"data"`
	// The ID of the event.
	ID string `json:"id"`
	// Reconnection delay in milliseconds, zero if unset.
	Retry int `json:"retry,omitempty"`
}

// Scanner offers the functionality to receive events from
// the input.
type Scanner struct {
	scanner *bufio.Scanner
}

// NewScanner creates a new scanner instance.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxLineSize)
	return &Scanner{scanner: s}
}

// Scan reads a new event from the input. It returns
// nil with io.EOF error if it reaches to the end.
func (s *Scanner) Scan() (*Event, error) {
	ev := &Event{Event: DefaultEvent}
	var err error
	var read1 bool
	var dataLines []string
	for s.scanner.Scan() {
		l := s.scanner.Text()
		if l == "" {
			if read1 {
				break
			}
			// empty block before any field; keep reading.
			continue
		}
		colonPos := strings.Index(l, ":")
		if colonPos < 0 {
			// A line without a colon is a field with an empty value.
			colonPos = len(l)
			l += ":"
		}
		if colonPos == 0 {
			// comment.
			continue
		}
		read1 = true
		tag := l[:colonPos]
		data := strings.TrimPrefix(l[(colonPos+1):], " ")
		switch tag {
		case "event":
			ev.Event = data
		case "data":
			dataLines = append(dataLines, data)
		case "id":
			ev.ID = data
		case "retry":
			retry, perr := strconv.Atoi(data)
			if perr != nil {
				err = errors.Join(err, fmt.Errorf("malformed retry field: %q", data))
				continue
			}
			ev.Retry = retry
		default:
			// ignore others.
		}
	}
	if serr := s.scanner.Err(); serr != nil {
		return nil, serr
	}
	if !read1 {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	ev.Data = strings.Join(dataLines, "\n")
	return ev, nil
}
