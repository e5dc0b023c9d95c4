// Package msgsource implements the byte-level source stage of the parsing
// pipeline (the ReaderParser of the original design).
package msgsource

import (
	"bufio"
	"io"

	"github.com/mailpipe/mailpipe/internal/events"
)

// Source reads bytes from an io.Reader and pushes MessageByte events
// downstream, normalizing LF-only line endings to CRLF as it goes.
//
// bufio.Reader gives us the "block-sized reads" from spec §4.1 for free:
// each Read call underneath refills a 4096-byte buffer, but callers still
// see one byte at a time, matching the original reader_parser.rs shape.
type Source struct {
	r    *bufio.Reader
	next events.Sink
}

// New returns a Source that reads from r and pushes events to next.
func New(r io.Reader, next events.Sink) *Source {
	return &Source{r: bufio.NewReader(r), next: next}
}

// Run drains the reader, pushing MessageByte events for every octet (with
// LF-only endings normalized to CRLF), then a terminal End or ParseError.
func (s *Source) Run() {
	var prev byte
	for {
		b, err := s.r.ReadByte()
		if err == io.EOF {
			s.next.Process(events.EndEvent)
			return
		}
		if err != nil {
			s.next.Process(events.NewParseError(err))
			return
		}

		if b == '\n' && prev != '\r' {
			s.next.Process(events.NewMessageByte('\r'))
		}
		prev = b
		s.next.Process(events.NewMessageByte(b))
	}
}
