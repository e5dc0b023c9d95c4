// Package scanner implements the byte-level state machine that turns a
// stream of MessageByte events into HeaderName, HeaderValue, EndOfHeaders
// and BodyChunk events. It is the Go counterpart of the original design's
// MessageScanner.
package scanner

import (
	"errors"

	"github.com/mailpipe/mailpipe/internal/events"
)

// ErrUnexpectedByte is wrapped into the ParseError event emitted when a
// byte arrives in a state that admits none.
var ErrUnexpectedByte = errors.New("scanner: unexpected byte")

// ErrUnexpectedEnd is wrapped into the ParseError event emitted when the
// stream ends in a state that doesn't admit a clean termination.
var ErrUnexpectedEnd = errors.New("scanner: unexpected end of stream")

// DefaultChunkSize is the tunable body chunk size. Boundaries it creates
// carry no semantic meaning downstream (spec §4.2).
const DefaultChunkSize = 2048

type state int

const (
	stateHeaderName state = iota
	stateHeaderValue
	stateEndOfHeader
	stateStartHeaderLine
	stateEndOfHeaderSection
	stateBody
	stateDone
)

// Scanner is the byte-to-token stage of the pipeline.
//
// Alongside the semantic value buffer (buf, used for the HeaderValue text
// that the spec describes: leading whitespace elided, fold CRLFs
// collapsed), it keeps a second buffer, rawBuf, that records every wire
// byte contributing to the current header's value: the elided leading
// whitespace, the internal CRLFs of folded lines, and the final CRLF that
// terminates the header. HeaderValue events carry both: Text is the
// semantic value, Raw is the untouched wire bytes. The header assembler
// downstream needs the latter to reconstruct a byte-exact Header.Raw,
// which simple-header DKIM canonicalization depends on (spec §4.3).
type Scanner struct {
	next      events.Sink
	state     state
	buf       []byte
	rawBuf    []byte
	chunkSize int
}

// New returns a Scanner that pushes events to next, using the default
// chunk size.
func New(next events.Sink) *Scanner {
	return NewWithChunkSize(next, DefaultChunkSize)
}

// NewWithChunkSize is like New but lets the caller tune the body chunk
// size (a pure performance knob; see pconfig).
func NewWithChunkSize(next events.Sink, chunkSize int) *Scanner {
	return &Scanner{
		next:      next,
		state:     stateHeaderName,
		buf:       make([]byte, 0, chunkSize),
		chunkSize: chunkSize,
	}
}

// Process consumes one upstream event. Only MessageByte and End/ParseError
// are meaningful here; anything else is a programmer error upstream and is
// forwarded as-is (there is no other legitimate producer feeding a
// Scanner).
func (s *Scanner) Process(e events.Event) {
	switch e.Kind {
	case events.MessageByte:
		s.processByte(e.Byte)
	case events.End:
		s.processEnd()
	case events.ParseError:
		s.fail(e.Err)
	default:
		s.next.Process(e)
	}
}

func isWSP(b byte) bool { return b == ' ' || b == '\t' }

func (s *Scanner) processByte(b byte) {
	switch s.state {
	case stateHeaderName:
		s.parseHeaderName(b)
	case stateHeaderValue:
		s.parseHeaderValue(b)
	case stateEndOfHeader:
		s.parseEndOfHeader(b)
	case stateStartHeaderLine:
		s.parseStartHeaderLine(b)
	case stateEndOfHeaderSection:
		s.parseEndOfHeaderSection(b)
	case stateBody:
		s.parseBody(b)
	case stateDone:
		// Pipeline already terminated; ignore stray bytes.
	}
}

func (s *Scanner) parseHeaderName(b byte) {
	if b == ':' {
		name := string(s.buf) + ":"
		s.buf = s.buf[:0]
		s.next.Process(events.NewHeaderName(name))
		s.state = stateHeaderValue
		return
	}
	s.buf = append(s.buf, b)
}

func (s *Scanner) parseHeaderValue(b byte) {
	switch {
	case b == ' ' && len(s.buf) == 0:
		// Leading-WSP elision: dropped from the semantic value, but it
		// was still on the wire.
		s.rawBuf = append(s.rawBuf, b)
	case b == '\r':
		s.rawBuf = append(s.rawBuf, b)
		s.state = stateEndOfHeader
	case b == '\n':
		s.rawBuf = append(s.rawBuf, b)
		s.state = stateStartHeaderLine
	default:
		s.buf = append(s.buf, b)
		s.rawBuf = append(s.rawBuf, b)
	}
}

func (s *Scanner) parseEndOfHeader(b byte) {
	if b == '\n' {
		s.rawBuf = append(s.rawBuf, b)
		s.state = stateStartHeaderLine
		return
	}
	s.fail(ErrUnexpectedByte)
}

func (s *Scanner) parseStartHeaderLine(b byte) {
	switch {
	case b == '\r':
		s.flushHeaderValue()
		s.state = stateEndOfHeaderSection
	case b == '\n':
		s.flushHeaderValue()
		s.next.Process(events.EndOfHeadersEvent)
		s.state = stateBody
	case isWSP(b):
		// Folded continuation line: keep the byte verbatim, no inserted
		// space. The CRLF that brought us here is already in rawBuf; it
		// stays, since it's part of this header's wire bytes.
		s.buf = append(s.buf, b)
		s.rawBuf = append(s.rawBuf, b)
		s.state = stateHeaderValue
	default:
		s.flushHeaderValue()
		s.buf = append(s.buf, b)
		s.state = stateHeaderName
	}
}

func (s *Scanner) flushHeaderValue() {
	value := string(s.buf)
	raw := make([]byte, len(s.rawBuf))
	copy(raw, s.rawBuf)
	s.buf = s.buf[:0]
	s.rawBuf = s.rawBuf[:0]
	s.next.Process(events.Event{Kind: events.HeaderValue, Text: value, Raw: raw})
}

func (s *Scanner) parseEndOfHeaderSection(b byte) {
	if b == '\n' {
		s.next.Process(events.EndOfHeadersEvent)
		s.state = stateBody
		return
	}
	s.fail(ErrUnexpectedByte)
}

func (s *Scanner) parseBody(b byte) {
	s.buf = append(s.buf, b)
	if len(s.buf) >= s.chunkSize {
		s.emitBodyChunk()
	}
}

func (s *Scanner) emitBodyChunk() {
	chunk := make([]byte, len(s.buf))
	copy(chunk, s.buf)
	s.buf = s.buf[:0]
	s.next.Process(events.NewBodyChunk(chunk))
}

func (s *Scanner) processEnd() {
	switch s.state {
	case stateBody:
		if len(s.buf) > 0 {
			s.emitBodyChunk()
		}
		s.state = stateDone
		s.next.Process(events.EndEvent)
	case stateEndOfHeaderSection:
		s.state = stateDone
		s.next.Process(events.EndEvent)
	case stateDone:
		s.next.Process(events.EndEvent)
	default:
		s.fail(ErrUnexpectedEnd)
	}
}

func (s *Scanner) fail(err error) {
	if s.state == stateDone {
		return
	}
	s.state = stateDone
	if err == nil {
		err = ErrUnexpectedByte
	}
	s.next.Process(events.NewParseError(err))
}
