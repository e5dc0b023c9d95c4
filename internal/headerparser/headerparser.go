// Package headerparser implements the header-assembly stage: it pairs
// HeaderName/HeaderValue events into Header events while forwarding
// everything unchanged. This is the Go counterpart of the original
// design's HeaderParser.
package headerparser

import (
	"errors"
	"strings"

	"github.com/mailpipe/mailpipe/internal/events"
)

// ErrUnexpectedOrder is wrapped into the ParseError event emitted when
// events arrive out of the expected HeaderName/HeaderValue pairing.
var ErrUnexpectedOrder = errors.New("headerparser: unexpected event order")

type state int

const (
	stateExpectName state = iota
	stateExpectValue
	statePassThrough
	stateDone
)

// Parser pairs HeaderName/HeaderValue events into Header events.
//
// The raw bytes it accumulates are exactly what was pushed upstream: the
// original header name plus colon, the original (possibly folded) value
// bytes, and the CRLF that terminates the logical header. This is the
// property simple-header DKIM canonicalization depends on (spec §4.3);
// nothing here may normalize line endings or re-encode the text before
// building Raw.
type Parser struct {
	next  events.Sink
	state state

	name   string
	rawBuf []byte
}

// New returns a Parser that forwards events to next.
func New(next events.Sink) *Parser {
	return &Parser{next: next, state: stateExpectName}
}

func (p *Parser) Process(e events.Event) {
	switch p.state {
	case stateExpectName:
		p.onExpectName(e)
	case stateExpectValue:
		p.onExpectValue(e)
	case statePassThrough, stateDone:
		p.next.Process(e)
	}
}

func (p *Parser) onExpectName(e events.Event) {
	switch e.Kind {
	case events.HeaderName:
		p.rawBuf = append(p.rawBuf[:0], e.Text...)
		p.name = strings.TrimSuffix(e.Text, ":")
		p.next.Process(e)
		p.state = stateExpectValue
	case events.EndOfHeaders:
		p.next.Process(e)
		p.state = statePassThrough
	case events.End, events.ParseError:
		p.next.Process(e)
		p.state = stateDone
	default:
		p.fail()
	}
}

func (p *Parser) onExpectValue(e events.Event) {
	if e.Kind != events.HeaderValue {
		p.fail()
		return
	}

	p.rawBuf = append(p.rawBuf, e.Raw...)

	value := strings.TrimSpace(e.Text)
	value = strings.TrimSuffix(value, ":")
	value = strings.TrimSpace(value)

	raw := make([]byte, len(p.rawBuf))
	copy(raw, p.rawBuf)

	p.next.Process(e)
	p.next.Process(events.NewHeader(p.name, value, raw))

	p.rawBuf = p.rawBuf[:0]
	p.name = ""
	p.state = stateExpectName
}

func (p *Parser) fail() {
	p.state = stateDone
	p.next.Process(events.NewParseError(ErrUnexpectedOrder))
}
