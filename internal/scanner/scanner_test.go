package scanner

import (
	"testing"

	"github.com/mailpipe/mailpipe/internal/events"
)

type recorder struct {
	events []events.Event
}

func (r *recorder) Process(e events.Event) {
	r.events = append(r.events, e)
}

func feed(s *Scanner, data string) {
	for i := 0; i < len(data); i++ {
		s.Process(events.NewMessageByte(data[i]))
	}
}

func TestMinimalMessage(t *testing.T) {
	r := &recorder{}
	s := New(r)

	feed(s, "Header1: Value1\r\nHeader2: Value2\r\n\r\nBody")
	s.Process(events.EndEvent)

	wantKinds := []events.Kind{
		events.HeaderName, events.HeaderValue,
		events.HeaderName, events.HeaderValue,
		events.EndOfHeaders, events.BodyChunk, events.End,
	}
	if len(r.events) != len(wantKinds) {
		t.Fatalf("got %d events, want %d: %+v", len(r.events), len(wantKinds), r.events)
	}
	for i, k := range wantKinds {
		if r.events[i].Kind != k {
			t.Errorf("event %d: got kind %v, want %v", i, r.events[i].Kind, k)
		}
	}

	if got := r.events[0].Text; got != "Header1:" {
		t.Errorf("HeaderName: got %q, want %q", got, "Header1:")
	}
	if got := r.events[1].Text; got != "Value1" {
		t.Errorf("HeaderValue: got %q, want %q", got, "Value1")
	}
	if got := string(r.events[5].Bytes); got != "Body" {
		t.Errorf("BodyChunk: got %q, want %q", got, "Body")
	}
}

func TestFoldedHeader(t *testing.T) {
	r := &recorder{}
	s := New(r)

	feed(s, "Header1: Line1\r\n\t  Line2\r\n\r\nBody")
	s.Process(events.EndEvent)

	var value string
	for _, e := range r.events {
		if e.Kind == events.HeaderValue {
			value = e.Text
			break
		}
	}
	if want := "Line1\t  Line2"; value != want {
		t.Errorf("folded HeaderValue: got %q, want %q", value, want)
	}
}

func TestRawBytesReconstructHeaderBlock(t *testing.T) {
	msg := "Header1: Value1\r\nHeader2: Line1\r\n  Line2\r\n\r\nBody"

	r := &recorder{}
	s := New(r)
	feed(s, msg)
	s.Process(events.EndEvent)

	var raw []byte
	for _, e := range r.events {
		if e.Kind == events.HeaderName {
			raw = append(raw, e.Text...)
		}
		if e.Kind == events.HeaderValue {
			raw = append(raw, e.Raw...)
		}
	}

	want := "Header1: Value1\r\nHeader2: Line1\r\n  Line2\r\n"
	if string(raw) != want {
		t.Errorf("reconstructed header block: got %q, want %q", string(raw), want)
	}
}

func TestBodyChunking(t *testing.T) {
	r := &recorder{}
	s := NewWithChunkSize(r, 4)

	feed(s, "Header: x\r\n\r\n")
	feed(s, "12345678")
	s.Process(events.EndEvent)

	var chunks []string
	for _, e := range r.events {
		if e.Kind == events.BodyChunk {
			chunks = append(chunks, string(e.Bytes))
		}
	}
	want := []string{"1234", "5678"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks %v, want %v", len(chunks), chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: got %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestUnexpectedByteInEndOfHeader(t *testing.T) {
	r := &recorder{}
	s := New(r)

	s.Process(events.NewMessageByte('H'))
	s.Process(events.NewMessageByte(':'))
	s.Process(events.NewMessageByte('x'))
	s.Process(events.NewMessageByte('\r'))
	s.Process(events.NewMessageByte('x')) // should have been \n

	if len(r.events) == 0 || r.events[len(r.events)-1].Kind != events.ParseError {
		t.Fatalf("expected a trailing ParseError event, got %+v", r.events)
	}
}

func TestEndDuringBodyFlushesRemainder(t *testing.T) {
	r := &recorder{}
	s := New(r)

	feed(s, "H: x\r\n\r\nleftover")
	s.Process(events.EndEvent)

	var sawLeftover bool
	for _, e := range r.events {
		if e.Kind == events.BodyChunk && string(e.Bytes) == "leftover" {
			sawLeftover = true
		}
	}
	if !sawLeftover {
		t.Errorf("expected a final BodyChunk with the unflushed remainder, got %+v", r.events)
	}
	if r.events[len(r.events)-1].Kind != events.End {
		t.Errorf("expected stream to terminate in End, got %+v", r.events[len(r.events)-1])
	}
}
