package headerdecode

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

func TestDecodesQEncodedWord(t *testing.T) {
	r := &recorder{}
	d := New(r)

	d.Process(events.NewHeader("Subject", "=?utf-8?q?Hello=5FWorld?=", nil))

	if got, want := r.events[0].Text, "Hello_World"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecodesBEncodedWord(t *testing.T) {
	r := &recorder{}
	d := New(r)

	// base64 for "hi"
	d.Process(events.NewHeader("Subject", "=?utf-8?b?aGk=?=", nil))

	if got, want := r.events[0].Text, "hi"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLeavesPlainTextAlone(t *testing.T) {
	r := &recorder{}
	d := New(r)

	d.Process(events.NewHeader("Subject", "plain text, no encoding", nil))

	if got, want := r.events[0].Text, "plain text, no encoding"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestForwardsNonHeaderEvents(t *testing.T) {
	r := &recorder{}
	d := New(r)

	d.Process(events.EndOfHeadersEvent)
	d.Process(events.NewBodyChunk([]byte("x")))

	if len(r.events) != 2 {
		t.Fatalf("got %+v, want 2 forwarded events", r.events)
	}
	if r.events[0].Kind != events.EndOfHeaders || r.events[1].Kind != events.BodyChunk {
		t.Errorf("unexpected forwarded kinds: %+v", r.events)
	}
}
