package msgsource

import (
	"strings"
	"testing"

	"github.com/mailpipe/mailpipe/internal/events"
)

type recorder struct {
	events []events.Event
}

func (r *recorder) Process(e events.Event) {
	r.events = append(r.events, e)
}

func TestNormalizesLFToCRLF(t *testing.T) {
	r := &recorder{}
	New(strings.NewReader("a\nb"), r).Run()

	var got []byte
	for _, e := range r.events {
		if e.Kind == events.MessageByte {
			got = append(got, e.Byte)
		}
	}
	if want := "a\r\nb"; string(got) != want {
		t.Errorf("got %q, want %q", string(got), want)
	}
}

func TestLeavesExistingCRLFAlone(t *testing.T) {
	r := &recorder{}
	New(strings.NewReader("a\r\nb"), r).Run()

	var got []byte
	for _, e := range r.events {
		if e.Kind == events.MessageByte {
			got = append(got, e.Byte)
		}
	}
	if want := "a\r\nb"; string(got) != want {
		t.Errorf("got %q, want %q", string(got), want)
	}
}

func TestEmitsEndAtEOF(t *testing.T) {
	r := &recorder{}
	New(strings.NewReader(""), r).Run()

	if len(r.events) != 1 || r.events[0].Kind != events.End {
		t.Fatalf("got %+v, want a single End event", r.events)
	}
}
