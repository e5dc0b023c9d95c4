// Package headerdecode decodes RFC 2047 encoded words in assembled header
// values. It is the Go counterpart of the original design's HeaderDecoder
// stage, which rewrote each Header's value in place and forwarded
// everything else untouched.
package headerdecode

import (
	"io"
	"mime"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/mailpipe/mailpipe/internal/events"
)

// decoder does the actual =?charset?enc?text?= decoding. mime.WordDecoder
// already implements Q and B decoding per RFC 2047; the only thing it needs
// from us is a CharsetReader for charsets it doesn't know natively, which we
// resolve through golang.org/x/text's IANA registry.
var decoder = &mime.WordDecoder{
	CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := ianaindex.MIME.Encoding(charset)
		if err != nil || enc == nil {
			// Unknown charset: pass the bytes through rather than failing
			// the whole header. A best-effort decode beats discarding a
			// header wholesale over one unrecognized encoded word.
			return input, nil
		}
		return enc.NewDecoder().Reader(input), nil
	},
}

// Decoder rewrites the Text of every Header event by decoding any RFC 2047
// encoded words it contains, and forwards everything else unchanged.
type Decoder struct {
	next events.Sink
}

// New returns a Decoder that forwards decoded events to next.
func New(next events.Sink) *Decoder {
	return &Decoder{next: next}
}

func (d *Decoder) Process(e events.Event) {
	if e.Kind != events.Header {
		d.next.Process(e)
		return
	}

	decoded, err := decoder.DecodeHeader(e.Text)
	if err != nil {
		// A malformed encoded word is not a framing error: the spec treats
		// header decoding as best-effort and leaves the raw value in place
		// (see spec §4.3's note that decode failures fall back to the
		// original text).
		d.next.Process(e)
		return
	}

	e.Text = decoded
	d.next.Process(e)
}
