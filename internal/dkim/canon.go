package dkim

import (
	"regexp"
	"strings"
)

// bTagValue matches the b= tag's value within a DKIM-Signature header, up
// to (but not including) the next ';'. Used to empty it before hashing the
// signature header itself (RFC 6376 §3.7 step 4B): the signer could not
// have included its own signature value in what it signed.
var bTagValue = regexp.MustCompile(`(b[ \t\r\n]*=)[^;]*`)

func stripBTagValue(header []byte) []byte {
	return bTagValue.ReplaceAll(header, []byte("$1"))
}

// BodyCanonicalizer streams body bytes through one of the two RFC 6376
// canonicalization algorithms. Feed and Flush are the only operations;
// both algorithms are stateful and non-restartable (spec §4.4), grounded
// on the original design's streaming canonicalizer rather than chasquid's
// batch, whole-string regexp passes: a verifier must canonicalize each
// BodyChunk as it arrives, not after the whole body has been buffered.
type BodyCanonicalizer interface {
	Feed(chunk []byte) []byte
	Flush() []byte
}

// NewBodyCanonicalizer returns the streaming body canonicalizer for c.
func NewBodyCanonicalizer(c Canon) BodyCanonicalizer {
	switch c {
	case CanonRelaxed:
		return &relaxedBodyCanon{}
	default:
		return &simpleBodyCanon{}
	}
}

// simpleBodyCanon implements RFC 6376 §3.4.3: trailing empty lines are held
// back as a pending-newline count rather than emitted, so a run of blank
// lines crossing a chunk boundary collapses the same way a whole-buffer
// implementation would.
type simpleBodyCanon struct {
	pendingCRLF int
}

func (c *simpleBodyCanon) Feed(chunk []byte) []byte {
	out := make([]byte, 0, len(chunk)+2*c.pendingCRLF)
	for i := 0; i < c.pendingCRLF; i++ {
		out = append(out, '\r', '\n')
	}
	c.pendingCRLF = 0

	out = append(out, chunk...)

	for len(out) >= 2 && out[len(out)-1] == '\n' && out[len(out)-2] == '\r' {
		out = out[:len(out)-2]
		c.pendingCRLF++
	}
	return out
}

func (c *simpleBodyCanon) Flush() []byte {
	c.pendingCRLF = 0
	return []byte{'\r', '\n'}
}

// relaxedBodyCanon implements RFC 6376 §3.4.4: internal WSP runs collapse
// to a single SP, trailing WSP on each line is dropped, and trailing blank
// lines are suppressed the same way as the simple algorithm.
type relaxedBodyCanon struct {
	pendingCRLF int
	ws          bool
}

func (c *relaxedBodyCanon) flushNewlines(out []byte) []byte {
	for i := 0; i < c.pendingCRLF; i++ {
		out = append(out, '\r', '\n')
	}
	c.pendingCRLF = 0
	return out
}

func (c *relaxedBodyCanon) Feed(chunk []byte) []byte {
	out := make([]byte, 0, len(chunk))
	for _, b := range chunk {
		switch {
		case b == '\r':
			// dropped; CRLF is tracked purely through LF below.
		case b == '\n':
			c.ws = false
			c.pendingCRLF++
		case c.ws:
			out = c.flushNewlines(out)
			if !isWSPByte(b) {
				out = append(out, ' ', b)
				c.ws = false
			}
		default:
			out = c.flushNewlines(out)
			c.ws = isWSPByte(b)
			if !c.ws {
				out = append(out, b)
			}
		}
	}
	return out
}

func (c *relaxedBodyCanon) Flush() []byte {
	c.pendingCRLF = 0
	c.ws = false
	return []byte{'\r', '\n'}
}

func isWSPByte(b byte) bool { return b == ' ' || b == '\t' }

// CanonicalizeHeader renders one header per the chosen scheme. Simple
// canonicalization is the identity over the header's raw wire bytes;
// relaxed lowercases the name and collapses whitespace in the value (RFC
// 6376 §3.4.1/§3.4.2). Unlike the body canonicalizers, a single header is
// always canonicalized whole: there is no folding of one header across
// Feed calls.
func CanonicalizeHeader(c Canon, name, value string, raw []byte) []byte {
	if c == CanonRelaxed {
		return relaxHeaderBytes(name, value)
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}

func relaxHeaderBytes(name, value string) []byte {
	out := make([]byte, 0, len(name)+len(value)+3)
	out = append(out, []byte(strings.ToLower(strings.TrimRight(name, " \t")))...)
	out = append(out, ':')

	ws := false
	trailingWS := false
	for i := 0; i < len(value); i++ {
		b := value[i]
		if isFWSByte(b) {
			if !ws {
				out = append(out, ' ')
				ws = true
			}
			trailingWS = true
			continue
		}
		ws = false
		trailingWS = false
		out = append(out, b)
	}
	if trailingWS {
		out = out[:len(out)-1] // RFC 6376 §3.4.2: no trailing WSP in the value.
	}
	out = append(out, '\r', '\n')
	return out
}

// isFWSByte treats any byte the Unicode definition of whitespace would
// cover for ASCII header text: space, tab, CR, LF. A folded continuation's
// CRLF is itself whitespace to be collapsed into the run.
func isFWSByte(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n':
		return true
	default:
		return false
	}
}
