package dkim

import (
	"context"

	"github.com/mailpipe/mailpipe/internal/events"
)

type checkerState int

const (
	checkerStart checkerState = iota
	checkerSignatureSeen
	checkerFinished
)

// dkimSignatureHeader is the header name the checker watches for. Matching
// is case-insensitive (spec §9's Open Questions: RFC 5322 header names are
// case-insensitive, so a case-sensitive match as chasquid's FindAll does it
// would miss a perfectly legal "dkim-signature" header).
const dkimSignatureHeader = "DKIM-Signature"

// Result is one signature's outcome: reported as soon as a DKIM-Signature
// header fails to parse, or for a verifier once the checker drains on End
// or ParseError.
type Result struct {
	SignatureHeader string
	Domain          string
	Selector        string
	State           EvaluationState
	Err             error
}

// ResultHandler receives one Result per DKIM-Signature header the checker
// accepts under its cap (headers over the cap get none). Parse failures
// arrive when their header is seen; verifier outcomes arrive on drain, in
// the order their verifiers were created.
type ResultHandler func(Result)

// Checker sits between the header assembler and whatever consumes the
// fully decoded event stream. It watches for DKIM-Signature headers,
// spins up a Verifier per signature found, and feeds every subsequent
// Header and BodyChunk to all live verifiers, forwarding every event
// downstream unchanged (spec §4.6).
type Checker struct {
	ctx      context.Context
	next     events.Sink
	onResult ResultHandler

	state     checkerState
	verifiers []*Verifier
}

// New returns a Checker that forwards events to next and reports one
// Result per accepted signature to onResult (see ResultHandler). ctx may
// carry a cap via WithMaxSignatures; it defaults to 5 DKIM
// signatures per message, guarding against a message that carries an
// unreasonable number of them (RFC 6376 §8.4).
func New(ctx context.Context, next events.Sink, onResult ResultHandler) *Checker {
	return &Checker{ctx: ctx, next: next, onResult: onResult, state: checkerStart}
}

func (c *Checker) Process(e events.Event) {
	switch c.state {
	case checkerStart:
		c.onStart(e)
	case checkerSignatureSeen:
		c.onSignatureSeen(e)
	case checkerFinished:
		c.next.Process(e)
	}
}

func (c *Checker) onStart(e events.Event) {
	c.next.Process(e)

	if e.Kind != events.Header {
		return
	}
	if !equalFold(e.Name, dkimSignatureHeader) {
		return
	}
	if len(c.verifiers) >= maxSignatures(c.ctx) {
		trace(c.ctx, "too many DKIM-Signature headers, ignoring %q", e.Name)
		return
	}

	sig, err := ParseSignature(e.Text)
	if err != nil {
		// A bad signature suppresses verifier creation but never aborts
		// message parsing (spec §7): the rest of the pipeline, and any
		// other DKIM-Signature header, proceeds untouched.
		trace(c.ctx, "DKIM-Signature parse failed: %v", err)
		c.onResult(Result{SignatureHeader: e.Text, State: PERMFAIL, Err: err})
		return
	}

	v := NewVerifier(sig, e.Raw)
	c.verifiers = append(c.verifiers, v)
	c.state = checkerSignatureSeen
}

func (c *Checker) onSignatureSeen(e events.Event) {
	c.next.Process(e)

	switch e.Kind {
	case events.Header:
		for _, v := range c.verifiers {
			v.AddHeader(e.Name, e.Text, e.Raw)
		}
		if equalFold(e.Name, dkimSignatureHeader) && len(c.verifiers) < maxSignatures(c.ctx) {
			sig, err := ParseSignature(e.Text)
			if err != nil {
				trace(c.ctx, "DKIM-Signature parse failed: %v", err)
				c.onResult(Result{SignatureHeader: e.Text, State: PERMFAIL, Err: err})
				return
			}
			c.verifiers = append(c.verifiers, NewVerifier(sig, e.Raw))
		}
	case events.BodyChunk:
		for _, v := range c.verifiers {
			v.UpdateBody(e.Bytes)
		}
	case events.End, events.ParseError:
		c.drain()
		c.state = checkerFinished
	}
}

func (c *Checker) drain() {
	for _, v := range c.verifiers {
		state, err := v.FinalizeBody()
		c.onResult(Result{
			SignatureHeader: string(v.sigHeaderRaw),
			Domain:          v.Signature.SigningDomain,
			Selector:        v.Signature.Selector,
			State:           state,
			Err:             err,
		})
	}
}
