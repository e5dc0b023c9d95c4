package dkim

import (
	"crypto"
	"crypto/sha256"
	"errors"
	"testing"
)

func sigWithBodyHash(body string, canon Canon, bodyLength uint64, hasLength bool) *Signature {
	c := NewBodyCanonicalizer(canon)
	canonical := append(c.Feed([]byte(body)), c.Flush()...)
	if hasLength && uint64(len(canonical)) > bodyLength {
		canonical = canonical[:bodyLength]
	}
	sum := sha256.Sum256(canonical)

	return &Signature{
		Hash:          crypto.SHA256,
		BodyCanon:     canon,
		HeaderCanon:   CanonSimple,
		BodyHash:      sum[:],
		HasBodyLength: hasLength,
		BodyLength:    bodyLength,
		SignedHeaders: []string{"from"},
	}
}

func TestVerifierBodyHashMatches(t *testing.T) {
	body := "Hello\r\nWorld\r\n"
	sig := sigWithBodyHash(body, CanonSimple, 0, false)
	v := NewVerifier(sig, nil)

	v.UpdateBody([]byte(body))
	state, err := v.FinalizeBody()
	if state != SUCCESS || err != nil {
		t.Fatalf("got (%s, %v), want (SUCCESS, nil)", state, err)
	}
}

func TestVerifierBodyHashMismatch(t *testing.T) {
	sig := sigWithBodyHash("Hello\r\n", CanonSimple, 0, false)
	v := NewVerifier(sig, nil)

	v.UpdateBody([]byte("Goodbye\r\n"))
	state, err := v.FinalizeBody()
	if state != PERMFAIL || !errors.Is(err, ErrBodyHashMismatch) {
		t.Fatalf("got (%s, %v), want (PERMFAIL, ErrBodyHashMismatch)", state, err)
	}
}

func TestVerifierHonorsBodyLengthAcrossChunks(t *testing.T) {
	body := "0123456789"
	sig := sigWithBodyHash(body, CanonSimple, 5, true)
	v := NewVerifier(sig, nil)

	// Feed in small chunks that straddle the limit boundary.
	v.UpdateBody([]byte("012"))
	v.UpdateBody([]byte("34"))
	v.UpdateBody([]byte("56789")) // should contribute nothing past byte 5

	state, err := v.FinalizeBody()
	if state != SUCCESS || err != nil {
		t.Fatalf("got (%s, %v), want (SUCCESS, nil)", state, err)
	}
}

func TestVerifierAddHeaderOnlyKeepsSignedNames(t *testing.T) {
	sig := &Signature{
		Hash:          crypto.SHA256,
		BodyCanon:     CanonSimple,
		HeaderCanon:   CanonSimple,
		BodyHash:      []byte{},
		SignedHeaders: []string{"From"},
	}
	v := NewVerifier(sig, []byte("DKIM-Signature: v=1\r\n"))

	v.AddHeader("From", "a@b.com", []byte("From: a@b.com\r\n"))
	v.AddHeader("To", "c@d.com", []byte("To: c@d.com\r\n"))

	if got := v.headerBlock.String(); got != "From: a@b.com\r\n" {
		t.Errorf("got %q, want only the From header canonicalized", got)
	}
}
