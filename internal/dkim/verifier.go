package dkim

import (
	"bytes"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/mailpipe/mailpipe/internal/set"
)

// Evaluation states, as per RFC 8601 §2.7.1 / RFC 6376 §3.9.
type EvaluationState string

const (
	SUCCESS  EvaluationState = "SUCCESS"
	PERMFAIL EvaluationState = "PERMFAIL"
	TEMPFAIL EvaluationState = "TEMPFAIL"
)

// ErrHashWrite is returned when the hash context itself fails to accept
// data. crypto/sha1 and crypto/sha256's hash.Hash implementations never
// actually fail a Write, but the verifier surfaces the possibility anyway
// (spec §4.7/§7) rather than assume it of every future hash algorithm.
var ErrHashWrite = errors.New("dkim: hash write failed")

// ErrBodyHashMismatch reports a body-hash check that ran to completion but
// did not match bh=. It is a verification result, not an error: callers
// distinguish it from ErrHashWrite and signature-parse errors via
// errors.Is when building an EvaluationState.
var ErrBodyHashMismatch = errors.New("dkim: body hash mismatch")

// Verifier drives one DKIM-Signature's canonicalization and hashing over a
// single message. A checker owns one Verifier per DKIM-Signature header it
// observes; see checker.go.
type Verifier struct {
	Signature *Signature

	bodyCanon   BodyCanonicalizer
	headerCanon Canon
	headerBlock bytes.Buffer

	bodyHashAlgo crypto.Hash
	hashState    hash.Hash
	bodyHashed   uint64
	hashErr      error

	// signedHeaders lowercases Signature.SignedHeaders once so AddHeader's
	// membership test doesn't re-fold case on every call.
	signedHeaders *set.String

	// sigHeaderRaw is the raw wire bytes of the DKIM-Signature header this
	// verifier was created from, kept so SignedHeaderBlock can append it
	// (with b= emptied) once an external collaborator is ready to run the
	// RSA/Ed25519 check (spec §9's open TODO).
	sigHeaderRaw []byte
}

// NewVerifier builds a Verifier for a parsed signature. raw is the
// DKIM-Signature header's own raw wire bytes, as emitted by the header
// assembler.
func NewVerifier(sig *Signature, raw []byte) *Verifier {
	rawCopy := make([]byte, len(raw))
	copy(rawCopy, raw)

	lowered := make([]string, len(sig.SignedHeaders))
	for i, h := range sig.SignedHeaders {
		lowered[i] = strings.ToLower(h)
	}

	return &Verifier{
		Signature:     sig,
		bodyCanon:     NewBodyCanonicalizer(sig.BodyCanon),
		headerCanon:   sig.HeaderCanon,
		bodyHashAlgo:  sig.Hash,
		sigHeaderRaw:  rawCopy,
		signedHeaders: set.NewString(lowered...),
	}
}

// AddHeader canonicalizes one signed header and appends it to the
// accumulated header block used for the (not yet wired) signature check
// over h=. It is a no-op for headers not named in the signature's h= list,
// since only those contribute to the hash (RFC 6376 §3.7).
func (v *Verifier) AddHeader(name, value string, raw []byte) {
	if !v.signedHeaders.Has(strings.ToLower(name)) {
		return
	}
	v.headerBlock.Write(CanonicalizeHeader(v.headerCanon, name, value, raw))
}

// SignedHeaderBlock returns the canonicalized bytes of every signed header
// collected so far, followed by the canonicalized DKIM-Signature header
// itself with its b= value emptied (RFC 6376 §3.7 step 4B), without a
// trailing CRLF. This is the exact input an RSA/Ed25519 verifier needs;
// this package stops short of performing that check (spec §1's external-DNS
// and external-RSA boundary).
func (v *Verifier) SignedHeaderBlock() []byte {
	name, value, _ := strings.Cut(string(v.sigHeaderRaw), ":")
	sigC := CanonicalizeHeader(v.headerCanon, name, strings.TrimSpace(value), v.sigHeaderRaw)
	sigC = stripBTagValue(sigC)
	sigC = bytes.TrimSuffix(sigC, []byte("\r\n"))

	out := make([]byte, 0, v.headerBlock.Len()+len(sigC))
	out = append(out, v.headerBlock.Bytes()...)
	out = append(out, sigC...)
	return out
}

// UpdateBody canonicalizes one body chunk and feeds it to the running
// hash, honoring the signature's optional body-length limit (l=): once
// bodyHashed reaches the limit, further chunks contribute nothing (spec
// §4.7).
func (v *Verifier) UpdateBody(chunk []byte) {
	if v.hashErr != nil {
		return
	}

	data := v.truncateToLimit(v.bodyCanon.Feed(chunk))
	if len(data) > 0 {
		v.writeHash(data)
	}
}

func (v *Verifier) writeHash(data []byte) {
	if v.hashState == nil {
		v.hashState = v.bodyHashAlgo.New()
	}
	n, err := v.hashState.Write(data)
	if err != nil || n != len(data) {
		v.hashErr = fmt.Errorf("%w: %v", ErrHashWrite, err)
		return
	}
	v.bodyHashed += uint64(n)
}

func (v *Verifier) truncateToLimit(data []byte) []byte {
	if !v.Signature.HasBodyLength {
		return data
	}
	if v.bodyHashed >= v.Signature.BodyLength {
		return nil
	}
	remaining := v.Signature.BodyLength - v.bodyHashed
	if uint64(len(data)) > remaining {
		return data[:remaining]
	}
	return data
}

// FinalizeBody flushes the body canonicalizer, hashes the remainder
// (subject to the same truncation as UpdateBody), and compares the result
// against the signature's declared bh=. It returns the resulting
// evaluation state and, on mismatch or hash failure, the error describing
// why.
func (v *Verifier) FinalizeBody() (EvaluationState, error) {
	if v.hashErr == nil {
		tail := v.truncateToLimit(v.bodyCanon.Flush())
		if len(tail) > 0 {
			v.writeHash(tail)
		}
	}

	if v.hashErr != nil {
		return TEMPFAIL, v.hashErr
	}

	if v.hashState == nil {
		v.hashState = v.bodyHashAlgo.New()
	}
	sum := v.hashState.Sum(nil)

	if !bytes.Equal(sum, v.Signature.BodyHash) {
		got := base64.StdEncoding.EncodeToString(sum)
		return PERMFAIL, fmt.Errorf("%w (got %s)", ErrBodyHashMismatch, got)
	}

	return SUCCESS, nil
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
