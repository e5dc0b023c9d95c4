package dkim

import "context"

type contextKey string

const traceKey contextKey = "trace"

// TraceFunc receives one formatted debug line per notable event during
// checking. It mirrors chasquid's per-request trace hook, scoped down to
// one message instead of one SMTP connection.
type TraceFunc func(format string, args ...interface{})

func WithTraceFunc(ctx context.Context, f TraceFunc) context.Context {
	return context.WithValue(ctx, traceKey, f)
}

func trace(ctx context.Context, format string, args ...interface{}) {
	f, ok := ctx.Value(traceKey).(TraceFunc)
	if !ok {
		return
	}
	f(format, args...)
}

const maxSignaturesKey contextKey = "maxSignatures"

// WithMaxSignatures caps how many DKIM-Signature headers a Checker will
// spin up a Verifier for, guarding against a message carrying an
// unreasonable number of them (RFC 6376 §8.4).
func WithMaxSignatures(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, maxSignaturesKey, n)
}

func maxSignatures(ctx context.Context) int {
	n, ok := ctx.Value(maxSignaturesKey).(int)
	if !ok {
		return 5
	}
	return n
}
