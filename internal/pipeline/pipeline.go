// Package pipeline wires the parsing stages together: byte source, scanner,
// header assembler, DKIM checker, header decoder, and a terminal sink. The
// checker sees header values before RFC 2047 decoding rewrites them. This
// is the Go counterpart of the original design's main.rs, which chained
// MessageScanner -> HeaderParser -> HeaderDecoder by nested construction.
package pipeline

import (
	"context"
	"io"

	"github.com/mailpipe/mailpipe/internal/dkim"
	"github.com/mailpipe/mailpipe/internal/events"
	"github.com/mailpipe/mailpipe/internal/headerdecode"
	"github.com/mailpipe/mailpipe/internal/headerparser"
	"github.com/mailpipe/mailpipe/internal/msgsource"
	"github.com/mailpipe/mailpipe/internal/pconfig"
	"github.com/mailpipe/mailpipe/internal/scanner"
)

// EventSink accumulates every event the pipeline emits, for inspection or
// testing (spec §2's "Sink" component).
type EventSink struct {
	Events []events.Event
}

func (s *EventSink) Process(e events.Event) {
	s.Events = append(s.Events, e)
}

// Result is the outcome of running one message through the pipeline.
type Result struct {
	Events []events.Event
	DKIM   []dkim.Result
}

// Run parses one message from r and verifies every DKIM-Signature header
// it carries. ctx may carry a dkim.TraceFunc via dkim.WithTraceFunc.
func Run(ctx context.Context, r io.Reader, cfg pconfig.Config) *Result {
	result := &Result{}

	sink := &EventSink{}
	ctx = dkim.WithMaxSignatures(ctx, cfg.MaxDKIMSignatures)

	decoder := headerdecode.New(sink)
	checker := dkim.New(ctx, decoder, func(res dkim.Result) {
		result.DKIM = append(result.DKIM, res)
	})
	parser := headerparser.New(checker)
	scan := scanner.NewWithChunkSize(parser, cfg.ScannerChunkSize)
	src := msgsource.New(r, scan)

	src.Run()

	result.Events = sink.Events
	return result
}
