// Command mailpipe parses an RFC 5322 message and reports the event
// stream and DKIM verification outcome for each signature it carries.
//
// Not for use in production, just development and experimentation, in the
// spirit of chasquid's cmd/spf-check.
package main

import (
	"context"
	"fmt"
	"os"

	docopt "github.com/docopt/docopt-go"

	"blitiri.com.ar/go/log"

	"github.com/mailpipe/mailpipe/internal/dkim"
	"github.com/mailpipe/mailpipe/internal/events"
	"github.com/mailpipe/mailpipe/internal/mtrace"
	"github.com/mailpipe/mailpipe/internal/pconfig"
	"github.com/mailpipe/mailpipe/internal/pipeline"
)

const usage = `mailpipe: parse a message and verify its DKIM signatures.

Usage:
  mailpipe [--config=<path>] [--verbose] <message>
  mailpipe -h | --help

Options:
  --config=<path>  Path to a YAML config file [default: mailpipe.yaml].
  --verbose        Print every pipeline event, not just headers and results.
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], "mailpipe 1.0")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfgPath, _ := opts.String("--config")
	verbose, _ := opts.Bool("--verbose")
	msgPath, _ := opts.String("<message>")

	log.Init()

	cfg, err := pconfig.Load(cfgPath)
	if err != nil {
		log.Fatalf("mailpipe: %v", err)
	}

	f, err := os.Open(msgPath)
	if err != nil {
		log.Fatalf("mailpipe: opening %s: %v", msgPath, err)
	}
	defer f.Close()

	tr := mtrace.New(msgPath)
	defer tr.Finish()
	ctx := dkim.WithTraceFunc(context.Background(), tr.TraceFunc)

	result := pipeline.Run(ctx, f, cfg)

	for _, e := range result.Events {
		if e.Kind == events.Header || verbose {
			fmt.Printf("%v\n", e)
		}
	}

	if len(result.DKIM) == 0 {
		fmt.Println("dkim: none")
	}
	for _, res := range result.DKIM {
		fmt.Printf("dkim: %s domain=%s selector=%s", res.State, res.Domain, res.Selector)
		if res.Err != nil {
			fmt.Printf(" reason=%q", res.Err)
		}
		fmt.Println()
	}
}
