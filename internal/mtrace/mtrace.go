// Package mtrace extends golang.org/x/net/trace with a per-message Trace,
// adapted from chasquid's internal/trace (which scopes a Trace to one SMTP
// connection instead of one message).
package mtrace

import (
	"fmt"
	"net/http"
	"strconv"

	"blitiri.com.ar/go/log"

	nettrace "golang.org/x/net/trace"
)

func init() {
	// golang.org/x/net/trace's default authorization only allows localhost,
	// which is awkward when the monitoring endpoint is reached remotely.
	nettrace.AuthRequest = func(req *http.Request) (any, sensitive bool) {
		return true, true
	}
}

// Trace represents one message moving through the pipeline.
type Trace struct {
	id string
	t  nettrace.Trace
}

// New starts a trace for the message identified by id (e.g. a queue ID or
// a source file name).
func New(id string) *Trace {
	t := &Trace{id: id, t: nettrace.New("mailpipe.message", id)}
	t.t.SetMaxEvents(30)
	return t
}

// Printf adds this message to the trace's log.
func (t *Trace) Printf(format string, a ...interface{}) {
	t.t.LazyPrintf(format, a...)
	log.Log(log.Info, 1, "message %s: %s", t.id, quote(fmt.Sprintf(format, a...)))
}

// Debugf adds this message to the trace's log, at debug level.
func (t *Trace) Debugf(format string, a ...interface{}) {
	t.t.LazyPrintf(format, a...)
	log.Log(log.Debug, 1, "message %s: %s", t.id, quote(fmt.Sprintf(format, a...)))
}

// Errorf adds this message to the trace's log, marking it as an error.
func (t *Trace) Errorf(format string, a ...interface{}) error {
	err := fmt.Errorf(format, a...)
	t.t.SetError()
	t.t.LazyPrintf("error: %v", err)
	log.Log(log.Info, 1, "message %s: error: %s", t.id, quote(err.Error()))
	return err
}

// Finish the trace. The Trace must not be used afterwards.
func (t *Trace) Finish() {
	t.t.Finish()
}

// TraceFunc adapts Printf to the dkim.TraceFunc hook shape, so a Trace can
// be threaded into a dkim.Checker through dkim.WithTraceFunc.
func (t *Trace) TraceFunc(format string, a ...interface{}) {
	t.Printf(format, a...)
}

func quote(s string) string {
	qs := strconv.Quote(s)
	return qs[1 : len(qs)-1]
}
