package pfile

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/tabwriter"

	"pfreg/internal/logging"
	"pfreg/internal/para"
)

// Sink receives formatted diagnostic text.
type Sink interface {
	Append(msg string)
}

// Info formats a listing of every record for the calling task and appends it
// to sink. The table is not modified.
func (r *Registry) Info(ctx para.Context, sink Sink) {
	sink.Append(r.Format(ctx))
}

// Format renders the listing Info sends to a sink.
func (r *Registry) Format(ctx para.Context) string {
	records := r.raw.Records()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "file registry, task %d of %d (root %d): %d files\n",
		ctx.Rank(), ctx.Size(), ctx.RootRank(), len(records))
	if len(records) == 0 {
		return buf.String()
	}

	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE\tSTATUS\tSHARING\tPATH")
	for _, rec := range records {
		st := "closed"
		if rec.Open {
			st = "open"
		}
		status := rec.Status
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", rec.ID, rec.Name, st, status, rec.Sharing, rec.Path)
	}
	_ = tw.Flush()
	return buf.String()
}

// LogSink forwards each message to a logger at INFO, one line per log entry.
type LogSink struct {
	Logger *logging.Logger
}

// Append implements Sink.
func (s LogSink) Append(msg string) {
	for _, line := range strings.Split(strings.TrimRight(msg, "\n"), "\n") {
		s.Logger.Info("%s", line)
	}
}

// BufferSink collects messages in memory.
type BufferSink struct {
	mu   sync.Mutex
	msgs []string
}

// Append implements Sink.
func (s *BufferSink) Append(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

// Messages returns every message appended so far.
func (s *BufferSink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.msgs...)
}

// String joins all messages.
func (s *BufferSink) String() string {
	return strings.Join(s.Messages(), "")
}
