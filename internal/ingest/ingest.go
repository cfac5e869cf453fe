// Package ingest replays a recording (either pre-assembled events or
// raw tracer lines) through the assembler and tree tracker, producing
// a pruned recording rooted at a chosen PID.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	goerrors "github.com/go-errors/errors"
	"go.uber.org/zap"

	"github.com/git-ecosystem/proctrace/internal/assemble"
	"github.com/git-ecosystem/proctrace/internal/event"
	"github.com/git-ecosystem/proctrace/internal/parse"
	"github.com/git-ecosystem/proctrace/internal/tree"
)

// Stats summarizes what happened during a Run, for debug-mode
// reporting.
type Stats struct {
	LinesRead       int
	EventsAdmitted  int
	ParseErrors     int
	TreeDrops       int
	DroppedPartials int
}

// Run reads newline-delimited lines from r, pushes each through the
// assembler and a tree.Tracker seeded at root, and writes admitted
// events as newline-delimited JSON to w.
//
// A line is treated as a pre-assembled event.Event if it starts with
// '{', and as a raw tracer line otherwise; this lets one
// code path ingest either a pruned/raw Recording file or a raw tracer
// transcript.
func Run(r io.Reader, w io.Writer, root int32, logger *zap.Logger) (Stats, error) {
	var stats Stats

	asm := assemble.New()
	tr := tree.New(root)
	enc := json.NewEncoder(w)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		stats.LinesRead++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		evt, ok, err := decodeLine(line, asm)
		if err != nil {
			stats.ParseErrors++
			logger.Debug("ingest: unparsable line", zap.String("line", line), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		if !tr.Admit(evt) {
			stats.TreeDrops++
			continue
		}

		if err := enc.Encode(evt); err != nil {
			return stats, goerrors.WrapPrefix(err, "ingest: write failed", 0)
		}
		stats.EventsAdmitted++
	}
	if err := scanner.Err(); err != nil {
		return stats, goerrors.WrapPrefix(err, "ingest: read failed", 0)
	}

	stats.DroppedPartials = asm.Flush()

	return stats, nil
}

// decodeLine parses one line as either a whole event.Event (JSON) or
// a raw tracer line that must still pass through the assembler.
func decodeLine(line string, asm *assemble.Assembler) (event.Event, bool, error) {
	if line[0] == '{' {
		var e event.Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return event.Event{}, false, err
		}
		return e, true, nil
	}

	rec, err := parse.ParseLine(line, asm.NextSeq)
	if err != nil {
		return event.Event{}, false, err
	}

	evt, ok := asm.Apply(rec)
	return evt, ok, nil
}

func isUnknownPrefix(err error, target **parse.UnknownPrefixError) bool {
	if e, ok := err.(*parse.UnknownPrefixError); ok {
		*target = e
		return true
	}
	return false
}

// FatalReadError wraps an error reading the input path itself (not a
// malformed line within it), which spec treats as systemic rather than
// a recoverable per-line parse failure.
type FatalReadError struct {
	Path string
	Err  error
}

func (e *FatalReadError) Error() string {
	return fmt.Sprintf("ingest: cannot read %q: %s", e.Path, e.Err)
}

func (e *FatalReadError) Unwrap() error { return e.Err }
