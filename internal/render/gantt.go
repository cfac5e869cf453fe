package render

import (
	"fmt"
	"io"
	"sort"

	"github.com/samber/lo"

	"github.com/git-ecosystem/proctrace/internal/event"
)

// execSpan is the rendered lifetime of one distinct exec: from the
// exec's own ts to the next exec's ts for the same PID, or to that
// PID's Exit.ts if it was the last exec.
type execSpan struct {
	pid       int32
	label     string
	startMs   int64
	endMs     int64
}

// Gantt writes Mermaid Gantt chart source for the recording: the root
// PID's execs in a section named after its first exec's first argv
// token, and every other PID's execs grouped into a single "other"
// section, each bar labeled with its own process's identifying name.
func Gantt(w io.Writer, events []event.Event, root int32) error {
	ordered := sorted(events)
	if len(ordered) == 0 {
		fmt.Fprintln(w, "gantt")
		fmt.Fprintln(w, "    dateFormat x")
		fmt.Fprintln(w, "    axisFormat %S.%L")
		return nil
	}

	origin := ordered[0].Ts()

	byPid := lo.GroupBy(ordered, func(e event.Event) int32 { return e.Pid() })

	rootSpans := computeSpans(byPid[root], origin)

	var otherPids []int32
	for pid := range byPid {
		if pid != root {
			otherPids = append(otherPids, pid)
		}
	}
	sort.Slice(otherPids, func(i, j int) bool { return otherPids[i] < otherPids[j] })

	fmt.Fprintln(w, "gantt")
	fmt.Fprintln(w, "    dateFormat x")
	fmt.Fprintln(w, "    axisFormat %S.%L")

	if len(rootSpans) > 0 {
		section := firstArgvToken(rootSpans[0].label)
		fmt.Fprintf(w, "    section %s\n", section)
		for _, s := range rootSpans {
			fmt.Fprintf(w, "    %s :%d, %d\n", firstArgvToken(s.label), s.startMs, s.endMs)
		}
	}

	if len(otherPids) > 0 {
		fmt.Fprintln(w, "    section other")
		for _, pid := range otherPids {
			spans := computeSpans(byPid[pid], origin)
			if len(spans) == 0 {
				continue
			}
			name := firstArgvToken(spans[0].label)
			for _, s := range spans {
				fmt.Fprintf(w, "    %s (%d) :%d, %d\n", name, pid, s.startMs, s.endMs)
			}
		}
	}

	return nil
}

// computeSpans derives one span per distinct Exec for a single PID's
// events, already in (ts, seq) order. The last exec's span runs to
// that PID's Exit.ts, if present, or to its own start otherwise (a
// process that never exits within the recording has a zero-width
// final bar).
func computeSpans(pidEvents []event.Event, originTs uint64) []execSpan {
	var execs []*event.Exec
	var exitTs *uint64

	for _, e := range pidEvents {
		switch e.Kind {
		case event.KindExec:
			execs = append(execs, e.Exec)
		case event.KindExit:
			ts := e.Exit.Ts
			exitTs = &ts
		}
	}

	spans := make([]execSpan, 0, len(execs))
	for i, ex := range execs {
		var end uint64
		if i+1 < len(execs) {
			end = execs[i+1].Ts
		} else if exitTs != nil {
			end = *exitTs
		} else {
			end = ex.Ts
		}
		spans = append(spans, execSpan{
			pid:     ex.Pid,
			label:   ex.Cmdline,
			startMs: toMillis(ex.Ts, originTs),
			endMs:   toMillis(end, originTs),
		})
	}
	return spans
}

func toMillis(ts, origin uint64) int64 {
	return int64((ts - origin) / uint64(1e6))
}
