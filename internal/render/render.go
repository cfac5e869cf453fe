// Package render provides the three display views over a sorted
// recording: sequential, grouped-by-process, and a Mermaid Gantt
// chart source suitable for visualization.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"

	"github.com/git-ecosystem/proctrace/internal/event"
	"github.com/git-ecosystem/proctrace/internal/sortrec"
)

// Mode selects one of the three views.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeByProcess  Mode = "by-process"
	ModeMermaid    Mode = "mermaid"
)

// Options controls cosmetic rendering behavior that does not affect
// which events appear or their order.
type Options struct {
	// Color enables ANSI highlighting of PID headers in the by-process
	// view and is expected to already account for whether stdout is a
	// terminal; callers typically derive this from isatty plus a
	// --no-color flag or config setting.
	Color bool
}

func sorted(events []event.Event) []event.Event {
	out := make([]event.Event, len(events))
	copy(out, events)
	sortrec.Sort(out)
	return out
}

// Sequential writes one JSON line per event, in (ts, seq) order.
func Sequential(w io.Writer, events []event.Event) error {
	enc := json.NewEncoder(w)
	for _, e := range sorted(events) {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("render: sequential: %w", err)
		}
	}
	return nil
}

type processGroup struct {
	pid      int32
	earliest uint64
	events   []event.Event
}

// ByProcess groups events by owning PID (Fork groups under the
// child), orders groups by the timestamp of each group's earliest
// event, and within a group orders events by (ts, seq). Each group is
// preceded by a header line and followed by a blank separator.
func ByProcess(w io.Writer, events []event.Event, opts Options) error {
	ordered := sorted(events)

	byPid := lo.GroupBy(ordered, func(e event.Event) int32 { return e.Pid() })

	groups := make([]processGroup, 0, len(byPid))
	for pid, evts := range byPid {
		groups = append(groups, processGroup{pid: pid, earliest: evts[0].Ts(), events: evts})
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].earliest < groups[j].earliest })

	headerColor := color.New(color.FgCyan, color.Bold)

	for _, g := range groups {
		cmdline, hasCmdline := firstCmdline(g.events)
		parentPid, hasParent := firstForkParent(g.events)

		var header string
		switch {
		case hasParent:
			header = fmt.Sprintf("PID %d (parent %d): %s", g.pid, parentPid, cmdline)
		default:
			header = fmt.Sprintf("PID %d: %s", g.pid, cmdline)
		}
		if !hasCmdline {
			header = strings.TrimSuffix(header, ": ")
		}
		if opts.Color {
			header = headerColor.Sprint(header)
		}

		if _, err := fmt.Fprintln(w, header); err != nil {
			return fmt.Errorf("render: by-process: %w", err)
		}

		enc := json.NewEncoder(w)
		for _, e := range g.events {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("render: by-process: %w", err)
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return fmt.Errorf("render: by-process: %w", err)
		}
	}
	return nil
}

func firstCmdline(events []event.Event) (string, bool) {
	for _, e := range events {
		if e.Kind == event.KindExec {
			return e.Exec.Cmdline, true
		}
	}
	return "", false
}

func firstForkParent(events []event.Event) (int32, bool) {
	for _, e := range events {
		if e.Kind == event.KindFork {
			return e.Fork.ParentPid, true
		}
	}
	return 0, false
}

func firstArgvToken(cmdline string) string {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return cmdline
	}
	return fields[0]
}
