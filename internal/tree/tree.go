// Package tree maintains the live set of PIDs descended from a root
// PID as whole events stream in, and decides which events belong to
// that process tree.
package tree

import "github.com/git-ecosystem/proctrace/internal/event"

// Tracker holds the admission state for one process tree, rooted at
// a single PID seeded at construction. It is owned by whichever
// component is currently consuming events (the recorder during
// record, ingest during replay) and is mutated monotonically.
type Tracker struct {
	live   map[int32]struct{}
	parent map[int32]int32

	// Dropped counts events referring to a PID not (yet, or no longer)
	// in the tree; not an error, just bookkeeping for debug output.
	Dropped int
}

// New seeds a Tracker with root already in the live set, per spec:
// "root ∈ live from session start".
func New(root int32) *Tracker {
	return &Tracker{
		live:   map[int32]struct{}{root: {}},
		parent: make(map[int32]int32),
	}
}

// Live reports whether pid is currently considered in-tree.
func (t *Tracker) Live(pid int32) bool {
	_, ok := t.live[pid]
	return ok
}

// Empty reports whether no PID remains in the tree, i.e. the root and
// every descendant has exited. Callers use this to decide when a
// recording session (or a supervised tracer subprocess) is done.
func (t *Tracker) Empty() bool {
	return len(t.live) == 0
}

// Admit applies one whole event to the tree state and reports whether
// it belongs in the output stream. Admission order matters: this must
// be called in the exact order events were assembled.
func (t *Tracker) Admit(e event.Event) bool {
	switch e.Kind {
	case event.KindFork:
		f := e.Fork
		if !t.Live(f.ParentPid) {
			t.Dropped++
			return false
		}
		t.live[f.ChildPid] = struct{}{}
		t.parent[f.ChildPid] = f.ParentPid
		return true

	case event.KindExec:
		if !t.Live(e.Exec.Pid) {
			t.Dropped++
			return false
		}
		return true

	case event.KindSetSid:
		if !t.Live(e.SetSid.Pid) {
			t.Dropped++
			return false
		}
		return true

	case event.KindSetPgid:
		if !t.Live(e.SetPgid.Pid) {
			t.Dropped++
			return false
		}
		return true

	case event.KindExit:
		pid := e.Exit.Pid
		if !t.Live(pid) {
			t.Dropped++
			return false
		}
		delete(t.live, pid)
		return true

	default:
		t.Dropped++
		return false
	}
}

// Parent returns the observed parent of pid, if any fork event for it
// has been admitted.
func (t *Tracker) Parent(pid int32) (int32, bool) {
	p, ok := t.parent[pid]
	return p, ok
}
