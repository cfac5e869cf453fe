// Package assemble merges the partial records produced by parse into
// whole event.Event values. Most tracer lines already describe a
// complete event; exec is special because the tracer reports a
// filename, an argv, and a success/failure signal as up to three
// separate lines that may arrive in any relative order.
package assemble

import (
	"github.com/git-ecosystem/proctrace/internal/event"
	"github.com/git-ecosystem/proctrace/internal/parse"
)

type partialKey struct {
	pid int32
	ts  uint64
}

// pendingExec is the assembler's working state for one (pid, ts)
// execve() attempt.
type pendingExec struct {
	filename *string
	args     *string
	success  bool

	// Captured off the EXEC success line, needed to build the final
	// event.Exec whenever it is emitted.
	seq  uint64
	ppid int32
	pgid int32
}

// Assembler merges PartialRecords in arrival order into whole events.
// It is not safe for concurrent use; the pipeline is single-threaded
// per spec §5.
type Assembler struct {
	pending map[partialKey]*pendingExec

	seqCounter uint64

	// Counts for end-of-stream debug reporting.
	DroppedPartials int
	UnknownLines    int
}

// New returns an empty Assembler.
func New() *Assembler {
	return &Assembler{pending: make(map[partialKey]*pendingExec)}
}

// NextSeq returns the next assembler-assigned sequence number, used by
// the line parser when a tracer line omits its own "seq=" field.
func (a *Assembler) NextSeq() uint64 {
	a.seqCounter++
	return a.seqCounter
}

// Apply folds one PartialRecord into the assembler's state. It
// returns the whole event produced, if any, and whether one was
// produced. FORK/EXIT/SETSID/SETPGID always produce one immediately;
// the EXEC_FILENAME/EXEC_ARGS/EXEC/BADEXEC family produce one only
// once a success signal and its args have both been seen.
func (a *Assembler) Apply(rec parse.PartialRecord) (event.Event, bool) {
	switch rec.Kind {
	case parse.KindFork:
		return event.Event{Kind: event.KindFork, Fork: &event.Fork{
			Ts: rec.Ts, Seq: rec.Seq,
			ParentPid: rec.ParentPid, ChildPid: rec.ChildPid, ParentPgid: rec.ParentPgid,
		}}, true

	case parse.KindExit:
		return event.Event{Kind: event.KindExit, Exit: &event.Exit{
			Ts: rec.Ts, Seq: rec.Seq, Pid: rec.Pid, Ppid: rec.Ppid, Pgid: rec.Pgid,
		}}, true

	case parse.KindSetSid:
		return event.Event{Kind: event.KindSetSid, SetSid: &event.SetSid{
			Ts: rec.Ts, Seq: rec.Seq, Pid: rec.Pid, Ppid: rec.Ppid, Pgid: rec.Pgid, Sid: rec.Sid,
		}}, true

	case parse.KindSetPgid:
		return event.Event{Kind: event.KindSetPgid, SetPgid: &event.SetPgid{
			Ts: rec.Ts, Seq: rec.Seq, Pid: rec.Pid, Ppid: rec.Ppid, Pgid: rec.Pgid,
		}}, true

	case parse.KindExecFilename:
		p := a.slot(rec.Pid, rec.Ts)
		filename := rec.Filename
		p.filename = &filename
		return event.Event{}, false

	case parse.KindExecArgs:
		p := a.slot(rec.Pid, rec.Ts)
		args := rec.Args
		p.args = &args
		if p.success {
			return a.emitAndClear(rec.Pid, rec.Ts, p)
		}
		return event.Event{}, false

	case parse.KindExecSuccess:
		p := a.slot(rec.Pid, rec.Ts)
		p.success = true
		p.seq = rec.Seq
		p.ppid = rec.Ppid
		p.pgid = rec.Pgid
		if p.args != nil {
			return a.emitAndClear(rec.Pid, rec.Ts, p)
		}
		return event.Event{}, false

	case parse.KindBadExec:
		delete(a.pending, partialKey{pid: rec.Pid, ts: rec.Ts})
		return event.Event{}, false

	default:
		a.UnknownLines++
		return event.Event{}, false
	}
}

func (a *Assembler) slot(pid int32, ts uint64) *pendingExec {
	key := partialKey{pid: pid, ts: ts}
	p, ok := a.pending[key]
	if !ok {
		p = &pendingExec{}
		a.pending[key] = p
	}
	return p
}

func (a *Assembler) emitAndClear(pid int32, ts uint64, p *pendingExec) (event.Event, bool) {
	delete(a.pending, partialKey{pid: pid, ts: ts})
	return event.Event{Kind: event.KindExec, Exec: &event.Exec{
		Ts: ts, Seq: p.seq, Pid: pid, Ppid: p.ppid, Pgid: p.pgid, Cmdline: *p.args,
	}}, true
}

// Flush drops every unresolved partial exec at end of stream, as
// spec requires (an exec whose args or success signal never arrived
// is silently discarded, not emitted). Returns the number dropped,
// which is also added to DroppedPartials.
func (a *Assembler) Flush() int {
	n := len(a.pending)
	a.DroppedPartials += n
	a.pending = make(map[partialKey]*pendingExec)
	return n
}
