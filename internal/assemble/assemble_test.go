package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-ecosystem/proctrace/internal/event"
	"github.com/git-ecosystem/proctrace/internal/parse"
)

func TestAssembler_ForkExitPassThrough(t *testing.T) {
	a := New()

	evt, ok := a.Apply(parse.PartialRecord{Kind: parse.KindFork, Seq: 1, Ts: 10, ParentPid: 100, ChildPid: 101, ParentPgid: 99})
	require.True(t, ok)
	assert.Equal(t, event.KindFork, evt.Kind)

	evt, ok = a.Apply(parse.PartialRecord{Kind: parse.KindExit, Seq: 2, Ts: 30, Pid: 101, Ppid: 100, Pgid: 101})
	require.True(t, ok)
	assert.Equal(t, event.KindExit, evt.Kind)
}

func TestAssembler_NormalExecOrder(t *testing.T) {
	a := New()

	_, ok := a.Apply(parse.PartialRecord{Kind: parse.KindExecFilename, Ts: 20, Pid: 101, Filename: "/bin/echo"})
	assert.False(t, ok)

	_, ok = a.Apply(parse.PartialRecord{Kind: parse.KindExecArgs, Ts: 20, Pid: 101, Args: "/bin/echo hi"})
	assert.False(t, ok, "success signal has not arrived yet")

	evt, ok := a.Apply(parse.PartialRecord{Kind: parse.KindExecSuccess, Seq: 9, Ts: 20, Pid: 101, Ppid: 100, Pgid: 101})
	require.True(t, ok)
	assert.Equal(t, event.KindExec, evt.Kind)
	assert.Equal(t, "/bin/echo hi", evt.Exec.Cmdline)
	assert.Equal(t, uint64(9), evt.Exec.Seq)
}

func TestAssembler_ArgsArriveAfterSuccess(t *testing.T) {
	a := New()

	_, ok := a.Apply(parse.PartialRecord{Kind: parse.KindExecSuccess, Seq: 5, Ts: 20, Pid: 101, Ppid: 100, Pgid: 101})
	assert.False(t, ok, "emission deferred until args arrive")

	evt, ok := a.Apply(parse.PartialRecord{Kind: parse.KindExecArgs, Seq: 6, Ts: 20, Pid: 101, Args: "/bin/echo hi"})
	require.True(t, ok)
	assert.Equal(t, "/bin/echo hi", evt.Exec.Cmdline)
}

func TestAssembler_BadExecEmitsNothing(t *testing.T) {
	a := New()
	a.Apply(parse.PartialRecord{Kind: parse.KindExecFilename, Ts: 20, Pid: 101, Filename: "/bin/nope"})
	a.Apply(parse.PartialRecord{Kind: parse.KindExecArgs, Ts: 20, Pid: 101, Args: "/bin/nope"})
	_, ok := a.Apply(parse.PartialRecord{Kind: parse.KindBadExec, Ts: 20, Pid: 101})
	assert.False(t, ok)

	assert.Equal(t, 0, a.Flush(), "the badexec already cleared the slot")
}

func TestAssembler_UnresolvedPartialDroppedAtFlush(t *testing.T) {
	a := New()
	a.Apply(parse.PartialRecord{Kind: parse.KindExecFilename, Ts: 20, Pid: 101, Filename: "/bin/echo"})

	assert.Equal(t, 1, a.Flush())
	assert.Equal(t, 1, a.DroppedPartials)
}

func TestAssembler_NextSeqMonotonic(t *testing.T) {
	a := New()
	s1 := a.NextSeq()
	s2 := a.NextSeq()
	assert.Less(t, s1, s2)
}
