package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/git-ecosystem/proctrace/internal/event"
)

func TestTracker_ForkAddsChildWhenParentLive(t *testing.T) {
	tr := New(100)

	ok := tr.Admit(event.Event{Kind: event.KindFork, Fork: &event.Fork{ParentPid: 100, ChildPid: 101}})
	assert.True(t, ok)
	assert.True(t, tr.Live(101))
	parent, known := tr.Parent(101)
	assert.True(t, known)
	assert.Equal(t, int32(100), parent)
}

func TestTracker_OffTreeForkDropped(t *testing.T) {
	tr := New(100)

	ok := tr.Admit(event.Event{Kind: event.KindFork, Fork: &event.Fork{ParentPid: 999, ChildPid: 1000}})
	assert.False(t, ok)
	assert.False(t, tr.Live(1000))
	assert.Equal(t, 1, tr.Dropped)
}

func TestTracker_ExitRemovesPidAndSuppressesFurtherEvents(t *testing.T) {
	tr := New(100)
	tr.Admit(event.Event{Kind: event.KindFork, Fork: &event.Fork{ParentPid: 100, ChildPid: 101}})

	ok := tr.Admit(event.Event{Kind: event.KindExit, Exit: &event.Exit{Pid: 101}})
	assert.True(t, ok)
	assert.False(t, tr.Live(101))

	ok = tr.Admit(event.Event{Kind: event.KindExec, Exec: &event.Exec{Pid: 101}})
	assert.False(t, ok, "no event for pid 101 should be admitted after its exit")
}

func TestTracker_SingleForkExecExitScenario(t *testing.T) {
	tr := New(100)

	admitted := []event.Event{}
	events := []event.Event{
		{Kind: event.KindFork, Fork: &event.Fork{Ts: 10, ParentPid: 100, ChildPid: 101, ParentPgid: 99}},
		{Kind: event.KindExec, Exec: &event.Exec{Ts: 20, Pid: 101, Ppid: 100, Pgid: 101, Cmdline: "/bin/echo hi"}},
		{Kind: event.KindExit, Exit: &event.Exit{Ts: 30, Pid: 101, Ppid: 100, Pgid: 101}},
	}
	for _, e := range events {
		if tr.Admit(e) {
			admitted = append(admitted, e)
		}
	}

	assert.Len(t, admitted, 3)
}

func TestTracker_RootSeededBeforeAnyFork(t *testing.T) {
	tr := New(100)
	assert.True(t, tr.Live(100))
}

func TestTracker_ExecForUnknownPidDropped(t *testing.T) {
	tr := New(100)
	ok := tr.Admit(event.Event{Kind: event.KindExec, Exec: &event.Exec{Pid: 5555}})
	assert.False(t, ok)
}
