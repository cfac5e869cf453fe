package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter() func() uint64 {
	n := uint64(0)
	return func() uint64 {
		n++
		return n
	}
}

func TestParseLine_Fork(t *testing.T) {
	rec, err := ParseLine("FORK seq=1,ts=10,parent_pid=100,child_pid=101,parent_pgid=99", counter())
	require.NoError(t, err)
	assert.Equal(t, PartialRecord{
		Kind: KindFork, Seq: 1, Ts: 10,
		ParentPid: 100, ChildPid: 101, ParentPgid: 99,
	}, rec)
}

func TestParseLine_Fork_MissingSeqAssignsCounter(t *testing.T) {
	next := counter()
	rec, err := ParseLine("FORK ts=10,parent_pid=100,child_pid=101,parent_pgid=99", next)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.Seq)

	rec2, err := ParseLine("FORK ts=11,parent_pid=100,child_pid=102,parent_pgid=99", next)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec2.Seq)
}

func TestParseLine_ExecFilename(t *testing.T) {
	rec, err := ParseLine("EXEC_FILENAME seq=2,ts=20,pid=101,filename=/bin/echo", counter())
	require.NoError(t, err)
	assert.Equal(t, "/bin/echo", rec.Filename)
	assert.Equal(t, int32(101), rec.Pid)
}

func TestParseLine_ExecFilename_AllowsCommasInValue(t *testing.T) {
	rec, err := ParseLine("EXEC_FILENAME seq=2,ts=20,pid=101,filename=/bin/echo, but, odd", counter())
	require.NoError(t, err)
	assert.Equal(t, "/bin/echo, but, odd", rec.Filename)
}

func TestParseLine_ExecArgs(t *testing.T) {
	rec, err := ParseLine("EXEC_ARGS seq=3,ts=20,pid=101,/bin/echo hi, there", counter())
	require.NoError(t, err)
	assert.Equal(t, "/bin/echo hi, there", rec.Args)
}

func TestParseLine_ExecSuccess(t *testing.T) {
	rec, err := ParseLine("EXEC seq=4,ts=20,pid=101,ppid=100,pgid=101", counter())
	require.NoError(t, err)
	assert.Equal(t, KindExecSuccess, rec.Kind)
	assert.Equal(t, int32(100), rec.Ppid)
	assert.Equal(t, int32(101), rec.Pgid)
}

func TestParseLine_BadExec(t *testing.T) {
	rec, err := ParseLine("BADEXEC seq=5,ts=20,pid=101", counter())
	require.NoError(t, err)
	assert.Equal(t, KindBadExec, rec.Kind)
	assert.Equal(t, int32(101), rec.Pid)
}

func TestParseLine_Exit(t *testing.T) {
	rec, err := ParseLine("EXIT seq=6,ts=30,pid=101,ppid=100,pgid=101", counter())
	require.NoError(t, err)
	assert.Equal(t, KindExit, rec.Kind)
}

func TestParseLine_SetSid(t *testing.T) {
	rec, err := ParseLine("SETSID seq=7,ts=30,pid=101,ppid=100,pgid=101,sid=101", counter())
	require.NoError(t, err)
	assert.Equal(t, int32(101), rec.Sid)
}

func TestParseLine_SetPgid(t *testing.T) {
	rec, err := ParseLine("SETPGID seq=8,ts=30,pid=101,ppid=100,pgid=55", counter())
	require.NoError(t, err)
	assert.Equal(t, int32(55), rec.Pgid)
}

func TestParseLine_SetPgid_NegativeOneRejected(t *testing.T) {
	_, err := ParseLine("SETPGID seq=8,ts=30,pid=101,ppid=100,pgid=-1", counter())
	require.Error(t, err)
}

func TestParseLine_NegativePidAllowedElsewhere(t *testing.T) {
	// Negative PIDs are permitted in general (kernel convention); only
	// SetPgid.pgid == -1 is rejected.
	rec, err := ParseLine("EXIT seq=9,ts=30,pid=-5,ppid=100,pgid=101", counter())
	require.NoError(t, err)
	assert.Equal(t, int32(-5), rec.Pid)
}

func TestParseLine_UnknownPrefix(t *testing.T) {
	_, err := ParseLine("WHATEVER seq=1,ts=1", counter())
	require.Error(t, err)
	var upe *UnknownPrefixError
	require.ErrorAs(t, err, &upe)
}

func TestParseLine_MissingField(t *testing.T) {
	_, err := ParseLine("FORK seq=1,ts=10,parent_pid=100", counter())
	require.Error(t, err)
}

func TestParseLine_WrongFieldOrder(t *testing.T) {
	_, err := ParseLine("FORK seq=1,parent_pid=100,ts=10,child_pid=101,parent_pgid=99", counter())
	require.Error(t, err)
}
