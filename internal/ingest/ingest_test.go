package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/git-ecosystem/proctrace/internal/event"
)

func TestRun_EmptyTree(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`FORK seq=1,ts=10,parent_pid=1,child_pid=2,parent_pgid=1`,
		`EXIT seq=2,ts=20,pid=2,ppid=1,pgid=1`,
	}, "\n") + "\n")
	var out bytes.Buffer

	stats, err := Run(in, &out, 100, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.EventsAdmitted)
	assert.Empty(t, out.String())
}

func TestRun_SingleForkExecExit(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`FORK seq=1,ts=10,parent_pid=100,child_pid=101,parent_pgid=99`,
		`EXEC_FILENAME seq=2,ts=20,pid=101,filename=/bin/echo`,
		`EXEC_ARGS seq=3,ts=20,pid=101,/bin/echo hi`,
		`EXEC seq=4,ts=20,pid=101,ppid=100,pgid=101`,
		`EXIT seq=5,ts=30,pid=101,ppid=100,pgid=101`,
	}, "\n") + "\n")
	var out bytes.Buffer

	stats, err := Run(in, &out, 100, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.EventsAdmitted)

	dec := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, dec, 3)
	assert.Contains(t, dec[0], `"Fork"`)
	assert.Contains(t, dec[1], `"Exec"`)
	assert.Contains(t, dec[1], `/bin/echo hi`)
	assert.Contains(t, dec[2], `"Exit"`)
}

func TestRun_BadExecEmitsZeroExecEvents(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`FORK seq=1,ts=10,parent_pid=100,child_pid=101,parent_pgid=99`,
		`EXEC_FILENAME seq=2,ts=20,pid=101,filename=/bin/echo`,
		`EXEC_ARGS seq=3,ts=20,pid=101,/bin/echo hi`,
		`BADEXEC seq=4,ts=20,pid=101`,
	}, "\n") + "\n")
	var out bytes.Buffer

	_, err := Run(in, &out, 100, zap.NewNop())
	require.NoError(t, err)
	assert.NotContains(t, out.String(), `"Exec"`)
}

func TestRun_PreAssembledEventsRoundTrip(t *testing.T) {
	events := []string{
		`{"Fork":{"ts":10,"seq":1,"parent_pid":100,"child_pid":101,"parent_pgid":99}}`,
		`{"Exit":{"ts":30,"seq":2,"pid":101,"ppid":100,"pgid":101}}`,
	}
	in := strings.NewReader(strings.Join(events, "\n") + "\n")
	var out bytes.Buffer

	stats, err := Run(in, &out, 100, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.EventsAdmitted)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for i, l := range lines {
		var e event.Event
		require.NoError(t, jsonUnmarshal(l, &e))
		_ = i
	}
}

func TestRun_UnknownPrefixIsRecoverable(t *testing.T) {
	in := strings.NewReader("BOGUS seq=1,ts=1\n" +
		"FORK seq=2,ts=10,parent_pid=100,child_pid=101,parent_pgid=99\n")
	var out bytes.Buffer

	stats, err := Run(in, &out, 100, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ParseErrors)
	assert.Equal(t, 1, stats.EventsAdmitted)
}

func jsonUnmarshal(s string, e *event.Event) error {
	return e.UnmarshalJSON([]byte(s))
}
