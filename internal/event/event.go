// Package event defines the typed representation of process-lifecycle
// events (fork, exec, exit, setsid, setpgid) and their tagged-union
// serialized form.
package event

import (
	"encoding/json"
	"fmt"
)

// Kind identifies which variant an Event carries.
type Kind string

const (
	KindFork    Kind = "Fork"
	KindExec    Kind = "Exec"
	KindExit    Kind = "Exit"
	KindSetSid  Kind = "SetSid"
	KindSetPgid Kind = "SetPgid"
)

// Fork records a child process being created.
type Fork struct {
	Ts          uint64 `json:"ts"`
	Seq         uint64 `json:"seq"`
	ParentPid   int32  `json:"parent_pid"`
	ChildPid    int32  `json:"child_pid"`
	ParentPgid  int32  `json:"parent_pgid"`
}

// Exec records a successfully assembled execve().
type Exec struct {
	Ts      uint64 `json:"ts"`
	Seq     uint64 `json:"seq"`
	Pid     int32  `json:"pid"`
	Ppid    int32  `json:"ppid"`
	Pgid    int32  `json:"pgid"`
	Cmdline string `json:"cmdline"`
}

// Exit records a process leaving.
type Exit struct {
	Ts   uint64 `json:"ts"`
	Seq  uint64 `json:"seq"`
	Pid  int32  `json:"pid"`
	Ppid int32  `json:"ppid"`
	Pgid int32  `json:"pgid"`
}

// SetSid records a process becoming a session leader.
type SetSid struct {
	Ts   uint64 `json:"ts"`
	Seq  uint64 `json:"seq"`
	Pid  int32  `json:"pid"`
	Ppid int32  `json:"ppid"`
	Pgid int32  `json:"pgid"`
	Sid  int32  `json:"sid"`
}

// SetPgid records a process changing its process group.
type SetPgid struct {
	Ts   uint64 `json:"ts"`
	Seq  uint64 `json:"seq"`
	Pid  int32  `json:"pid"`
	Ppid int32  `json:"ppid"`
	Pgid int32  `json:"pgid"`
}

// Event is the tagged union of the five event kinds. Exactly one of
// the pointer fields is non-nil; Kind names which one.
type Event struct {
	Kind    Kind
	Fork    *Fork
	Exec    *Exec
	Exit    *Exit
	SetSid  *SetSid
	SetPgid *SetPgid
}

// Ts returns the event's timestamp regardless of variant.
func (e Event) Ts() uint64 {
	switch e.Kind {
	case KindFork:
		return e.Fork.Ts
	case KindExec:
		return e.Exec.Ts
	case KindExit:
		return e.Exit.Ts
	case KindSetSid:
		return e.SetSid.Ts
	case KindSetPgid:
		return e.SetPgid.Ts
	default:
		return 0
	}
}

// Seq returns the event's tie-breaking sequence number regardless of
// variant.
func (e Event) Seq() uint64 {
	switch e.Kind {
	case KindFork:
		return e.Fork.Seq
	case KindExec:
		return e.Exec.Seq
	case KindExit:
		return e.Exit.Seq
	case KindSetSid:
		return e.SetSid.Seq
	case KindSetPgid:
		return e.SetPgid.Seq
	default:
		return 0
	}
}

// Pid returns the "owning" PID of the event: for Fork that is the
// child, since the child is the process the rest of the event stream
// will refer to from here on; for everything else it is Pid.
func (e Event) Pid() int32 {
	switch e.Kind {
	case KindFork:
		return e.Fork.ChildPid
	case KindExec:
		return e.Exec.Pid
	case KindExit:
		return e.Exit.Pid
	case KindSetSid:
		return e.SetSid.Pid
	case KindSetPgid:
		return e.SetPgid.Pid
	default:
		return 0
	}
}

// Less orders two events by (ts, seq) ascending, the sort order
// required of every chronological view.
func Less(a, b Event) bool {
	if a.Ts() != b.Ts() {
		return a.Ts() < b.Ts()
	}
	return a.Seq() < b.Seq()
}

// MarshalJSON writes the event as a single-key object
// {"<Variant>": {<fields>}}, per the Recording file format.
func (e Event) MarshalJSON() ([]byte, error) {
	var payload interface{}
	switch e.Kind {
	case KindFork:
		payload = e.Fork
	case KindExec:
		payload = e.Exec
	case KindExit:
		payload = e.Exit
	case KindSetSid:
		payload = e.SetSid
	case KindSetPgid:
		payload = e.SetPgid
	default:
		return nil, fmt.Errorf("event: unknown kind %q", e.Kind)
	}
	return json.Marshal(map[string]interface{}{string(e.Kind): payload})
}

// UnmarshalJSON reads a single-key {"<Variant>": {...}} object back
// into the appropriate variant. Unrecognized variant keys are a
// recoverable parse error so that recordings from newer tool versions
// remain forward-compatible (spec: unknown tags are skipped, not
// fatal, by the caller).
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("event: expected exactly one variant key, got %d", len(raw))
	}
	for k, v := range raw {
		switch Kind(k) {
		case KindFork:
			e.Fork = new(Fork)
			e.Kind = KindFork
			return json.Unmarshal(v, e.Fork)
		case KindExec:
			e.Exec = new(Exec)
			e.Kind = KindExec
			return json.Unmarshal(v, e.Exec)
		case KindExit:
			e.Exit = new(Exit)
			e.Kind = KindExit
			return json.Unmarshal(v, e.Exit)
		case KindSetSid:
			e.SetSid = new(SetSid)
			e.Kind = KindSetSid
			return json.Unmarshal(v, e.SetSid)
		case KindSetPgid:
			e.SetPgid = new(SetPgid)
			e.Kind = KindSetPgid
			return json.Unmarshal(v, e.SetPgid)
		default:
			return &UnknownVariantError{Variant: k}
		}
	}
	return nil
}

// UnknownVariantError is returned by UnmarshalJSON for a variant tag
// this build does not recognize. Callers should treat it as
// recoverable: skip the line, count it, move on.
type UnknownVariantError struct {
	Variant string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("event: unrecognized variant %q", e.Variant)
}
