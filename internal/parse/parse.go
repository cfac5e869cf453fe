// Package parse turns one line of tracer output into a PartialRecord:
// the raw, not-yet-assembled signal the tracer emitted. Multi-line
// exec records are assembled downstream (see internal/assemble);
// this package only knows how to read one line at a time.
package parse

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies which tracer line prefix produced a PartialRecord.
type Kind string

const (
	KindFork         Kind = "FORK"
	KindExecFilename Kind = "EXEC_FILENAME"
	KindExecArgs     Kind = "EXEC_ARGS"
	KindExecSuccess  Kind = "EXEC"
	KindBadExec      Kind = "BADEXEC"
	KindExit         Kind = "EXIT"
	KindSetSid       Kind = "SETSID"
	KindSetPgid      Kind = "SETPGID"
)

// PartialRecord is the parsed form of one tracer line, before C3 has
// merged exec-related signals into a whole event.Exec.
type PartialRecord struct {
	Kind Kind
	Seq  uint64
	Ts   uint64
	Pid  int32

	// Fork-only.
	ParentPid  int32
	ChildPid   int32
	ParentPgid int32

	// Exec/Exit/SetSid/SetPgid.
	Ppid int32
	Pgid int32
	Sid  int32

	// Exec assembly only.
	Filename string
	Args     string
}

// UnknownPrefixError is returned for a tracer line whose leading verb
// this build does not recognize. Recoverable: the caller should log it
// at debug level and skip the line, per spec.
type UnknownPrefixError struct {
	Prefix string
}

func (e *UnknownPrefixError) Error() string {
	return fmt.Sprintf("parse: unrecognized tracer line prefix %q", e.Prefix)
}

// fieldsByKind names the structured (non-free) key=value fields expected
// for a line kind, in order. "seq" is always implicitly optional and
// is handled separately from this list.
var fieldsByKind = map[Kind][]string{
	KindFork:         {"ts", "parent_pid", "child_pid", "parent_pgid"},
	KindExecFilename: {"ts", "pid"}, // followed by a "filename=" free field
	KindExecArgs:     {"ts", "pid"}, // followed by a raw free field
	KindExecSuccess:  {"ts", "pid", "ppid", "pgid"},
	KindBadExec:      {"ts", "pid"},
	KindExit:         {"ts", "pid", "ppid", "pgid"},
	KindSetSid:       {"ts", "pid", "ppid", "pgid", "sid"},
	KindSetPgid:      {"ts", "pid", "ppid", "pgid"},
}

// hasFreeField reports whether a kind's line ends in a free-form
// remainder (one that may itself contain commas and spaces) rather
// than stopping at the last structured field.
func hasFreeField(k Kind) (prefix string, ok bool) {
	switch k {
	case KindExecFilename:
		return "filename=", true
	case KindExecArgs:
		return "", true
	default:
		return "", false
	}
}

// ParseLine parses one \n-stripped tracer output line. nextSeq is
// called to assign a sequence number only when the line omits its own
// "seq=" field (the older tracer script does this).
//
// Returns an *UnknownPrefixError for an unrecognized prefix; any other
// error indicates a malformed line of a recognized kind.
func ParseLine(line string, nextSeq func() uint64) (PartialRecord, error) {
	prefix, rest, ok := splitPrefix(line)
	if !ok {
		return PartialRecord{}, &UnknownPrefixError{Prefix: line}
	}

	kind := Kind(prefix)
	fields, known := fieldsByKind[kind]
	if !known {
		return PartialRecord{}, &UnknownPrefixError{Prefix: prefix}
	}

	rec := PartialRecord{Kind: kind}

	cursor := rest

	if seqVal, remainder, present, err := takeOptionalSeq(cursor); err != nil {
		return PartialRecord{}, err
	} else if present {
		rec.Seq = seqVal
		cursor = remainder
	} else {
		rec.Seq = nextSeq()
	}

	freePrefix, wantsFree := hasFreeField(kind)

	for i, key := range fields {
		last := i == len(fields)-1
		var token string
		if last && !wantsFree {
			token = cursor
			cursor = ""
		} else {
			var err error
			token, cursor, err = splitNextField(cursor)
			if err != nil {
				return PartialRecord{}, fmt.Errorf("parse %s: %w", kind, err)
			}
		}

		k, v, err := splitKV(token)
		if err != nil {
			return PartialRecord{}, fmt.Errorf("parse %s: %w", kind, err)
		}
		if k != key {
			return PartialRecord{}, fmt.Errorf("parse %s: expected field %q, got %q", kind, key, k)
		}

		if err := assignField(&rec, kind, key, v); err != nil {
			return PartialRecord{}, fmt.Errorf("parse %s: %w", kind, err)
		}
	}

	if wantsFree {
		free := cursor
		if freePrefix != "" {
			if !strings.HasPrefix(free, freePrefix) {
				return PartialRecord{}, fmt.Errorf("parse %s: expected %q prefix on free field", kind, freePrefix)
			}
			free = free[len(freePrefix):]
		}
		switch kind {
		case KindExecFilename:
			rec.Filename = free
		case KindExecArgs:
			rec.Args = free
		}
	}

	return rec, nil
}

func splitPrefix(line string) (prefix, rest string, ok bool) {
	i := strings.IndexByte(line, ' ')
	if i < 0 {
		return "", "", false
	}
	return line[:i], line[i+1:], true
}

// takeOptionalSeq consumes a leading "seq=<n>," token if present.
func takeOptionalSeq(s string) (seq uint64, remainder string, present bool, err error) {
	if !strings.HasPrefix(s, "seq=") {
		return 0, s, false, nil
	}
	token, rest, perr := splitNextField(s)
	if perr != nil {
		return 0, "", false, fmt.Errorf("parse: malformed seq field: %w", perr)
	}
	_, v, kerr := splitKV(token)
	if kerr != nil {
		return 0, "", false, kerr
	}
	n, nerr := strconv.ParseUint(v, 10, 64)
	if nerr != nil {
		return 0, "", false, fmt.Errorf("parse: seq %q is not a non-negative integer", v)
	}
	return n, rest, true, nil
}

// splitNextField takes the next comma-delimited token off the front
// of s and returns it along with the remainder.
func splitNextField(s string) (token, remainder string, err error) {
	i := strings.IndexByte(s, ',')
	if i < 0 {
		return "", "", fmt.Errorf("unexpected end of line, missing field")
	}
	return s[:i], s[i+1:], nil
}

func splitKV(token string) (key, value string, err error) {
	i := strings.IndexByte(token, '=')
	if i < 0 {
		return "", "", fmt.Errorf("malformed field %q, expected key=value", token)
	}
	return token[:i], token[i+1:], nil
}

func assignField(rec *PartialRecord, kind Kind, key, value string) error {
	switch key {
	case "ts":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("ts %q is not a non-negative integer", value)
		}
		rec.Ts = n
	case "pid":
		n, err := parseSignedPid(value)
		if err != nil {
			return err
		}
		rec.Pid = n
	case "parent_pid":
		n, err := parseSignedPid(value)
		if err != nil {
			return err
		}
		rec.ParentPid = n
	case "child_pid":
		n, err := parseSignedPid(value)
		if err != nil {
			return err
		}
		rec.ChildPid = n
	case "parent_pgid":
		n, err := parseSignedPid(value)
		if err != nil {
			return err
		}
		rec.ParentPgid = n
	case "ppid":
		n, err := parseSignedPid(value)
		if err != nil {
			return err
		}
		rec.Ppid = n
	case "pgid":
		n, err := parseSignedPid(value)
		if err != nil {
			return err
		}
		if kind == KindSetPgid && n == -1 {
			return fmt.Errorf("pgid -1 indicates kernel failure and must never occur")
		}
		rec.Pgid = n
	case "sid":
		n, err := parseSignedPid(value)
		if err != nil {
			return err
		}
		rec.Sid = n
	default:
		return fmt.Errorf("unknown field %q", key)
	}
	return nil
}

func parseSignedPid(value string) (int32, error) {
	n, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not a valid PID-like integer", value)
	}
	return int32(n), nil
}
