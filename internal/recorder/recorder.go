// Package recorder supervises the external tracer subprocess and the
// user's command, feeding tracer output through the parse/assemble/
// tree pipeline and writing either a pruned or raw recording.
package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	goerrors "github.com/go-errors/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/git-ecosystem/proctrace/internal/assemble"
	"github.com/git-ecosystem/proctrace/internal/parse"
	"github.com/git-ecosystem/proctrace/internal/tree"
)

// Config controls how the tracer subprocess is launched and how its
// output is handled.
type Config struct {
	// BpftracePath is the bpftrace executable to run.
	BpftracePath string
	// PrivilegeCommand prefixes the tracer invocation, e.g. "sudo".
	PrivilegeCommand string
	// TracerScriptPath is the bpftrace script implementing the
	// fork/exec/exit/setsid/setpgid probes.
	TracerScriptPath string
	// Raw disables tree pruning: every assembled event is emitted.
	Raw bool
}

// Recorder supervises one record session.
type Recorder struct {
	cfg    Config
	logger *zap.Logger
}

// New constructs a Recorder.
func New(cfg Config, logger *zap.Logger) *Recorder {
	return &Recorder{cfg: cfg, logger: logger}
}

// TracerLaunchError is fatal: the tracer subprocess could not be
// started at all.
type TracerLaunchError struct {
	Err error
}

func (e *TracerLaunchError) Error() string {
	return fmt.Sprintf("recorder: failed to launch tracer (check privileges and --bpftrace-path): %s", e.Err)
}

func (e *TracerLaunchError) Unwrap() error { return e.Err }

// UserCommandLaunchError is fatal: the user's command could not be
// started.
type UserCommandLaunchError struct {
	Err error
}

func (e *UserCommandLaunchError) Error() string {
	return fmt.Sprintf("recorder: failed to launch user command: %s", e.Err)
}

func (e *UserCommandLaunchError) Unwrap() error { return e.Err }

// TracerExitedEarlyError is fatal: the tracer subprocess exited before
// the user command it was supervising finished.
type TracerExitedEarlyError struct {
	Err error
}

func (e *TracerExitedEarlyError) Error() string {
	msg := "recorder: tracer exited before the user command completed"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// InterruptedError is not a failure: it reports which signal caused a
// graceful shutdown, so the caller can map it to the conventional
// exit code (130 for SIGINT, 143 for SIGTERM).
type InterruptedError struct {
	Signal os.Signal
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("recorder: interrupted by %s", e.Signal)
}

// Stats summarizes one recording session for debug-mode reporting.
type Stats struct {
	LinesRead       int
	EventsEmitted   int
	ParseErrors     int
	TreeDrops       int
	DroppedPartials int
}

type lineMsg struct {
	text string
	err  error // non-nil (possibly io.EOF) signals end of stream
}

// Run launches the tracer and userCmd, streams assembled (and, in
// pruned mode, tree-admitted) events as newline-delimited JSON to out,
// and blocks until the session is complete or interrupted.
func (r *Recorder) Run(ctx context.Context, userCmd []string, out io.Writer) (Stats, error) {
	var stats Stats

	if len(userCmd) == 0 {
		return stats, goerrors.Errorf("recorder: no command given to run")
	}

	tracer := exec.CommandContext(ctx, r.cfg.PrivilegeCommand, r.cfg.BpftracePath, r.cfg.TracerScriptPath)
	tracer.Stderr = os.Stderr
	tracer.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	tracerStdout, err := tracer.StdoutPipe()
	if err != nil {
		return stats, &TracerLaunchError{Err: err}
	}
	if err := tracer.Start(); err != nil {
		return stats, &TracerLaunchError{Err: err}
	}

	user := exec.CommandContext(ctx, userCmd[0], userCmd[1:]...)
	user.Stdout = os.Stdout
	user.Stderr = os.Stderr
	user.Stdin = os.Stdin
	user.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := user.Start(); err != nil {
		_ = killGroup(tracer, syscall.SIGTERM)
		return stats, &UserCommandLaunchError{Err: err}
	}
	rootPid := int32(user.Process.Pid)
	r.logger.Info(fmt.Sprintf("Process tree root was PID %d", rootPid))

	userDone := make(chan error, 1)
	go func() { userDone <- user.Wait() }()

	lines := make(chan lineMsg, 256)
	go scanLines(tracerStdout, lines)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	asm := assemble.New()
	tr := tree.New(rootPid)
	enc := json.NewEncoder(out)

	var stopOnce sync.Once
	stopTracer := func() {
		stopOnce.Do(func() {
			_ = killGroup(tracer, syscall.SIGINT)
		})
	}

	userExited := false
	var userErr error
	var interrupted *InterruptedError

	for {
		select {
		case msg, ok := <-lines:
			if !ok {
				goto drained
			}
			if msg.err != nil {
				goto drained
			}
			stats.LinesRead++
			r.processLine(msg.text, asm, tr, enc, &stats)
			if userExited && (r.cfg.Raw || tr.Empty()) {
				stopTracer()
			}

		case err := <-userDone:
			userExited = true
			userErr = err
			if r.cfg.Raw || tr.Empty() {
				stopTracer()
			}

		case sig := <-sigCh:
			interrupted = &InterruptedError{Signal: sig}
			if s, ok := sig.(syscall.Signal); ok {
				_ = killGroup(user, s)
			}
			stopTracer()
		}
	}

drained:
	stats.TreeDrops = tr.Dropped
	stats.DroppedPartials = asm.Flush()

	if interrupted != nil {
		if !userExited {
			<-userDone
		}
		return stats, interrupted
	}

	if !userExited {
		return stats, &TracerExitedEarlyError{}
	}
	_ = userErr // a nonzero user-command exit is not itself a recorder error

	return stats, nil
}

func (r *Recorder) processLine(line string, asm *assemble.Assembler, tr *tree.Tracker, enc *json.Encoder, stats *Stats) {
	rec, err := parse.ParseLine(line, asm.NextSeq)
	if err != nil {
		stats.ParseErrors++
		r.logger.Debug("recorder: unparsable tracer line", zap.String("line", line), zap.Error(err))
		return
	}

	evt, ok := asm.Apply(rec)
	if !ok {
		return
	}

	if r.cfg.Raw {
		if err := enc.Encode(evt); err != nil {
			r.logger.Error("recorder: write failed", zap.Error(err))
		} else {
			stats.EventsEmitted++
		}
		return
	}

	if !tr.Admit(evt) {
		return
	}
	if err := enc.Encode(evt); err != nil {
		r.logger.Error("recorder: write failed", zap.Error(err))
		return
	}
	stats.EventsEmitted++
}

func scanLines(r io.Reader, out chan<- lineMsg) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		out <- lineMsg{text: scanner.Text()}
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	out <- lineMsg{err: err}
	close(out)
}

// killGroup signals cmd's whole process group, so that any children
// it spawned are reached too, not just the direct child.
func killGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return unix.Kill(-cmd.Process.Pid, sig)
}
