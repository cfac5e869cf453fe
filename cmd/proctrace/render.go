package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/git-ecosystem/proctrace/internal/event"
	"github.com/git-ecosystem/proctrace/internal/render"
)

func newRenderCommand() *cobra.Command {
	var (
		inputPath   string
		outputPath  string
		displayMode string
		noColor     bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a recording as sequential JSON, grouped by process, or a Gantt chart",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := render.Mode(displayMode)
			switch mode {
			case render.ModeSequential, render.ModeByProcess, render.ModeMermaid:
			default:
				return fmt.Errorf("render: unknown --display-mode %q", displayMode)
			}

			in, err := openInput(inputPath)
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := openOutput(outputPath)
			if err != nil {
				return err
			}
			defer out.Close()

			events, err := decodeEvents(in)
			if err != nil {
				return err
			}

			switch mode {
			case render.ModeSequential:
				return render.Sequential(out, events)
			case render.ModeByProcess:
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				useColor := stdoutIsTerminal() && outputPath == "-"
				if cfg.Color != nil {
					useColor = *cfg.Color
				}
				opts := render.Options{Color: !noColor && useColor}
				return render.ByProcess(out, events, opts)
			case render.ModeMermaid:
				return render.Gantt(out, events, rootPidOf(events))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "input recording path, or - for stdin")
	cmd.Flags().StringVarP(&displayMode, "display-mode", "d", string(render.ModeSequential), "sequential, by-process, or mermaid")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "output path, or - for stdout")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable ANSI highlighting in by-process output")

	return cmd
}

// rootPidOf identifies the tree's root PID from an already-pruned
// recording: the one PID that never appears as a Fork's child, since
// the recording has no separate root-pid flag of its own (it was
// already pruned to one tree by ingest or record). Ties (e.g. an empty
// recording) fall back to 0, which simply yields an empty root section.
func rootPidOf(events []event.Event) int32 {
	children := make(map[int32]struct{})
	for _, e := range events {
		if e.Kind == event.KindFork {
			children[e.Fork.ChildPid] = struct{}{}
		}
	}
	for _, e := range events {
		pid := e.Pid()
		if _, isChild := children[pid]; !isChild {
			return pid
		}
	}
	return 0
}
