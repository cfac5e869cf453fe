package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/git-ecosystem/proctrace/internal/ingest"
)

func newIngestCommand() *cobra.Command {
	var (
		inputPath  string
		outputPath string
		rootPid    int32
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Replay a raw tracer transcript or recording into a pruned recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("root-pid") {
				return fmt.Errorf("ingest: --root-pid is required")
			}

			logger, err := newLogger(debug)
			if err != nil {
				return fmt.Errorf("could not build logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

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

			stats, err := ingest.Run(in, out, rootPid, logger)
			if debug {
				logger.Sugar().Infof("ingest: %+v", stats)
			}
			if err != nil {
				return &parseExitError{err: err}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "input path, or - for stdin")
	cmd.Flags().Int32VarP(&rootPid, "root-pid", "p", 0, "PID of the process tree to keep")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "output recording path, or - for stdout")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable debug logging and end-of-run stats")

	return cmd
}
