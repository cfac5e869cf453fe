package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/git-ecosystem/proctrace/internal/config"
	"github.com/git-ecosystem/proctrace/internal/recorder"
)

func newRecordCommand() *cobra.Command {
	var (
		bpftracePath string
		outputPath   string
		raw          bool
		debug        bool
	)

	cmd := &cobra.Command{
		Use:   "record [flags] -- CMD [ARGS...]",
		Short: "Run CMD under the tracer and write a recording",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			overrides := map[string]interface{}{}
			if cmd.Flags().Changed("bpftrace-path") {
				overrides["bpftrace_path"] = bpftracePath
			}
			if err := cfg.ApplyOverrides(overrides); err != nil {
				return err
			}

			logger, err := newLogger(debug)
			if err != nil {
				return fmt.Errorf("could not build logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			out, err := openOutput(outputPath)
			if err != nil {
				return err
			}
			defer out.Close()

			rec := recorder.New(recorder.Config{
				BpftracePath:     cfg.BpftracePath,
				PrivilegeCommand: cfg.PrivilegeCommand,
				TracerScriptPath: tracerScriptPath(),
				Raw:              raw,
			}, logger)

			stats, err := rec.Run(context.Background(), args, out)
			if debug {
				logger.Sugar().Infof("record: %+v", stats)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&bpftracePath, "bpftrace-path", "b", "bpftrace", "path to the bpftrace executable")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "output recording path, or - for stdout")
	cmd.Flags().BoolVarP(&raw, "raw", "r", false, "write every assembled event, skipping process-tree pruning")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging and end-of-run stats")

	return cmd
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// tracerScriptPath locates the bpftrace script installed alongside
// proctrace. It is not user-configurable: the script is part of the
// tool's release artifact, not a deployment-site setting.
func tracerScriptPath() string {
	return "/usr/local/share/proctrace/proctrace.bt"
}
