package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/git-ecosystem/proctrace/internal/buildinfo"
)

var configPath string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "proctrace",
		Short:         "Record and visualize process lifecycle traces",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a proctrace.yml settings file")

	root.AddCommand(newRecordCommand())
	root.AddCommand(newIngestCommand())
	root.AddCommand(newSortCommand())
	root.AddCommand(newRenderCommand())

	return root
}

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}
