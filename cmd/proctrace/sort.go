package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/git-ecosystem/proctrace/internal/event"
	"github.com/git-ecosystem/proctrace/internal/sortrec"
)

func newSortCommand() *cobra.Command {
	var (
		inputPath  string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Stably sort a recording by (ts, seq)",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			sortrec.Sort(events)

			enc := json.NewEncoder(out)
			for _, e := range events {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "input recording path, or - for stdin")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "output recording path, or - for stdout")

	return cmd
}

func decodeEvents(r io.Reader) ([]event.Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var events []event.Event
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e event.Event
		if err := json.Unmarshal(line, &e); err != nil {
			var uve *event.UnknownVariantError
			if errors.As(err, &uve) {
				continue
			}
			return nil, err
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
