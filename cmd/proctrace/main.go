// Command proctrace records, ingests, sorts, and renders process
// lifecycle recordings produced by an external bpftrace-based tracer.
package main

import (
	"fmt"
	"os"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCommand().Execute(); err != nil {
		if code, ok := exitCodeOf(err); ok {
			if code != 0 {
				fmt.Fprintln(os.Stderr, err)
			}
			return code
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
