// Command tracectl runs maintenance tasks against a seedtrace database:
// schema migration, audit chain verification and audit reports.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tracectl:", err)
		os.Exit(1)
	}
}
