package main

import (
	"fmt"
	"io"

	"vochat/internal/ipc"
)

func printUsage(w io.Writer) {
	// Usage output is best-effort.
	_, _ = fmt.Fprintln(w, "vochatctl controls a running vochat instance")
	_, _ = fmt.Fprintln(w, "Usage: vochatctl [--endpoint PATH] [--json] <command> [text]")
	_, _ = fmt.Fprintln(w, "Commands:")
	for _, name := range ipc.Commands() {
		_, _ = fmt.Fprintf(w, "  %s\n", name)
	}
}
