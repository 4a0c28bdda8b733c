// Command tempingest loads IoT temperature CSV exports from a landing
// directory into Postgres.
//
// Usage:
//
//	tempingest init-db        apply the schema
//	tempingest run [path]     process the landing directory (or one file) once
//	tempingest serve          process on a schedule and serve the HTTP API
//
// Without a subcommand it serves when RUN_AS_AGENT is set and otherwise runs a
// single pass.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command tree and returns the process exit code. Errors are
// printed here because the root command silences cobra's own reporting.
func execute(ctx context.Context, args []string, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
