// Command eagerpath compiles eager-loading path expressions.
//
// Usage:
//
//	eagerpath compile <specs-dir> [--sql] [--db plans.db] [-o out.json]
//	eagerpath validate <specs-dir> [--strict]
//	eagerpath check [go-dir] [--watch] [--strict]
//	eagerpath generate [go-dir] [-o eagerpath_gen.go]
//	eagerpath plans [run-id] --db plans.db [--runs] [--diff run-id]
//
// Exit codes:
//
//	0  success
//	1  validation failure (error findings, or warnings with --strict)
//	2  command error (unreadable input, bad flags, database errors)
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/eagerpath/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			// Flag and argument errors from cobra; commands report their own.
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return cli.ExitCommandError
		}
		return exitErr.Code
	}
	return cli.ExitSuccess
}
