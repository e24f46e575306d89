// Command traverse compiles and runs graph traversals.
//
// Usage:
//
//	traverse compile ./traversals
//	traverse explain -t lonely ./traversals
//	traverse run --engine computer --workers 4 ./traversals
//	traverse test ./scenarios
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/traverse/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
