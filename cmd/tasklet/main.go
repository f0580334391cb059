// Command tasklet is a command-line client and local gateway for a remote task list.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/florianilch/tasklet/cmd/tasklet/commands"
)

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	code := commands.Execute(ctx, os.Args, commands.Streams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})

	cancel()
	os.Exit(code)
}
