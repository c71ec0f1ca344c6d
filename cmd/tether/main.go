package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wesleyorama2/tether/internal/cli"
)

// Main is the entry point for the application.
// It's exported to make it testable.
func Main(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cli.Execute(ctx, args)
}

func main() {
	os.Exit(Main(os.Args[1:]))
}
