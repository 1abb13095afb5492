package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/uwsgictl/internal/logging"
)

func main() {
	logging.ConfigureRuntime("uwsgictl")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "uwsgictl: %v\n", err)
		os.Exit(1)
	}
}
