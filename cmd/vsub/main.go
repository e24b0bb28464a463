package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"vsub/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	// Every log line of one invocation shares a correlation id.
	ctx = services.WithRequestID(ctx, uuid.NewString())
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			if hint := services.Hint(err); hint != "" {
				fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
			}
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to process status. An interrupt exits 130 like a shell.
func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return services.ExitCode(err)
}
