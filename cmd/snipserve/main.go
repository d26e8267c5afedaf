package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	snipcmd "snipserve/internal/cli/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := snipcmd.Execute(ctx); err != nil {
		var ee *snipcmd.ExitError
		if errors.As(err, &ee) {
			if ee.Err != nil {
				fmt.Fprintln(os.Stderr, ee.Err)
			}
			stop()
			os.Exit(ee.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(snipcmd.ExitCLIError)
	}
}
