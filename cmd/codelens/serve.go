package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/codelens/internal/mcpserver"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "run the MCP tool server over stdio until the transport closes or a signal arrives",
	Action: func(c *cli.Context) error {
		eng, err := startEngine(c)
		if err != nil {
			return err
		}

		srv := mcpserver.New(eng)

		ctx, cancel := context.WithCancel(c.Context)
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		runErrCh := make(chan error, 1)
		go func() {
			runErrCh <- srv.Run(ctx)
		}()

		var runErr error
		var signaled bool
		select {
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "codelens: received %v, shutting down\n", sig)
			signaled = true
			cancel()
			runErr = <-runErrCh
		case runErr = <-runErrCh:
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := eng.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("engine shutdown: %w", err)
		}

		if runErr != nil && !signaled {
			return fmt.Errorf("mcp server: %w", runErr)
		}
		return nil
	},
}
