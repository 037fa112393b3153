// Command codelens is the one-shot CLI over the same engine the MCP
// server uses: every subcommand below is a thin argument-to-request
// adapter over internal/engine, so the CLI and the MCP tool surface
// never diverge in semantics.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/codelens/internal/config"
	"github.com/standardbeagle/codelens/internal/engine"
)

const appVersion = "0.1.0"

func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if c.Bool("no-watch") {
		cfg.WatchMode = false
	}
	return cfg, nil
}

// startEngine loads config, builds an *engine.Engine, and starts its
// index lifecycle. Callers must call Shutdown when done.
func startEngine(c *cli.Context) (*engine.Engine, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}

	logger := log.New(os.Stderr, "codelens: ", log.LstdFlags)
	eng, err := engine.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	if err := eng.Start(c.Context); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	return eng, nil
}

func main() {
	app := &cli.App{
		Name:    "codelens",
		Usage:   "code-intelligence search over a local project",
		Version: appVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "project root to index (default: current directory)",
			},
			&cli.BoolFlag{
				Name:  "no-watch",
				Usage: "disable the filesystem watcher for this invocation",
			},
		},
		Commands: []*cli.Command{
			grepCommand,
			definitionsCommand,
			callersCommand,
			findCommand,
			reindexCommand,
			serveCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
